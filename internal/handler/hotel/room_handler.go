// Package hotel 提供房间与客人的 HTTP Handler
package hotel

import (
	"github.com/gin-gonic/gin"

	"github.com/lavendermoon/villa-pms/internal/common/handler"
	"github.com/lavendermoon/villa-pms/internal/middleware"
	"github.com/lavendermoon/villa-pms/internal/models"
	hotelService "github.com/lavendermoon/villa-pms/internal/service/hotel"
)

// RoomHandler 房间处理器
type RoomHandler struct {
	roomService *hotelService.RoomService
}

// NewRoomHandler 创建房间处理器
func NewRoomHandler(roomSvc *hotelService.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomSvc}
}

// UpdateRoomStatusRequest 房态更新请求
type UpdateRoomStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=available occupied cleaning maintenance"`
}

// ListRooms 房间列表
// @Summary 房间列表
// @Tags 房间
// @Produce json
// @Param status query string false "房态"
// @Param room_type query string false "房型 room/suite"
// @Param min_guests query int false "最少可住人数"
// @Success 200 {object} response.Response{data=[]models.Room}
// @Router /api/v1/public/rooms [get]
// @Router /api/v1/admin/rooms [get]
func (h *RoomHandler) ListRooms(c *gin.Context) {
	var req hotelService.RoomListRequest
	if !handler.BindQuery(c, &req) {
		return
	}

	rooms, err := h.roomService.ListRooms(c.Request.Context(), &req)
	handler.MustSucceed(c, err, rooms)
}

// GetRoom 房间详情
// @Summary 房间详情
// @Tags 房间
// @Produce json
// @Param id path int true "房间ID"
// @Success 200 {object} response.Response{data=models.Room}
// @Failure 404 {object} response.Response
// @Router /api/v1/public/rooms/{id} [get]
// @Router /api/v1/admin/rooms/{id} [get]
func (h *RoomHandler) GetRoom(c *gin.Context) {
	id, ok := handler.ParseID(c, "room")
	if !ok {
		return
	}

	room, err := h.roomService.GetRoom(c.Request.Context(), id)
	handler.MustSucceed(c, err, room)
}

// CreateRoom 创建房间
// @Summary 创建房间
// @Tags 房间
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body hotelService.CreateRoomRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.Room}
// @Failure 409 {object} response.Response
// @Router /api/v1/admin/rooms [post]
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req hotelService.CreateRoomRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), &req)
	handler.MustCreate(c, err, room)
}

// UpdateRoom 更新房间
// @Summary 更新房间
// @Tags 房间
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "房间ID"
// @Param request body hotelService.UpdateRoomRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Room}
// @Router /api/v1/admin/rooms/{id} [put]
func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	id, ok := handler.ParseID(c, "room")
	if !ok {
		return
	}

	var req hotelService.UpdateRoomRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	room, err := h.roomService.UpdateRoom(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, room)
}

// UpdateRoomStatus 更新房态（前台与客房）
// @Summary 更新房态
// @Tags 房间
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "房间ID"
// @Param request body UpdateRoomStatusRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Room}
// @Router /api/v1/admin/rooms/{id}/status [put]
func (h *RoomHandler) UpdateRoomStatus(c *gin.Context) {
	id, ok := handler.ParseID(c, "room")
	if !ok {
		return
	}

	var req UpdateRoomStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	room, err := h.roomService.UpdateRoomStatus(c.Request.Context(), id, req.Status)
	handler.MustSucceed(c, err, room)
}

// RegisterPublicRoutes 注册公开路由
func (h *RoomHandler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/rooms", h.ListRooms)
	r.GET("/rooms/:id", h.GetRoom)
}

// RegisterAdminRoutes 注册员工路由，增改房间需要 admin 或 manager
func (h *RoomHandler) RegisterAdminRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms")
	{
		rooms.GET("", h.ListRooms)
		rooms.GET("/:id", h.GetRoom)
		rooms.PUT("/:id/status", h.UpdateRoomStatus)

		managed := rooms.Group("", middleware.RequireRoles(models.StaffRoleAdmin, models.StaffRoleManager))
		managed.POST("", h.CreateRoom)
		managed.PUT("/:id", h.UpdateRoom)
	}
}
