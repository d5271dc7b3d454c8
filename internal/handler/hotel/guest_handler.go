package hotel

import (
	"github.com/gin-gonic/gin"

	"github.com/lavendermoon/villa-pms/internal/common/handler"
	"github.com/lavendermoon/villa-pms/internal/common/response"
	hotelService "github.com/lavendermoon/villa-pms/internal/service/hotel"
)

// GuestHandler 客人处理器
type GuestHandler struct {
	guestService *hotelService.GuestService
}

// NewGuestHandler 创建客人处理器
func NewGuestHandler(guestSvc *hotelService.GuestService) *GuestHandler {
	return &GuestHandler{guestService: guestSvc}
}

// PublicGuest 官网可见的客人信息
type PublicGuest struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// UpsertGuest 按 email 新建或更新客人（员工端）
// @Summary 新建或更新客人
// @Tags 客人
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body hotelService.GuestInput true "请求参数"
// @Success 200 {object} response.Response{data=models.Guest}
// @Router /api/v1/admin/guests [post]
func (h *GuestHandler) UpsertGuest(c *gin.Context) {
	var req hotelService.GuestInput
	if !handler.BindJSON(c, &req) {
		return
	}

	guest, err := h.guestService.UpsertGuest(c.Request.Context(), &req)
	handler.MustSucceed(c, err, guest)
}

// PublicUpsertGuest 官网提交客人信息，只回传基本字段
// @Summary 官网提交客人信息
// @Tags 官网
// @Accept json
// @Produce json
// @Param request body hotelService.GuestInput true "请求参数"
// @Success 200 {object} response.Response{data=PublicGuest}
// @Router /api/v1/public/guests [post]
func (h *GuestHandler) PublicUpsertGuest(c *gin.Context) {
	var req hotelService.GuestInput
	if !handler.BindJSON(c, &req) {
		return
	}

	guest, err := h.guestService.UpsertGuest(c.Request.Context(), &req)
	if handler.HandleError(c, err) {
		return
	}
	response.Success(c, &PublicGuest{
		ID:        guest.ID,
		FirstName: guest.FirstName,
		LastName:  guest.LastName,
		Email:     guest.Email,
	})
}

// GetGuest 客人详情
// @Summary 客人详情
// @Tags 客人
// @Produce json
// @Security Bearer
// @Param id path int true "客人ID"
// @Success 200 {object} response.Response{data=models.Guest}
// @Router /api/v1/admin/guests/{id} [get]
func (h *GuestHandler) GetGuest(c *gin.Context) {
	id, ok := handler.ParseID(c, "guest")
	if !ok {
		return
	}

	guest, err := h.guestService.GetGuest(c.Request.Context(), id)
	handler.MustSucceed(c, err, guest)
}

// ListGuests 客人列表
// @Summary 客人列表
// @Tags 客人
// @Produce json
// @Security Bearer
// @Param search query string false "姓名/email/电话"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/guests [get]
func (h *GuestHandler) ListGuests(c *gin.Context) {
	p := handler.BindPagination(c)

	guests, total, err := h.guestService.ListGuests(c.Request.Context(), p, c.Query("search"))
	handler.MustSucceedPage(c, err, guests, total, p)
}

// RegisterPublicRoutes 注册公开路由
func (h *GuestHandler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/guests", h.PublicUpsertGuest)
}

// RegisterAdminRoutes 注册员工路由
func (h *GuestHandler) RegisterAdminRoutes(r *gin.RouterGroup) {
	guests := r.Group("/guests")
	{
		guests.GET("", h.ListGuests)
		guests.GET("/:id", h.GetGuest)
		guests.POST("", h.UpsertGuest)
	}
}
