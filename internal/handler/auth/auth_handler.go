// Package auth 提供员工认证相关的 HTTP Handler
package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/lavendermoon/villa-pms/internal/common/handler"
	"github.com/lavendermoon/villa-pms/internal/middleware"
	"github.com/lavendermoon/villa-pms/internal/models"
	authService "github.com/lavendermoon/villa-pms/internal/service/auth"
)

// Handler 认证处理器
type Handler struct {
	authService *authService.Service
}

// NewHandler 创建认证处理器
func NewHandler(authSvc *authService.Service) *Handler {
	return &Handler{authService: authSvc}
}

// RefreshRequest 刷新令牌请求
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// SetActiveRequest 启用/停用员工
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// Status 是否需要初始化
// @Summary 查询初始化状态
// @Tags 员工认证
// @Produce json
// @Success 200 {object} response.Response{data=authService.SetupStatus}
// @Router /api/v1/auth/status [get]
func (h *Handler) Status(c *gin.Context) {
	status, err := h.authService.Status(c.Request.Context())
	handler.MustSucceed(c, err, status)
}

// Setup 创建首个管理员
// @Summary 初始化首个管理员
// @Tags 员工认证
// @Accept json
// @Produce json
// @Param request body authService.SetupRequest true "请求参数"
// @Success 201 {object} response.Response{data=authService.LoginResponse}
// @Failure 409 {object} response.Response
// @Router /api/v1/auth/setup [post]
func (h *Handler) Setup(c *gin.Context) {
	var req authService.SetupRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.authService.Setup(c.Request.Context(), &req)
	handler.MustCreate(c, err, result)
}

// Login 员工登录
// @Summary 员工登录
// @Tags 员工认证
// @Accept json
// @Produce json
// @Param request body authService.LoginRequest true "请求参数"
// @Success 200 {object} response.Response{data=authService.LoginResponse}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req authService.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	req.IP = c.ClientIP()

	result, err := h.authService.Login(c.Request.Context(), &req)
	handler.MustSucceed(c, err, result)
}

// Refresh 刷新令牌
// @Summary 刷新令牌
// @Tags 员工认证
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "请求参数"
// @Success 200 {object} response.Response{data=jwt.TokenPair}
// @Router /api/v1/auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	handler.MustSucceed(c, err, pair)
}

// Me 当前员工
// @Summary 获取当前员工
// @Tags 员工认证
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=authService.StaffInfo}
// @Router /api/v1/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	staffID, ok := handler.RequireStaffID(c)
	if !ok {
		return
	}

	info, err := h.authService.Me(c.Request.Context(), staffID)
	handler.MustSucceed(c, err, info)
}

// ChangePassword 修改密码
// @Summary 修改密码
// @Tags 员工认证
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body authService.ChangePasswordRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /api/v1/auth/password [put]
func (h *Handler) ChangePassword(c *gin.Context) {
	staffID, ok := handler.RequireStaffID(c)
	if !ok {
		return
	}

	var req authService.ChangePasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	err := h.authService.ChangePassword(c.Request.Context(), staffID, &req)
	handler.MustSucceed(c, err, nil)
}

// ListStaff 员工列表
// @Summary 员工列表
// @Tags 员工管理
// @Produce json
// @Security Bearer
// @Param role query string false "角色"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/staff [get]
func (h *Handler) ListStaff(c *gin.Context) {
	p := handler.BindPagination(c)

	list, total, err := h.authService.ListStaff(c.Request.Context(), c.Query("role"), p)
	handler.MustSucceedPage(c, err, list, total, p)
}

// CreateStaff 创建员工
// @Summary 创建员工
// @Tags 员工管理
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body authService.CreateStaffRequest true "请求参数"
// @Success 201 {object} response.Response{data=authService.StaffInfo}
// @Router /api/v1/admin/staff [post]
func (h *Handler) CreateStaff(c *gin.Context) {
	var req authService.CreateStaffRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	info, err := h.authService.CreateStaff(c.Request.Context(), &req)
	handler.MustCreate(c, err, info)
}

// SetActive 启用或停用员工
// @Summary 启用/停用员工
// @Tags 员工管理
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "员工ID"
// @Param request body SetActiveRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/staff/{id}/status [put]
func (h *Handler) SetActive(c *gin.Context) {
	id, ok := handler.ParseID(c, "staff")
	if !ok {
		return
	}

	var req SetActiveRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	err := h.authService.SetActive(c.Request.Context(), id, *req.IsActive)
	handler.MustSucceed(c, err, nil)
}

// RegisterRoutes 注册公开路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.GET("/status", h.Status)
		auth.POST("/setup", h.Setup)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
	}
}

// RegisterProtectedRoutes 注册需要认证的路由
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.GET("/me", h.Me)
		auth.PUT("/password", h.ChangePassword)
	}
}

// RegisterAdminRoutes 注册员工管理路由，仅管理员
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	staff := r.Group("/staff", middleware.RequireRoles(models.StaffRoleAdmin))
	{
		staff.GET("", h.ListStaff)
		staff.POST("", h.CreateStaff)
		staff.PUT("/:id/status", h.SetActive)
	}
}
