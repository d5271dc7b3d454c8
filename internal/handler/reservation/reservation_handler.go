// Package reservation 提供预订相关的 HTTP Handler
package reservation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lavendermoon/villa-pms/internal/common/handler"
	reservationService "github.com/lavendermoon/villa-pms/internal/service/reservation"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler 员工端预订处理器
type Handler struct {
	reservationService *reservationService.Service
}

// NewHandler 创建预订处理器
func NewHandler(reservationSvc *reservationService.Service) *Handler {
	return &Handler{reservationService: reservationSvc}
}

// ListReservations 预订列表
// @Summary 预订列表
// @Tags 预订
// @Produce json
// @Security Bearer
// @Param status query string false "状态"
// @Param source query string false "来源"
// @Param room_id query int false "房间ID"
// @Param guest_id query int false "客人ID"
// @Param search query string false "预订编号或客人 email"
// @Param from query string false "离店晚于该日 YYYY-MM-DD"
// @Param to query string false "入住早于该日 YYYY-MM-DD"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/reservations [get]
func (h *Handler) ListReservations(c *gin.Context) {
	var req reservationService.ListRequest
	if !handler.BindQuery(c, &req) {
		return
	}
	var ok bool
	if req.From, ok = handler.ParseOptionalQueryDay(c, "from"); !ok {
		return
	}
	if req.To, ok = handler.ParseOptionalQueryDay(c, "to"); !ok {
		return
	}
	p := handler.BindPagination(c)

	list, total, err := h.reservationService.ListReservations(c.Request.Context(), &req, p)
	handler.MustSucceedPage(c, err, list, total, p)
}

// GetReservation 预订详情
// @Summary 预订详情
// @Tags 预订
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Success 200 {object} response.Response{data=models.Reservation}
// @Failure 404 {object} response.Response
// @Router /api/v1/admin/reservations/{id} [get]
func (h *Handler) GetReservation(c *gin.Context) {
	id, ok := handler.ParseID(c, "reservation")
	if !ok {
		return
	}

	res, err := h.reservationService.GetReservation(c.Request.Context(), id)
	handler.MustSucceed(c, err, res)
}

// CreateReservation 员工创建预订
// @Summary 创建预订
// @Tags 预订
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body reservationService.CreateRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.Reservation}
// @Failure 409 {object} response.Response
// @Router /api/v1/admin/reservations [post]
func (h *Handler) CreateReservation(c *gin.Context) {
	var req reservationService.CreateRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	res, err := h.reservationService.CreateReservation(c.Request.Context(), &req)
	handler.MustCreate(c, err, res)
}

// UpdateReservation 修改预订
// @Summary 修改预订
// @Tags 预订
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Param request body reservationService.UpdateRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Reservation}
// @Failure 409 {object} response.Response
// @Router /api/v1/admin/reservations/{id} [patch]
func (h *Handler) UpdateReservation(c *gin.Context) {
	id, ok := handler.ParseID(c, "reservation")
	if !ok {
		return
	}

	var req reservationService.UpdateRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	res, err := h.reservationService.UpdateReservation(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, res)
}

// Confirm 确认预订
// @Summary 确认预订
// @Tags 预订
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Success 200 {object} response.Response{data=models.Reservation}
// @Router /api/v1/admin/reservations/{id}/confirm [post]
func (h *Handler) Confirm(c *gin.Context) {
	id, ok := handler.ParseID(c, "reservation")
	if !ok {
		return
	}

	res, err := h.reservationService.ConfirmReservation(c.Request.Context(), id)
	handler.MustSucceed(c, err, res)
}

// CheckIn 办理入住
// @Summary 办理入住
// @Tags 预订
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Success 200 {object} response.Response{data=models.Reservation}
// @Router /api/v1/admin/reservations/{id}/check-in [post]
func (h *Handler) CheckIn(c *gin.Context) {
	id, ok := handler.ParseID(c, "reservation")
	if !ok {
		return
	}

	res, err := h.reservationService.CheckIn(c.Request.Context(), id)
	handler.MustSucceed(c, err, res)
}

// CheckOut 办理退房
// @Summary 办理退房
// @Tags 预订
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Success 200 {object} response.Response{data=models.Reservation}
// @Router /api/v1/admin/reservations/{id}/check-out [post]
func (h *Handler) CheckOut(c *gin.Context) {
	id, ok := handler.ParseID(c, "reservation")
	if !ok {
		return
	}

	res, err := h.reservationService.CheckOut(c.Request.Context(), id)
	handler.MustSucceed(c, err, res)
}

// Cancel 取消预订，请求体可省略
// @Summary 取消预订
// @Tags 预订
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Param request body reservationService.CancelRequest false "取消原因"
// @Success 200 {object} response.Response{data=models.Reservation}
// @Router /api/v1/admin/reservations/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := handler.ParseID(c, "reservation")
	if !ok {
		return
	}

	var req reservationService.CancelRequest
	if c.Request.ContentLength > 0 && !handler.BindJSON(c, &req) {
		return
	}

	res, err := h.reservationService.CancelReservation(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, res)
}

// RecordPayment 记录线下收款
// @Summary 记录线下收款
// @Tags 预订
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Param request body reservationService.OfflinePaymentRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Reservation}
// @Router /api/v1/admin/reservations/{id}/payments [post]
func (h *Handler) RecordPayment(c *gin.Context) {
	id, ok := handler.ParseID(c, "reservation")
	if !ok {
		return
	}

	var req reservationService.OfflinePaymentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	res, err := h.reservationService.RecordOfflinePayment(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, res)
}

// GetInvoice 发票数据
// @Summary 发票数据
// @Tags 预订
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Success 200 {object} response.Response{data=reservationService.Invoice}
// @Router /api/v1/admin/reservations/{id}/invoice [get]
func (h *Handler) GetInvoice(c *gin.Context) {
	id, ok := handler.ParseID(c, "reservation")
	if !ok {
		return
	}

	inv, err := h.reservationService.GetInvoice(c.Request.Context(), id)
	handler.MustSucceed(c, err, inv)
}

// Export 导出预订为 xlsx
// @Summary 导出预订
// @Tags 预订
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security Bearer
// @Param from query string true "开始日期 YYYY-MM-DD"
// @Param to query string true "结束日期 YYYY-MM-DD（不含）"
// @Param status query string false "状态"
// @Success 200 {file} file
// @Router /api/v1/admin/reservations/export [get]
func (h *Handler) Export(c *gin.Context) {
	from, ok := handler.ParseQueryDay(c, "from")
	if !ok {
		return
	}
	to, ok := handler.ParseQueryDay(c, "to")
	if !ok {
		return
	}

	data, err := h.reservationService.ExportReservations(c.Request.Context(), from, to, c.Query("status"))
	if handler.HandleError(c, err) {
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+reservationService.ExportFileName(from, to)+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// Dashboard 前台看板
// @Summary 前台看板
// @Tags 预订
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=reservationService.DashboardStats}
// @Router /api/v1/admin/dashboard [get]
func (h *Handler) Dashboard(c *gin.Context) {
	stats, err := h.reservationService.Dashboard(c.Request.Context())
	handler.MustSucceed(c, err, stats)
}

// RegisterAdminRoutes 注册员工路由
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard", h.Dashboard)

	reservations := r.Group("/reservations")
	{
		reservations.GET("", h.ListReservations)
		reservations.POST("", h.CreateReservation)
		reservations.GET("/export", h.Export)
		reservations.GET("/:id", h.GetReservation)
		reservations.PATCH("/:id", h.UpdateReservation)
		reservations.GET("/:id/invoice", h.GetInvoice)
		reservations.POST("/:id/confirm", h.Confirm)
		reservations.POST("/:id/check-in", h.CheckIn)
		reservations.POST("/:id/check-out", h.CheckOut)
		reservations.POST("/:id/cancel", h.Cancel)
		reservations.POST("/:id/payments", h.RecordPayment)
	}
}
