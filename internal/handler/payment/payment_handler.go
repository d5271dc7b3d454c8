// Package payment 提供支付相关的 HTTP Handler
package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/handler"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/common/response"
	paymentService "github.com/lavendermoon/villa-pms/internal/service/payment"
)

// Handler 支付处理器
type Handler struct {
	paymentService *paymentService.Service
}

// NewHandler 创建支付处理器
func NewHandler(paymentSvc *paymentService.Service) *Handler {
	return &Handler{paymentService: paymentSvc}
}

// InitiateRequest 发起支付请求
type InitiateRequest struct {
	ReservationID string `json:"reservation_id" binding:"required,max=32"`
}

// CallbackResponse 服务端回调（POST）的处理结果
type CallbackResponse struct {
	ReservationID string `json:"reservation_id"`
	Outcome       string `json:"outcome"`
	Applied       bool   `json:"applied"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// ListGateways 已启用的支付网关
// @Summary 已启用的支付网关
// @Tags 支付
// @Produce json
// @Success 200 {object} response.Response{data=[]string}
// @Router /api/v1/public/payments/gateways [get]
func (h *Handler) ListGateways(c *gin.Context) {
	response.Success(c, h.paymentService.Gateways())
}

// Initiate 为待支付预订向网关下单
// @Summary 发起支付
// @Tags 支付
// @Accept json
// @Produce json
// @Param gateway path string true "网关 paypal/wipay"
// @Param request body InitiateRequest true "请求参数"
// @Success 200 {object} response.Response{data=paymentService.InitiateResponse}
// @Failure 409 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/public/payments/{gateway}/initiate [post]
func (h *Handler) Initiate(c *gin.Context) {
	var req InitiateRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.paymentService.InitiatePayment(c.Request.Context(), req.ReservationID, c.Param("gateway"))
	handler.MustSucceed(c, err, result)
}

// CallbackRedirect 网关浏览器回跳，处理后重定向到前端结果页
// @Summary 支付回跳
// @Tags 支付
// @Param gateway path string true "网关 paypal/wipay"
// @Success 302
// @Router /api/v1/payments/{gateway}/callback [get]
func (h *Handler) CallbackRedirect(c *gin.Context) {
	gateway := c.Param("gateway")
	result, err := h.paymentService.HandleCallback(c.Request.Context(), gateway, c.Request.URL.Query())
	if err != nil {
		logCallbackError(gateway, err)
	}
	c.Redirect(http.StatusFound, h.paymentService.RedirectURL(result, err))
}

// CallbackNotify 网关服务端通知，返回 JSON
// @Summary 支付通知
// @Tags 支付
// @Accept x-www-form-urlencoded
// @Produce json
// @Param gateway path string true "网关 paypal/wipay"
// @Success 200 {object} response.Response{data=CallbackResponse}
// @Failure 401 {object} response.Response
// @Router /api/v1/payments/{gateway}/callback [post]
func (h *Handler) CallbackNotify(c *gin.Context) {
	gateway := c.Param("gateway")
	if err := c.Request.ParseForm(); err != nil {
		handler.HandleError(c, errors.ValidationError("invalid callback payload"))
		return
	}

	result, err := h.paymentService.HandleCallback(c.Request.Context(), gateway, c.Request.Form)
	if err != nil {
		logCallbackError(gateway, err)
		handler.HandleError(c, err)
		return
	}

	res := result.Reservation
	response.Success(c, &CallbackResponse{
		ReservationID: res.ReservationID,
		Outcome:       result.Outcome,
		Applied:       result.Applied,
		Status:        res.Status,
		PaymentStatus: res.PaymentStatus,
	})
}

func logCallbackError(gateway string, err error) {
	logger.Warn("Payment callback failed",
		logger.Gateway(gateway),
		logger.String("kind", errors.KindOf(err).String()),
		logger.Err(err),
	)
}

// RegisterPublicRoutes 注册官网路由
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/payments/gateways", h.ListGateways)
	r.POST("/payments/:gateway/initiate", h.Initiate)
}

// RegisterCallbackRoutes 注册网关回调路由（验签，不需要认证）
func (h *Handler) RegisterCallbackRoutes(r *gin.RouterGroup) {
	r.GET("/payments/:gateway/callback", h.CallbackRedirect)
	r.POST("/payments/:gateway/callback", h.CallbackNotify)
}
