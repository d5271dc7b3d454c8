package payment

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/pkg/paypal"
)

// PayPalGateway PayPal Orders v2，买家批准后回调时扣款
type PayPalGateway struct {
	client    *paypal.Client
	hotelName string
}

// NewPayPalGateway 创建 PayPal 网关
func NewPayPalGateway(client *paypal.Client, hotelName string) *PayPalGateway {
	return &PayPalGateway{client: client, hotelName: hotelName}
}

// Name 网关名称
func (g *PayPalGateway) Name() string {
	return models.GatewayPayPal
}

// Initiate 创建订单并返回买家确认页
func (g *PayPalGateway) Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResult, error) {
	res := req.Reservation
	orderReq := &paypal.CreateOrderRequest{
		ReferenceID: res.ReservationID,
		Description: fmt.Sprintf("Reservation %s - %s", res.ReservationID, g.hotelName),
		Amount:      req.Amount,
		ReturnURL:   req.ReturnURL,
		CancelURL:   req.CancelURL,
	}
	if res.Guest != nil {
		orderReq.GivenName = res.Guest.FirstName
		orderReq.Surname = res.Guest.LastName
		orderReq.Email = res.Guest.Email
	}

	order, err := g.client.CreateOrder(ctx, orderReq)
	if err != nil {
		return nil, err
	}
	approval := order.ApprovalURL()
	if approval == "" {
		return nil, fmt.Errorf("paypal order %s has no approval link", order.ID)
	}
	return &InitiateResult{OrderID: order.ID, ApprovalURL: approval}, nil
}

// VerifyCallback 只解析订单号，不调用网关
// 扣款在对账确认预订仍待支付后进行，扣款结果即为回调真实性的证明
func (g *PayPalGateway) VerifyCallback(_ context.Context, params url.Values) (*CallbackResult, error) {
	token := strings.TrimSpace(params.Get("token"))
	if token == "" {
		return nil, errors.ValidationError("missing paypal order token")
	}
	return &CallbackResult{
		Gateway:         g.Name(),
		OrderID:         token,
		Outcome:         models.PaymentOutcomeFailure,
		CaptureRequired: true,
	}, nil
}

// Capture 以服务端凭据扣款
func (g *PayPalGateway) Capture(ctx context.Context, cb *CallbackResult) error {
	cb.Outcome = models.PaymentOutcomeFailure
	order, err := g.client.CaptureOrder(ctx, cb.OrderID)
	if err != nil {
		var apiErr *paypal.APIError
		if stderrors.As(err, &apiErr) && apiErr.IsClientError() {
			// 未批准、已扣款或订单不存在
			return nil
		}
		return errors.UpstreamError("paypal capture failed", err)
	}

	if order.Status != paypal.OrderStatusCompleted {
		return nil
	}
	cb.Outcome = models.PaymentOutcomeSuccess
	cb.TransactionID = cb.OrderID
	if capture := order.FirstCapture(); capture != nil {
		cb.TransactionID = capture.ID
		cb.Amount = capture.Amount.Float()
	}
	return nil
}
