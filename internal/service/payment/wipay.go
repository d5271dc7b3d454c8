package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/pkg/wipay"
)

// WiPayGateway WiPay 托管支付页
type WiPayGateway struct {
	client *wipay.Client
}

// NewWiPayGateway 创建 WiPay 网关
func NewWiPayGateway(client *wipay.Client) *WiPayGateway {
	return &WiPayGateway{client: client}
}

// Name 网关名称
func (g *WiPayGateway) Name() string {
	return models.GatewayWiPay
}

// newOrderID 每次发起生成新的网关订单号
func newOrderID(reservationID string) string {
	return fmt.Sprintf("%s-%s", reservationID, strings.ToUpper(uuid.NewString()[:8]))
}

// Initiate 生成签名表单，由前端提交到托管支付页
func (g *WiPayGateway) Initiate(_ context.Context, req *InitiateRequest) (*InitiateResult, error) {
	res := req.Reservation
	payReq := &wipay.PaymentRequest{
		OrderID:   newOrderID(res.ReservationID),
		Amount:    req.Amount,
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	}
	if res.Guest != nil {
		payReq.FirstName = res.Guest.FirstName
		payReq.LastName = res.Guest.LastName
		payReq.Email = res.Guest.Email
		payReq.Phone = res.Guest.Phone
	}

	hosted := g.client.BuildPayment(payReq)
	return &InitiateResult{
		OrderID:       hosted.OrderID,
		PaymentURL:    hosted.PaymentURL,
		PaymentParams: hosted.Params,
	}, nil
}

// VerifyCallback 成功回调必须带有效签名；失败回调若带签名也需有效
func (g *WiPayGateway) VerifyCallback(_ context.Context, params url.Values) (*CallbackResult, error) {
	cb := wipay.ParseCallback(params)
	if cb.OrderID == "" || cb.Status == "" {
		return nil, errors.ValidationError("missing order_id or status")
	}
	if (cb.Succeeded() || cb.Hash != "") && !g.client.VerifyHash(cb) {
		return nil, errors.ErrInvalidSignature
	}

	result := &CallbackResult{
		Gateway: g.Name(),
		OrderID: cb.OrderID,
		Outcome: models.PaymentOutcomeFailure,
	}
	// 未签名的失败回调只标记失败，不采信其中的交易号
	if cb.Hash != "" {
		result.TransactionID = cb.TransactionID
	}
	if cb.Succeeded() {
		result.Outcome = models.PaymentOutcomeSuccess
		result.Amount = cb.TotalAmount()
	}
	return result, nil
}
