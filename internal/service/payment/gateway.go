// Package payment 在线支付：发起、回调校验与对账
package payment

import (
	"context"
	"net/url"
	"sort"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/models"
)

// InitiateRequest 发起支付的输入，Reservation 需已加载客人
type InitiateRequest struct {
	Reservation *models.Reservation
	Amount      float64
	ReturnURL   string
	CancelURL   string
}

// InitiateResult 网关下单结果
type InitiateResult struct {
	OrderID       string            `json:"order_id"`
	ApprovalURL   string            `json:"approval_url,omitempty"`   // 跳转类网关
	PaymentURL    string            `json:"payment_url,omitempty"`    // 表单类网关
	PaymentParams map[string]string `json:"payment_params,omitempty"` // 表单字段（含签名）
}

// CallbackResult 校验通过的回调
type CallbackResult struct {
	Gateway       string
	OrderID       string
	Outcome       string // models.PaymentOutcomeSuccess / PaymentOutcomeFailure
	TransactionID string
	Amount        float64 // 网关报告的实收金额，0 表示未报告

	// CaptureRequired 需在确认预订待支付后由 Capturer 扣款
	CaptureRequired bool
}

// Gateway 支付网关
type Gateway interface {
	Name() string
	Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResult, error)
	// VerifyCallback 校验回调真实性，签名无效返回 ErrInvalidSignature
	VerifyCallback(ctx context.Context, params url.Values) (*CallbackResult, error)
}

// Capturer 回调只携带买家授权、由服务端扣款的网关
// Capture 按扣款结果填写 Outcome、TransactionID 与 Amount
type Capturer interface {
	Capture(ctx context.Context, cb *CallbackResult) error
}

// Registry 已启用的网关
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry 创建网关注册表
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

// Register 注册网关，同名覆盖
func (r *Registry) Register(g Gateway) {
	if g == nil {
		return
	}
	r.gateways[g.Name()] = g
}

// Get 按名称获取网关
func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, errors.ErrGatewayNotSupported.WithMessagef("payment gateway %q is not enabled", name)
	}
	return g, nil
}

// Names 已启用网关名称，按字母排序
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
