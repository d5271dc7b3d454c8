package models

// PaymentStatus 预订的支付状态
const (
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// PaymentGateway 支付网关
const (
	GatewayPayPal  = "paypal"
	GatewayWiPay   = "wipay"
	GatewayOffline = "offline"
)

// PaymentOutcome 网关回调结果
const (
	PaymentOutcomeSuccess = "success"
	PaymentOutcomeFailure = "failure"
)
