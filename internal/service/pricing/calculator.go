// Package pricing 计算预订价格，纯函数，无 I/O
package pricing

import (
	"math"
	"time"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
)

// ServiceChargeRate 服务费比例，仅可按预订开关，不可调整
const ServiceChargeRate = 0.15

// Input 计价输入
type Input struct {
	Rate                 float64
	Nights               int
	Override             *float64 // 手动总价，存在时替代 Rate × Nights
	ServiceChargeEnabled bool
	Items                []models.LineItem
}

// Breakdown 计价结果，均已按分取整
type Breakdown struct {
	Subtotal      float64 `json:"subtotal"`
	ServiceCharge float64 `json:"service_charge"`
	ItemsTotal    float64 `json:"items_total"`
	Total         float64 `json:"total"`
}

// Nights 入住晚数，按天向上取整，至少 1 晚
func Nights(checkIn, checkOut time.Time) (int, error) {
	if !checkOut.After(checkIn) {
		return 0, errors.ErrInvalidRange
	}
	return int(math.Ceil(checkOut.Sub(checkIn).Hours() / 24)), nil
}

// ComputeTotal 计算总价
// subtotal = override 或 rate × nights
// total = subtotal + 15% 服务费（开启时） + 附加项合计
func ComputeTotal(in Input) (*Breakdown, error) {
	if in.Nights < 1 {
		return nil, errors.ErrInvalidRange.WithMessage("reservation must span at least one night")
	}
	if in.Rate < 0 {
		return nil, errors.ErrInvalidRoomRate
	}

	var subtotal float64
	if in.Override != nil {
		if *in.Override < 0 {
			return nil, errors.ErrInvalidAmount.WithMessage("custom total must not be negative")
		}
		subtotal = utils.RoundCents(*in.Override)
	} else {
		subtotal = utils.RoundCents(in.Rate * float64(in.Nights))
	}

	var itemsTotal float64
	for _, item := range in.Items {
		if item.Amount < 0 {
			return nil, errors.ErrInvalidAmount.WithMessagef("amount for %q must not be negative", item.Description)
		}
		itemsTotal += item.Amount
	}
	itemsTotal = utils.RoundCents(itemsTotal)

	var serviceCharge float64
	if in.ServiceChargeEnabled {
		serviceCharge = utils.RoundCents(subtotal * ServiceChargeRate)
	}

	return &Breakdown{
		Subtotal:      subtotal,
		ServiceCharge: serviceCharge,
		ItemsTotal:    itemsTotal,
		Total:         utils.RoundCents(subtotal + serviceCharge + itemsTotal),
	}, nil
}

// Outstanding 未付余额，负数表示多付，不做下限截断
func Outstanding(total, amountPaid float64) float64 {
	return utils.RoundCents(total - amountPaid)
}

// ForReservation 按预订当前字段和房价重新计价
func ForReservation(r *models.Reservation, rate float64) (*Breakdown, error) {
	nights, err := Nights(r.CheckIn, r.CheckOut)
	if err != nil {
		return nil, err
	}
	in := Input{
		Rate:                 rate,
		Nights:               nights,
		ServiceChargeEnabled: r.ServiceChargeEnabled,
		Items:                r.AdditionalItems,
	}
	if r.UseCustomTotal && r.CustomTotal != nil {
		in.Override = r.CustomTotal
	}
	return ComputeTotal(in)
}

// Apply 把计价结果写回预订
func (b *Breakdown) Apply(r *models.Reservation) {
	r.Subtotal = b.Subtotal
	r.ServiceCharge = b.ServiceCharge
	r.ItemsTotal = b.ItemsTotal
	r.TotalPrice = b.Total
}
