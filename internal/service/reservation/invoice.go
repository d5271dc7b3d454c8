package reservation

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/common/qrcode"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/service/pricing"
	"github.com/lavendermoon/villa-pms/pkg/oss"
)

// InvoiceQR 发票二维码，有上传器时上传 PNG，否则返回 data URL
type InvoiceQR struct {
	generator *qrcode.Generator
	uploader  oss.Uploader
}

// NewInvoiceQR 创建发票二维码生成器，uploader 可为 nil
func NewInvoiceQR(generator *qrcode.Generator, uploader oss.Uploader) *InvoiceQR {
	if generator == nil {
		generator = qrcode.NewGenerator(qrcode.WithSize(200))
	}
	return &InvoiceQR{generator: generator, uploader: uploader}
}

// Render 生成指向 content 的二维码
func (q *InvoiceQR) Render(ctx context.Context, reservationID, content string) (string, error) {
	if q.uploader != nil {
		png, err := q.generator.PNG(content)
		if err != nil {
			return "", err
		}
		url, err := q.uploader.Upload(ctx, fmt.Sprintf("qr/%s.png", reservationID), bytes.NewReader(png), "image/png")
		if err == nil {
			return url, nil
		}
		logger.Warn("Invoice QR upload failed, falling back to data URL",
			logger.ReservationID(reservationID),
			logger.Err(err),
		)
	}
	return q.generator.DataURL(content)
}

// InvoiceLine 发票明细行
type InvoiceLine struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// InvoiceParty 发票上的客人信息
type InvoiceParty struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Invoice 发票数据
type Invoice struct {
	ReservationID     string        `json:"reservation_id"`
	IssuedAt          string        `json:"issued_at"`
	Status            string        `json:"status"`
	PaymentStatus     string        `json:"payment_status"`
	Guest             InvoiceParty  `json:"guest"`
	RoomNumber        string        `json:"room_number"`
	RoomName          string        `json:"room_name"`
	CheckIn           string        `json:"check_in"`
	CheckOut          string        `json:"check_out"`
	Nights            int           `json:"nights"`
	NumGuests         int           `json:"num_guests"`
	Lines             []InvoiceLine `json:"lines"`
	Subtotal          float64       `json:"subtotal"`
	ServiceChargeRate float64       `json:"service_charge_rate"`
	ServiceCharge     float64       `json:"service_charge"`
	ItemsTotal        float64       `json:"items_total"`
	Total             float64       `json:"total"`
	AmountPaid        float64       `json:"amount_paid"`
	Outstanding       float64       `json:"outstanding"`
	InvoiceURL        string        `json:"invoice_url,omitempty"`
	QRCode            string        `json:"qr_code,omitempty"`
}

// GetInvoice 生成发票数据
func (s *Service) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	res, err := s.loadReservation(ctx, s.reservationRepo, id)
	if err != nil {
		return nil, err
	}

	inv := BuildInvoice(res)
	inv.IssuedAt = utils.FormatDay(s.now())

	if s.cfg.PublicBaseURL != "" {
		inv.InvoiceURL = fmt.Sprintf("%s/invoice/%s", strings.TrimRight(s.cfg.PublicBaseURL, "/"), res.ReservationID)
	}
	if s.invoiceQR != nil {
		content := inv.InvoiceURL
		if content == "" {
			content = res.ReservationID
		}
		qr, err := s.invoiceQR.Render(ctx, res.ReservationID, content)
		if err != nil {
			logger.Warn("Invoice QR generation failed", logger.ReservationID(res.ReservationID), logger.Err(err))
		} else {
			inv.QRCode = qr
		}
	}
	return inv, nil
}

// BuildInvoice 由预订生成发票明细（不含二维码）
func BuildInvoice(res *models.Reservation) *Invoice {
	nights := res.Nights()
	inv := &Invoice{
		ReservationID:     res.ReservationID,
		Status:            res.Status,
		PaymentStatus:     res.PaymentStatus,
		CheckIn:           utils.FormatDay(res.CheckIn),
		CheckOut:          utils.FormatDay(res.CheckOut),
		Nights:            nights,
		NumGuests:         res.NumGuests,
		Subtotal:          res.Subtotal,
		ServiceChargeRate: pricing.ServiceChargeRate,
		ServiceCharge:     res.ServiceCharge,
		ItemsTotal:        res.ItemsTotal,
		Total:             res.TotalPrice,
		AmountPaid:        res.AmountPaid,
		Outstanding:       pricing.Outstanding(res.TotalPrice, res.AmountPaid),
	}
	if res.Guest != nil {
		inv.Guest = InvoiceParty{
			Name:    res.Guest.FullName(),
			Email:   res.Guest.Email,
			Phone:   res.Guest.Phone,
			Address: res.Guest.Address,
		}
	}

	roomDesc := "Accommodation"
	if res.Room != nil {
		inv.RoomNumber = res.Room.RoomNumber
		inv.RoomName = res.Room.Name
		roomDesc = fmt.Sprintf("%s (Room %s)", res.Room.Name, res.Room.RoomNumber)
	}

	if res.UseCustomTotal {
		inv.Lines = append(inv.Lines, InvoiceLine{
			Description: roomDesc + ", special rate",
			Quantity:    1,
			UnitPrice:   res.Subtotal,
			Amount:      res.Subtotal,
		})
	} else {
		unit := 0.0
		if nights > 0 {
			unit = utils.RoundCents(res.Subtotal / float64(nights))
		}
		inv.Lines = append(inv.Lines, InvoiceLine{
			Description: roomDesc,
			Quantity:    nights,
			UnitPrice:   unit,
			Amount:      res.Subtotal,
		})
	}

	if res.ServiceCharge > 0 {
		inv.Lines = append(inv.Lines, InvoiceLine{
			Description: fmt.Sprintf("Service charge (%.0f%%)", pricing.ServiceChargeRate*100),
			Quantity:    1,
			UnitPrice:   res.ServiceCharge,
			Amount:      res.ServiceCharge,
		})
	}
	for _, item := range res.AdditionalItems {
		inv.Lines = append(inv.Lines, InvoiceLine{
			Description: item.Description,
			Quantity:    1,
			UnitPrice:   item.Amount,
			Amount:      item.Amount,
		})
	}
	return inv
}
