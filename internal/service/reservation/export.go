package reservation

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/repository"
)

const exportSheet = "Reservations"

var exportHeaders = []string{
	"Reservation ID", "Status", "Source", "Guest", "Email", "Phone",
	"Room", "Check-in", "Check-out", "Nights", "Guests",
	"Subtotal", "Service Charge", "Extras", "Total", "Paid", "Outstanding",
	"Payment Status", "Gateway", "Created At",
}

// ExportFileName 导出文件名
func ExportFileName(from, to time.Time) string {
	return fmt.Sprintf("reservations_%s_to_%s.xlsx", utils.FormatDay(from), utils.FormatDay(to))
}

// ExportReservations 导出与 [from, to) 有交集的预订为 xlsx
func (s *Service) ExportReservations(ctx context.Context, from, to time.Time, status string) ([]byte, error) {
	in, out, err := ValidateRange(from, to)
	if err != nil {
		return nil, err
	}

	list, err := s.reservationRepo.ListForExport(ctx, &repository.ReservationFilters{
		Status: status,
		From:   &in,
		To:     &out,
	})
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	data, err := buildWorkbook(in, out, list)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}
	return data, nil
}

func buildWorkbook(from, to time.Time, list []*models.Reservation) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
	_ = f.SetCellValue(exportSheet, "A1", fmt.Sprintf("Reservations %s to %s", utils.FormatDay(from), utils.FormatDay(to)))
	_ = f.MergeCell(exportSheet, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(exportSheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E4DCF0"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(exportSheet, cell, h)
		_ = f.SetCellStyle(exportSheet, cell, cell, headerStyle)
	}

	for r, res := range list {
		row := r + 3
		values := exportRow(res)
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 22)
	_ = f.SetColWidth(exportSheet, "B", lastCol, 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func exportRow(res *models.Reservation) []interface{} {
	var guestName, email, phone, room string
	if res.Guest != nil {
		guestName = res.Guest.FullName()
		email = res.Guest.Email
		phone = res.Guest.Phone
	}
	if res.Room != nil {
		room = res.Room.RoomNumber
	}
	return []interface{}{
		res.ReservationID,
		res.Status,
		res.Source,
		guestName,
		email,
		phone,
		room,
		utils.FormatDay(res.CheckIn),
		utils.FormatDay(res.CheckOut),
		res.Nights(),
		res.NumGuests,
		res.Subtotal,
		res.ServiceCharge,
		res.ItemsTotal,
		res.TotalPrice,
		res.AmountPaid,
		res.Outstanding(),
		res.PaymentStatus,
		utils.SafeString(res.PaymentGateway),
		res.CreatedAt.Format(time.RFC3339),
	}
}
