package notification

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/lavendermoon/villa-pms/internal/models"
)

const displayDateLayout = "Monday, January 2, 2006"

// 邮件标题
var subjectFormats = map[string]string{
	models.NotificationKindBookingConfirmation: "Booking Confirmation #%s - %s",
	models.NotificationKindReservationUpdate:   "Reservation Updated #%s - %s",
	models.NotificationKindCancellation:        "Reservation Cancelled #%s - %s",
}

// 邮件标题首行
var headlines = map[string]string{
	models.NotificationKindBookingConfirmation: "Your booking is confirmed",
	models.NotificationKindReservationUpdate:   "Your reservation has been updated",
	models.NotificationKindCancellation:        "Your reservation has been cancelled",
}

const htmlLayout = `<!DOCTYPE html>
<html>
<body style="font-family: Georgia, serif; color: #333; max-width: 600px; margin: 0 auto;">
  <div style="background: #6b4f8a; color: #fff; padding: 24px; text-align: center;">
    <h1 style="margin: 0;">{{.HotelName}}</h1>
  </div>
  <div style="padding: 24px;">
    <h2>{{.Headline}}</h2>
    <p>Dear {{.GuestName}},</p>
    {{- if eq .Kind "booking_confirmation"}}
    <p>Thank you for choosing {{.HotelName}}. Your payment has been received and your stay is confirmed.</p>
    {{- else if eq .Kind "reservation_update"}}
    <p>The following details of your reservation have changed:</p>
    <h3>Changes Made</h3>
    <ul>{{range .Changes}}<li>{{.}}</li>{{end}}</ul>
    {{- else}}
    <p>Your reservation has been cancelled.{{if .CancellationReason}} Reason: {{.CancellationReason}}.{{end}}</p>
    {{- end}}
    <table style="width: 100%; border-collapse: collapse;">
      <tr><td>Reservation</td><td><strong>{{.ReservationID}}</strong></td></tr>
      <tr><td>Room</td><td>{{.RoomName}} ({{.RoomNumber}})</td></tr>
      <tr><td>Check-in</td><td>{{.CheckIn}}</td></tr>
      <tr><td>Check-out</td><td>{{.CheckOut}}</td></tr>
      {{- if ne .Kind "cancellation"}}
      <tr><td>Nights</td><td>{{.Nights}}</td></tr>
      <tr><td>Guests</td><td>{{.NumGuests}}</td></tr>
      <tr><td>Total</td><td>{{.Total}}</td></tr>
      <tr><td>Paid</td><td>{{.AmountPaid}}</td></tr>
      <tr><td>Balance</td><td>{{.Outstanding}}</td></tr>
      {{- end}}
    </table>
    {{- if .SpecialRequests}}
    <p><em>Special requests:</em> {{.SpecialRequests}}</p>
    {{- end}}
    <p>If you have any questions, simply reply to this email.</p>
    <p>Warm regards,<br>{{.HotelName}}</p>
  </div>
</body>
</html>`

const textLayout = `{{.HotelName}}

{{.Headline}}

Dear {{.GuestName}},
{{if eq .Kind "booking_confirmation"}}
Thank you for choosing {{.HotelName}}. Your payment has been received and your stay is confirmed.
{{else if eq .Kind "reservation_update"}}
Changes Made:
{{range .Changes}}- {{.}}
{{end}}{{else}}
Your reservation has been cancelled.{{if .CancellationReason}} Reason: {{.CancellationReason}}.{{end}}
{{end}}
Reservation: {{.ReservationID}}
Room: {{.RoomName}} ({{.RoomNumber}})
Check-in: {{.CheckIn}}
Check-out: {{.CheckOut}}
{{- if ne .Kind "cancellation"}}
Nights: {{.Nights}}
Guests: {{.NumGuests}}
Total: {{.Total}}
Paid: {{.AmountPaid}}
Balance: {{.Outstanding}}
{{- end}}
{{- if .SpecialRequests}}
Special requests: {{.SpecialRequests}}
{{- end}}

Warm regards,
{{.HotelName}}
`

// view 模板数据
type view struct {
	Kind               string
	Headline           string
	HotelName          string
	GuestName          string
	ReservationID      string
	RoomName           string
	RoomNumber         string
	CheckIn            string
	CheckOut           string
	Nights             int
	NumGuests          int
	Total              string
	AmountPaid         string
	Outstanding        string
	SpecialRequests    string
	CancellationReason string
	Changes            []string
}

// Renderer 渲染通知内容
type Renderer struct {
	hotelName string
	html      *htmltemplate.Template
	text      *texttemplate.Template
}

// NewRenderer 创建渲染器
func NewRenderer(hotelName string) *Renderer {
	return &Renderer{
		hotelName: hotelName,
		html:      htmltemplate.Must(htmltemplate.New("email.html").Parse(htmlLayout)),
		text:      texttemplate.Must(texttemplate.New("email.txt").Parse(textLayout)),
	}
}

// Subject 邮件标题
func (r *Renderer) Subject(kind, reservationID string) string {
	format, ok := subjectFormats[kind]
	if !ok {
		return fmt.Sprintf("Reservation #%s - %s", reservationID, r.hotelName)
	}
	return fmt.Sprintf(format, reservationID, r.hotelName)
}

// RenderEmail 渲染邮件
func (r *Renderer) RenderEmail(kind string, payload *Payload) (*Message, error) {
	if _, ok := subjectFormats[kind]; !ok {
		return nil, fmt.Errorf("unknown notification kind %q", kind)
	}
	v := r.buildView(kind, payload)

	var htmlBuf, textBuf bytes.Buffer
	if err := r.html.Execute(&htmlBuf, v); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	if err := r.text.Execute(&textBuf, v); err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}

	return &Message{
		Kind:          kind,
		Channel:       models.NotificationChannelEmail,
		ReservationID: payload.Reservation.ReservationID,
		Recipient:     payload.Reservation.Guest.Email,
		Subject:       r.Subject(kind, payload.Reservation.ReservationID),
		HTML:          htmlBuf.String(),
		Text:          textBuf.String(),
	}, nil
}

// RenderSMS 渲染短信模板参数，客人无手机号时返回 nil
func (r *Renderer) RenderSMS(kind string, payload *Payload) *Message {
	guest := payload.Reservation.Guest
	if strings.TrimSpace(guest.Phone) == "" {
		return nil
	}
	res := payload.Reservation
	return &Message{
		Kind:          kind,
		Channel:       models.NotificationChannelSMS,
		ReservationID: res.ReservationID,
		Recipient:     guest.Phone,
		Subject:       r.Subject(kind, res.ReservationID),
		Params: map[string]string{
			"name":           guest.FirstName,
			"reservation_id": res.ReservationID,
			"check_in":       res.CheckIn.Format("2006-01-02"),
			"check_out":      res.CheckOut.Format("2006-01-02"),
			"hotel":          r.hotelName,
		},
	}
}

func (r *Renderer) buildView(kind string, payload *Payload) *view {
	res := payload.Reservation
	v := &view{
		Kind:          kind,
		Headline:      headlines[kind],
		HotelName:     r.hotelName,
		GuestName:     res.Guest.FullName(),
		ReservationID: res.ReservationID,
		CheckIn:       res.CheckIn.Format(displayDateLayout),
		CheckOut:      res.CheckOut.Format(displayDateLayout),
		Nights:        res.Nights(),
		NumGuests:     res.NumGuests,
		Total:         money(res.TotalPrice),
		AmountPaid:    money(res.AmountPaid),
		Outstanding:   money(res.Outstanding()),
		Changes:       payload.Changes,
	}
	if res.Room != nil {
		v.RoomName = res.Room.Name
		v.RoomNumber = res.Room.RoomNumber
	}
	v.SpecialRequests = strings.TrimSpace(res.SpecialRequests)
	if res.CancellationReason != nil {
		v.CancellationReason = strings.ReplaceAll(*res.CancellationReason, "_", " ")
	}
	return v
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
