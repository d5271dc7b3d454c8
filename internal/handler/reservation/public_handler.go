package reservation

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/handler"
	"github.com/lavendermoon/villa-pms/internal/common/response"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
	reservationService "github.com/lavendermoon/villa-pms/internal/service/reservation"
)

// PublicHandler 官网预订处理器
type PublicHandler struct {
	reservationService *reservationService.Service
}

// NewPublicHandler 创建官网预订处理器
func NewPublicHandler(reservationSvc *reservationService.Service) *PublicHandler {
	return &PublicHandler{reservationService: reservationSvc}
}

// AvailabilityResponse 可用性查询结果
type AvailabilityResponse struct {
	CheckIn   string         `json:"check_in"`
	CheckOut  string         `json:"check_out"`
	Nights    int            `json:"nights"`
	RoomID    int64          `json:"room_id,omitempty"`
	Available *bool          `json:"available,omitempty"`
	Rooms     []*models.Room `json:"rooms,omitempty"`
}

// PublicReservation 官网可见的预订摘要
type PublicReservation struct {
	ReservationID string  `json:"reservation_id"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	RoomName      string  `json:"room_name"`
	CheckIn       string  `json:"check_in"`
	CheckOut      string  `json:"check_out"`
	Nights        int     `json:"nights"`
	NumGuests     int     `json:"num_guests"`
	GuestName     string  `json:"guest_name"`
	TotalPrice    float64 `json:"total_price"`
	AmountPaid    float64 `json:"amount_paid"`
	Outstanding   float64 `json:"outstanding"`
}

// NewPublicReservation 由预订生成摘要
func NewPublicReservation(res *models.Reservation) *PublicReservation {
	view := &PublicReservation{
		ReservationID: res.ReservationID,
		Status:        res.Status,
		PaymentStatus: res.PaymentStatus,
		CheckIn:       utils.FormatDay(res.CheckIn),
		CheckOut:      utils.FormatDay(res.CheckOut),
		Nights:        res.Nights(),
		NumGuests:     res.NumGuests,
		TotalPrice:    res.TotalPrice,
		AmountPaid:    res.AmountPaid,
		Outstanding:   res.Outstanding(),
	}
	if res.Room != nil {
		view.RoomName = res.Room.Name
	}
	if res.Guest != nil {
		view.GuestName = res.Guest.FirstName + " " + res.Guest.LastName
	}
	return view
}

// Availability 查询区间内可预订房间，指定 room_id 时只判断该房间
// @Summary 查询可用房间
// @Tags 官网
// @Produce json
// @Param check_in query string true "入住日期 YYYY-MM-DD"
// @Param check_out query string true "离店日期 YYYY-MM-DD"
// @Param room_id query int false "房间ID"
// @Success 200 {object} response.Response{data=AvailabilityResponse}
// @Failure 400 {object} response.Response
// @Router /api/v1/public/availability [get]
func (h *PublicHandler) Availability(c *gin.Context) {
	checkIn, ok := handler.ParseQueryDay(c, "check_in")
	if !ok {
		return
	}
	checkOut, ok := handler.ParseQueryDay(c, "check_out")
	if !ok {
		return
	}
	in, out, err := reservationService.ValidateRange(checkIn, checkOut)
	if handler.HandleError(c, err) {
		return
	}

	resp := &AvailabilityResponse{
		CheckIn:  utils.FormatDay(in),
		CheckOut: utils.FormatDay(out),
		Nights:   int(out.Sub(in).Hours() / 24),
	}

	if raw := c.Query("room_id"); raw != "" {
		roomID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || roomID <= 0 {
			handler.HandleError(c, errors.ValidationError("invalid room id"))
			return
		}
		available, err := h.reservationService.IsRoomAvailable(c.Request.Context(), roomID, in, out, 0)
		if handler.HandleError(c, err) {
			return
		}
		resp.RoomID = roomID
		resp.Available = &available
		response.Success(c, resp)
		return
	}

	rooms, err := h.reservationService.FindAvailableRooms(c.Request.Context(), in, out)
	if handler.HandleError(c, err) {
		return
	}
	resp.Rooms = rooms
	response.Success(c, resp)
}

// CreateReservation 官网下单，来源固定为 direct
// @Summary 官网预订
// @Tags 官网
// @Accept json
// @Produce json
// @Param request body reservationService.PublicCreateRequest true "请求参数"
// @Success 201 {object} response.Response{data=PublicReservation}
// @Failure 409 {object} response.Response
// @Router /api/v1/public/reservations [post]
func (h *PublicHandler) CreateReservation(c *gin.Context) {
	var req reservationService.PublicCreateRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	res, err := h.reservationService.CreateReservation(c.Request.Context(), req.ToCreateRequest())
	if handler.HandleError(c, err) {
		return
	}
	response.Created(c, NewPublicReservation(res))
}

// GetReservation 按预订编号与预订邮箱查询摘要
// @Summary 查询预订摘要
// @Tags 官网
// @Produce json
// @Param reservation_id path string true "预订编号"
// @Param email query string true "预订时填写的邮箱"
// @Success 200 {object} response.Response{data=PublicReservation}
// @Failure 404 {object} response.Response
// @Router /api/v1/public/reservations/{reservation_id} [get]
func (h *PublicHandler) GetReservation(c *gin.Context) {
	res, err := h.reservationService.GetForGuest(c.Request.Context(), c.Param("reservation_id"), c.Query("email"))
	if handler.HandleError(c, err) {
		return
	}
	response.Success(c, NewPublicReservation(res))
}

// RegisterPublicRoutes 注册公开路由
func (h *PublicHandler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/availability", h.Availability)
	r.POST("/reservations", h.CreateReservation)
	r.GET("/reservations/:reservation_id", h.GetReservation)
}
