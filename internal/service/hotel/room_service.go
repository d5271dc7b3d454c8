// Package hotel 提供客房目录与客人档案服务
package hotel

import (
	"context"
	stderrors "errors"
	"strings"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/common/database"
	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/repository"
)

// RoomStatusPublisher 房态变化推送（客房部看板）
type RoomStatusPublisher interface {
	PublishRoomStatus(ctx context.Context, room *models.Room) error
}

// AvailabilityInvalidator 使可用房缓存失效
type AvailabilityInvalidator interface {
	Bump(ctx context.Context) error
}

// RoomService 客房服务
type RoomService struct {
	roomRepo     *repository.RoomRepository
	publisher    RoomStatusPublisher
	availability AvailabilityInvalidator
}

// RoomOption 客房服务选项
type RoomOption func(*RoomService)

// WithAvailabilityInvalidator 房间写入后使可用房缓存失效
func WithAvailabilityInvalidator(inv AvailabilityInvalidator) RoomOption {
	return func(s *RoomService) { s.availability = inv }
}

// NewRoomService 创建客房服务，publisher 可为 nil
func NewRoomService(roomRepo *repository.RoomRepository, publisher RoomStatusPublisher, opts ...RoomOption) *RoomService {
	s := &RoomService{
		roomRepo:  roomRepo,
		publisher: publisher,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RoomListRequest 房间列表请求
type RoomListRequest struct {
	Status    string `form:"status" binding:"omitempty,oneof=available occupied cleaning maintenance"`
	RoomType  string `form:"room_type" binding:"omitempty,oneof=room suite"`
	MinGuests int    `form:"min_guests" binding:"omitempty,min=1"`
}

// CreateRoomRequest 创建房间请求
type CreateRoomRequest struct {
	RoomNumber  string   `json:"room_number" binding:"required,max=20"`
	Name        string   `json:"name" binding:"required,max=100"`
	RoomType    string   `json:"room_type" binding:"required,oneof=room suite"`
	Rate        float64  `json:"rate" binding:"gte=0"`
	MaxGuests   int      `json:"max_guests" binding:"required,min=1"`
	Amenities   []string `json:"amenities"`
	Description string   `json:"description"`
	Status      string   `json:"status" binding:"omitempty,oneof=available occupied cleaning maintenance"`
}

// UpdateRoomRequest 更新房间请求，空字段不修改
type UpdateRoomRequest struct {
	RoomNumber  *string  `json:"room_number" binding:"omitempty,max=20"`
	Name        *string  `json:"name" binding:"omitempty,max=100"`
	RoomType    *string  `json:"room_type" binding:"omitempty,oneof=room suite"`
	Rate        *float64 `json:"rate" binding:"omitempty,gte=0"`
	MaxGuests   *int     `json:"max_guests" binding:"omitempty,min=1"`
	Amenities   []string `json:"amenities"`
	Description *string  `json:"description"`
	Status      *string  `json:"status" binding:"omitempty,oneof=available occupied cleaning maintenance"`
}

// ListRooms 房间列表，按房间号排序
func (s *RoomService) ListRooms(ctx context.Context, req *RoomListRequest) ([]*models.Room, error) {
	filters := map[string]interface{}{}
	if req != nil {
		filters["status"] = req.Status
		filters["room_type"] = req.RoomType
		filters["min_guests"] = req.MinGuests
	}
	rooms, err := s.roomRepo.List(ctx, filters)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return rooms, nil
}

// GetRoom 房间详情
func (s *RoomService) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	room, err := s.roomRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrRoomNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return room, nil
}

// CreateRoom 创建房间
func (s *RoomService) CreateRoom(ctx context.Context, req *CreateRoomRequest) (*models.Room, error) {
	number := strings.TrimSpace(req.RoomNumber)
	if number == "" {
		return nil, errors.ErrInvalidParams.WithMessage("room_number is required")
	}
	if !models.ValidRoomType(req.RoomType) {
		return nil, errors.ErrInvalidParams.WithMessage("room_type must be room or suite")
	}
	if req.Rate < 0 {
		return nil, errors.ErrInvalidRoomRate
	}
	if req.MaxGuests < 1 {
		return nil, errors.ErrInvalidParams.WithMessage("max_guests must be at least 1")
	}
	status := req.Status
	if status == "" {
		status = models.RoomStatusAvailable
	}
	if !models.ValidRoomStatus(status) {
		return nil, errors.ErrInvalidRoomStatus
	}

	exists, err := s.roomRepo.ExistsByRoomNumber(ctx, number, 0)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if exists {
		return nil, errors.ErrRoomNumberExists
	}

	room := &models.Room{
		RoomNumber:  number,
		Name:        strings.TrimSpace(req.Name),
		RoomType:    req.RoomType,
		Rate:        req.Rate,
		MaxGuests:   req.MaxGuests,
		Amenities:   normalizeAmenities(req.Amenities),
		Description: req.Description,
		Status:      status,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errors.ErrRoomNumberExists
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("room created", logger.RoomID(room.ID), logger.String("room_number", room.RoomNumber))
	s.invalidateAvailability(ctx)
	return room, nil
}

// UpdateRoom 更新房间
func (s *RoomService) UpdateRoom(ctx context.Context, id int64, req *UpdateRoomRequest) (*models.Room, error) {
	room, err := s.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	prevStatus := room.Status

	if req.RoomNumber != nil {
		number := strings.TrimSpace(*req.RoomNumber)
		if number == "" {
			return nil, errors.ErrInvalidParams.WithMessage("room_number is required")
		}
		if number != room.RoomNumber {
			exists, err := s.roomRepo.ExistsByRoomNumber(ctx, number, room.ID)
			if err != nil {
				return nil, errors.ErrDatabaseError.WithError(err)
			}
			if exists {
				return nil, errors.ErrRoomNumberExists
			}
			room.RoomNumber = number
		}
	}
	if req.Name != nil {
		room.Name = strings.TrimSpace(*req.Name)
	}
	if req.RoomType != nil {
		if !models.ValidRoomType(*req.RoomType) {
			return nil, errors.ErrInvalidParams.WithMessage("room_type must be room or suite")
		}
		room.RoomType = *req.RoomType
	}
	if req.Rate != nil {
		if *req.Rate < 0 {
			return nil, errors.ErrInvalidRoomRate
		}
		room.Rate = *req.Rate
	}
	if req.MaxGuests != nil {
		if *req.MaxGuests < 1 {
			return nil, errors.ErrInvalidParams.WithMessage("max_guests must be at least 1")
		}
		room.MaxGuests = *req.MaxGuests
	}
	if req.Amenities != nil {
		room.Amenities = normalizeAmenities(req.Amenities)
	}
	if req.Description != nil {
		room.Description = *req.Description
	}
	if req.Status != nil {
		if !models.ValidRoomStatus(*req.Status) {
			return nil, errors.ErrInvalidRoomStatus
		}
		room.Status = *req.Status
	}

	if err := s.roomRepo.Update(ctx, room); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errors.ErrRoomNumberExists
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	s.invalidateAvailability(ctx)

	if room.Status != prevStatus {
		s.publish(ctx, room)
	}
	return room, nil
}

// UpdateRoomStatus 更新房态
func (s *RoomService) UpdateRoomStatus(ctx context.Context, id int64, status string) (*models.Room, error) {
	if !models.ValidRoomStatus(status) {
		return nil, errors.ErrInvalidRoomStatus
	}
	room, err := s.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	if room.Status == status {
		return room, nil
	}

	if err := s.roomRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	room.Status = status
	s.invalidateAvailability(ctx)

	logger.Info("room status updated", logger.RoomID(id), logger.String("status", status))
	s.publish(ctx, room)
	return room, nil
}

// CountByStatus 房态分布
func (s *RoomService) CountByStatus(ctx context.Context) (map[string]int64, error) {
	counts, err := s.roomRepo.CountByStatus(ctx)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return counts, nil
}

func (s *RoomService) invalidateAvailability(ctx context.Context) {
	if s.availability == nil {
		return
	}
	if err := s.availability.Bump(ctx); err != nil {
		logger.Warn("availability cache invalidation failed", logger.Err(err))
	}
}

func (s *RoomService) publish(ctx context.Context, room *models.Room) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRoomStatus(ctx, room); err != nil {
		logger.Warn("publish room status failed", logger.RoomID(room.ID), logger.Err(err))
	}
}

// normalizeAmenities 去空白、去重，保持原顺序
func normalizeAmenities(in []string) models.StringList {
	out := make(models.StringList, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		key := strings.ToLower(a)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}
