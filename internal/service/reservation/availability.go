package reservation

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/lavendermoon/villa-pms/internal/common/cache"
	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/common/tracing"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
)

// availabilityKey 可用房缓存键，带缓存代际号
func availabilityKey(gen int64, checkIn, checkOut time.Time) string {
	return cache.BuildKey(cache.NamespaceAvailability, strconv.FormatInt(gen, 10), utils.FormatDay(checkIn), utils.FormatDay(checkOut))
}

// ValidateRange 校验入住区间，返回按天截断后的日期
func ValidateRange(checkIn, checkOut time.Time) (time.Time, time.Time, error) {
	in, out := utils.TruncateDay(checkIn), utils.TruncateDay(checkOut)
	if !out.After(in) {
		return in, out, errors.ErrInvalidRange
	}
	return in, out, nil
}

// FindAvailableRooms 查询区间内可预订的房间，按房间号升序
func (s *Service) FindAvailableRooms(ctx context.Context, checkIn, checkOut time.Time) ([]*models.Room, error) {
	in, out, err := ValidateRange(checkIn, checkOut)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.Start(ctx, "reservation.FindAvailableRooms", tracing.WithOperation("availability"))
	defer func() { tracing.End(span, err) }()

	key := ""
	if s.cacheEnabled() {
		gen, cacheErr := s.availabilityGen.Current(ctx)
		if cacheErr != nil {
			logger.Warn("Availability cache generation read failed", logger.Err(cacheErr))
		} else {
			key = availabilityKey(gen, in, out)
			var cached []*models.Room
			cacheErr = s.store.GetJSON(ctx, key, &cached)
			s.metrics.RecordCacheLookup(cache.NamespaceAvailability, cacheErr == nil)
			if cacheErr == nil {
				return cached, nil
			}
			if !stderrors.Is(cacheErr, cache.ErrCacheMiss) {
				logger.Warn("Availability cache read failed", logger.Err(cacheErr))
			}
		}
	}

	rooms, err := s.roomRepo.ListAvailable(ctx, in, out)
	if err != nil {
		err = errors.ErrDatabaseError.WithError(err)
		return nil, err
	}

	if key != "" {
		if cacheErr := s.store.SetJSON(ctx, key, rooms, s.cfg.AvailabilityTTL); cacheErr != nil {
			logger.Warn("Availability cache write failed", logger.Err(cacheErr))
		}
	}
	return rooms, nil
}

// IsRoomAvailable 检查房间在区间内是否空闲，excludeID > 0 时忽略该预订自身
func (s *Service) IsRoomAvailable(ctx context.Context, roomID int64, checkIn, checkOut time.Time, excludeID int64) (bool, error) {
	in, out, err := ValidateRange(checkIn, checkOut)
	if err != nil {
		return false, err
	}

	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return false, roomLookupError(err)
	}
	if room.Status == models.RoomStatusMaintenance {
		return false, nil
	}

	overlap, err := s.reservationRepo.HasOverlap(ctx, roomID, in, out, excludeID)
	if err != nil {
		return false, errors.ErrDatabaseError.WithError(err)
	}
	return !overlap, nil
}

// invalidateAvailability 使可用房缓存失效
func (s *Service) invalidateAvailability(ctx context.Context) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.availabilityGen.Bump(ctx); err != nil {
		logger.Warn("Availability cache invalidation failed", logger.Err(err))
	}
}

func (s *Service) cacheEnabled() bool {
	return s.store != nil && s.cfg.AvailabilityTTL > 0
}
