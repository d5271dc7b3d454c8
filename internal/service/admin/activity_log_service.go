// Package admin 管理端服务
package admin

import (
	"context"
	"time"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/repository"
)

// ActivityLogService 员工操作日志查询
type ActivityLogService struct {
	logRepo *repository.ActivityLogRepository
}

// NewActivityLogService 创建操作日志服务
func NewActivityLogService(logRepo *repository.ActivityLogRepository) *ActivityLogService {
	return &ActivityLogService{logRepo: logRepo}
}

// ActivityLogListRequest 日志过滤条件
type ActivityLogListRequest struct {
	StaffID  int64  `form:"staff_id"`
	Module   string `form:"module"`
	Action   string `form:"action"`
	TargetID string `form:"target_id"`
	From     string `form:"from"` // YYYY-MM-DD，含当天
	To       string `form:"to"`   // YYYY-MM-DD，含当天
}

// ListLogs 分页查询操作日志，按时间倒序
func (s *ActivityLogService) ListLogs(ctx context.Context, req *ActivityLogListRequest, p utils.Pagination) ([]*models.StaffActivityLog, int64, error) {
	filters := map[string]interface{}{}
	if req != nil {
		if req.StaffID > 0 {
			filters["staff_id"] = req.StaffID
		}
		if req.Module != "" {
			filters["module"] = req.Module
		}
		if req.Action != "" {
			filters["action"] = req.Action
		}
		if req.TargetID != "" {
			filters["target_id"] = req.TargetID
		}
		if req.From != "" {
			from, err := utils.ParseDay(req.From)
			if err != nil {
				return nil, 0, errors.ValidationError("from must be YYYY-MM-DD")
			}
			filters["start_time"] = from
		}
		if req.To != "" {
			to, err := utils.ParseDay(req.To)
			if err != nil {
				return nil, 0, errors.ValidationError("to must be YYYY-MM-DD")
			}
			filters["end_time"] = to.Add(24*time.Hour - time.Nanosecond)
		}
	}

	logs, total, err := s.logRepo.List(ctx, p.GetOffset(), p.GetLimit(), filters)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return logs, total, nil
}
