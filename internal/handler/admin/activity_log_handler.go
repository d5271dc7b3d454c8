// Package admin 管理端 HTTP Handler
package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/lavendermoon/villa-pms/internal/common/handler"
	"github.com/lavendermoon/villa-pms/internal/middleware"
	"github.com/lavendermoon/villa-pms/internal/models"
	adminService "github.com/lavendermoon/villa-pms/internal/service/admin"
)

// ActivityLogHandler 员工操作日志处理器
type ActivityLogHandler struct {
	logService *adminService.ActivityLogService
}

// NewActivityLogHandler 创建操作日志处理器
func NewActivityLogHandler(logSvc *adminService.ActivityLogService) *ActivityLogHandler {
	return &ActivityLogHandler{logService: logSvc}
}

// ListLogs 操作日志列表
// @Summary 员工操作日志
// @Tags 审计
// @Produce json
// @Security Bearer
// @Param staff_id query int false "员工ID"
// @Param module query string false "模块"
// @Param action query string false "动作"
// @Param target_id query string false "目标ID"
// @Param from query string false "开始日期 YYYY-MM-DD"
// @Param to query string false "结束日期 YYYY-MM-DD"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/activity-logs [get]
func (h *ActivityLogHandler) ListLogs(c *gin.Context) {
	var req adminService.ActivityLogListRequest
	if !handler.BindQuery(c, &req) {
		return
	}
	p := handler.BindPagination(c)

	logs, total, err := h.logService.ListLogs(c.Request.Context(), &req, p)
	handler.MustSucceedPage(c, err, logs, total, p)
}

// RegisterRoutes 注册路由，仅 admin 与 manager
func (h *ActivityLogHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/activity-logs",
		middleware.RequireRoles(models.StaffRoleAdmin, models.StaffRoleManager),
		h.ListLogs,
	)
}
