// Package handler 提供 API Handler 的通用辅助函数
// 统一错误响应、身份检查、参数解析与分页
package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/common/response"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/middleware"
)

// HandleError 按错误分类写出响应；err 为 nil 时返回 false
//
// 使用示例:
//
//	room, err := svc.GetRoom(ctx, id)
//	if handler.HandleError(c, err) {
//	    return
//	}
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	appErr := errors.GetAppError(err)
	status := appErr.Kind.HTTPStatus()
	if status >= 500 {
		logger.Error("request failed",
			logger.RequestID(middleware.GetRequestID(c)),
			logger.Path(c.FullPath()),
			logger.Err(err),
		)
		// 内部错误不向调用方暴露细节
		if appErr.Kind == errors.KindInternal {
			response.Error(c, status, appErr.Code, "internal server error")
			return true
		}
	}
	response.Error(c, status, appErr.Code, appErr.Message)
	return true
}

// MustSucceed 有错误写错误响应，否则写成功响应
func MustSucceed(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Success(c, data)
}

// MustCreate 创建类接口的成功响应为 201
func MustCreate(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Created(c, data)
}

// MustSucceedPage 分页版本
func MustSucceedPage(c *gin.Context, err error, list interface{}, total int64, p utils.Pagination) {
	if HandleError(c, err) {
		return
	}
	response.SuccessPage(c, list, total, p.Page, p.PageSize)
}

// RequireStaffID 获取当前员工 ID，未登录时写出 401
func RequireStaffID(c *gin.Context) (int64, bool) {
	id := middleware.GetStaffID(c)
	if id == 0 {
		HandleError(c, errors.ErrUnauthorized)
		return 0, false
	}
	return id, true
}

// BindJSON 绑定请求体，失败时写出 400
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		HandleError(c, errors.ValidationError(err.Error()))
		return false
	}
	return true
}

// BindQuery 绑定查询参数，失败时写出 400
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		HandleError(c, errors.ValidationError(err.Error()))
		return false
	}
	return true
}

// ParseID 解析路径参数 id
func ParseID(c *gin.Context, resource string) (int64, bool) {
	return ParseParamID(c, "id", resource)
}

// ParseParamID 解析指定路径参数为正整数 ID
func ParseParamID(c *gin.Context, param, resource string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		HandleError(c, errors.ValidationError("invalid "+resource+" id"))
		return 0, false
	}
	return id, true
}

// ParseQueryDay 解析必填的 YYYY-MM-DD 查询参数
func ParseQueryDay(c *gin.Context, param string) (time.Time, bool) {
	raw := c.Query(param)
	if raw == "" {
		HandleError(c, errors.ValidationError(param+" is required"))
		return time.Time{}, false
	}
	d, err := utils.ParseDay(raw)
	if err != nil {
		HandleError(c, errors.ValidationError(param+" must be YYYY-MM-DD"))
		return time.Time{}, false
	}
	return d, true
}

// ParseOptionalQueryDay 解析可选的 YYYY-MM-DD 查询参数
func ParseOptionalQueryDay(c *gin.Context, param string) (*time.Time, bool) {
	if c.Query(param) == "" {
		return nil, true
	}
	d, ok := ParseQueryDay(c, param)
	if !ok {
		return nil, false
	}
	return &d, true
}

// BindPagination 从查询参数绑定分页
func BindPagination(c *gin.Context) utils.Pagination {
	var p utils.Pagination
	p.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	p.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	p.Normalize()
	return p
}
