// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/jwt"
	"github.com/lavendermoon/villa-pms/internal/common/response"
)

// 上下文键
const (
	ContextKeyStaffID    = "staff_id"
	ContextKeyStaffEmail = "staff_email"
	ContextKeyRole       = "role"
	ContextKeyClaims     = "claims"
)

// StaffAuth 员工认证中间件，要求有效的访问令牌
func StaffAuth(manager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortWithAppError(c, apperrors.ErrUnauthorized)
			return
		}

		claims, err := manager.ParseAccessToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortWithAppError(c, apperrors.ErrTokenExpired)
			} else {
				abortWithAppError(c, apperrors.ErrTokenInvalid)
			}
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalStaffAuth 带令牌时解析身份，不带时放行
func OptionalStaffAuth(manager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if claims, err := manager.ParseAccessToken(token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

func setClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set(ContextKeyStaffID, claims.StaffID)
	c.Set(ContextKeyStaffEmail, claims.Email)
	c.Set(ContextKeyRole, claims.Role)
	c.Set(ContextKeyClaims, claims)
}

func abortWithAppError(c *gin.Context, err *apperrors.AppError) {
	response.AbortWithError(c, err.Kind.HTTPStatus(), err.Code, err.Message)
}

// extractToken 依次从 Authorization 头、Cookie 读取令牌
func extractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := c.Request.Cookie("pms_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// GetStaffID 获取当前员工 ID，未登录返回 0
func GetStaffID(c *gin.Context) int64 {
	return c.GetInt64(ContextKeyStaffID)
}

// GetStaffEmail 获取当前员工邮箱
func GetStaffEmail(c *gin.Context) string {
	return c.GetString(ContextKeyStaffEmail)
}

// GetRole 获取当前员工角色
func GetRole(c *gin.Context) string {
	return c.GetString(ContextKeyRole)
}

// GetClaims 获取完整声明
func GetClaims(c *gin.Context) *jwt.Claims {
	if v, ok := c.Get(ContextKeyClaims); ok {
		if claims, ok := v.(*jwt.Claims); ok {
			return claims
		}
	}
	return nil
}

// RequireRoles 要求当前员工属于指定角色之一
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role := GetRole(c)
		if role == "" {
			abortWithAppError(c, apperrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[role]; !ok {
			response.AbortWithError(c, http.StatusForbidden, apperrors.ErrPermissionDenied.Code, apperrors.ErrPermissionDenied.Message)
			return
		}
		c.Next()
	}
}
