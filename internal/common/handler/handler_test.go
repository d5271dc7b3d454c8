package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/response"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func createTestContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		c, _ := createTestContext("/")
		assert.False(t, HandleError(c, nil))
	})

	tests := []struct {
		name    string
		err     error
		status  int
		code    int
		message string
	}{
		{"validation", errors.ErrInvalidRange, http.StatusBadRequest, 5001, "check-out must be after check-in"},
		{"conflict", errors.ErrRoomNotAvailable, http.StatusConflict, 5002, "room is not available for the selected dates"},
		{"not found", errors.ErrReservationNotFound, http.StatusNotFound, 5000, "reservation not found"},
		{"auth", errors.ErrInvalidSignature, http.StatusUnauthorized, 2009, "invalid callback signature"},
		{"upstream", errors.UpstreamError("paypal unavailable", stderrors.New("timeout")), http.StatusBadGateway, 1007, "paypal unavailable"},
		{"internal hides detail", errors.ErrDatabaseError.WithError(stderrors.New("pq: secret")), http.StatusInternalServerError, 1004, "internal server error"},
		{"plain error", stderrors.New("boom"), http.StatusInternalServerError, 1000, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := createTestContext("/")
			assert.True(t, HandleError(c, tt.err))
			assert.Equal(t, tt.status, w.Code)
			resp := parseResponse(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestMustSucceed(t *testing.T) {
	c, w := createTestContext("/")
	MustSucceed(c, nil, gin.H{"ok": true})
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = createTestContext("/")
	MustCreate(c, nil, gin.H{"id": 1})
	assert.Equal(t, http.StatusCreated, w.Code)

	c, w = createTestContext("/")
	MustSucceedPage(c, nil, []int{1, 2}, 2, utils.Pagination{Page: 1, PageSize: 20})
	resp := parseResponse(t, w)
	assert.Equal(t, float64(2), resp.Data.(map[string]interface{})["total"])
}

func TestRequireStaffID(t *testing.T) {
	c, w := createTestContext("/")
	_, ok := RequireStaffID(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, _ = createTestContext("/")
	c.Set(middleware.ContextKeyStaffID, int64(42))
	id, ok := RequireStaffID(c)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestParseID(t *testing.T) {
	c, _ := createTestContext("/")
	c.Params = gin.Params{{Key: "id", Value: "17"}}
	id, ok := ParseID(c, "room")
	assert.True(t, ok)
	assert.Equal(t, int64(17), id)

	for _, bad := range []string{"abc", "0", "-3"} {
		c, w := createTestContext("/")
		c.Params = gin.Params{{Key: "id", Value: bad}}
		_, ok := ParseID(c, "room")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid room id", parseResponse(t, w).Message)
	}
}

func TestParseQueryDay(t *testing.T) {
	c, _ := createTestContext("/?check_in=2025-06-01")
	d, ok := ParseQueryDay(c, "check_in")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), d)

	c, w := createTestContext("/")
	_, ok = ParseQueryDay(c, "check_in")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = createTestContext("/?check_in=June")
	_, ok = ParseQueryDay(c, "check_in")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, _ = createTestContext("/")
	opt, ok := ParseOptionalQueryDay(c, "from")
	assert.True(t, ok)
	assert.Nil(t, opt)
}

func TestBindJSON(t *testing.T) {
	type body struct {
		Name string `json:"name" binding:"required"`
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var b body
	assert.False(t, BindJSON(c, &b))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBindPagination(t *testing.T) {
	c, _ := createTestContext("/?page=2&page_size=500")
	p := BindPagination(c)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 100, p.PageSize)

	c, _ = createTestContext("/")
	p = BindPagination(c)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)
}
