package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var errSentinel = stderrors.New("sentinel")

func TestToAppErrorMapsBuilderCodes(t *testing.T) {
	tests := []struct {
		code     errbuilder.ErrCode
		status   int
		category ErrorCategory
		str      string
	}{
		{errbuilder.CodeInvalidArgument, http.StatusBadRequest, CategoryValidation, "VALIDATION_ERROR"},
		{errbuilder.CodeResourceExhausted, http.StatusTooManyRequests, CategoryRateLimit, "RATE_LIMIT_EXCEEDED"},
		{errbuilder.CodeDeadlineExceeded, http.StatusGatewayTimeout, CategoryTimeout, "TIMEOUT_ERROR"},
		{errbuilder.CodeUnavailable, http.StatusServiceUnavailable, CategoryUnavailable, "UNAVAILABLE"},
		{errbuilder.CodeFailedPrecondition, http.StatusInternalServerError, CategoryConfiguration, "CONFIGURATION_ERROR"},
		{errbuilder.CodeInternal, http.StatusInternalServerError, CategoryInternal, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			eb := errbuilder.New().WithCode(tt.code).WithMsg("boom").WithCause(errSentinel)
			wrapped := fmt.Errorf("scoring: %w", eb)

			appErr := ToAppError(wrapped)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
			assert.Equal(t, tt.category, appErr.Category)
			assert.Equal(t, tt.str, appErr.CodeString())
			assert.True(t, stderrors.Is(appErr, errSentinel))
		})
	}
}

func TestToAppErrorDecodingFailures(t *testing.T) {
	var v struct {
		Left int `json:"left"`
	}

	err := json.Unmarshal([]byte(`{"left":`), &v)
	assert.Equal(t, http.StatusBadRequest, ToAppError(err).HTTPStatus)

	err = json.Unmarshal([]byte(`{"left":"x"}`), &v)
	appErr := ToAppError(err)
	assert.Equal(t, CategoryValidation, appErr.Category)
	assert.Contains(t, appErr.Fields, "left")

	err = json.NewDecoder(strings.NewReader("")).Decode(&v)
	assert.Equal(t, http.StatusBadRequest, ToAppError(err).HTTPStatus)

	assert.Equal(t, CategoryInternal, ToAppError(errSentinel).Category)
	assert.Nil(t, ToAppError(nil))
}

func TestToAppErrorKeepsAppError(t *testing.T) {
	orig := NewRateLimitError("30s")
	assert.Same(t, orig, ToAppError(fmt.Errorf("wrap: %w", orig)))
	assert.Equal(t, "30s", orig.Fields["retry_after"])
	assert.True(t, IsRetryable(orig))
	assert.False(t, IsRetryable(NewValidationError("bad", nil)))
}

func TestInternalErrorHidesDetails(t *testing.T) {
	appErr := NewInternalError("table lookup failed for key 3+9", errSentinel)
	body := appErr.Response()
	assert.Equal(t, "Internal server error", body.Error.Message)
	assert.NotContains(t, body.Error.Message, "3+9")
}

func TestAbortWritesResponse(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_id", "req-1")
		c.Next()
	}, ErrorHandler())
	r.GET("/bad", func(c *gin.Context) {
		_ = c.Error(NewValidationError("unsupported birth date", map[string]string{"birth_date": "spring"}))
	})
	r.GET("/written", func(c *gin.Context) {
		_ = c.Error(errSentinel)
		c.Status(http.StatusAccepted)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bad", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Equal(t, "spring", resp.Error.Fields["birth_date"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRecoveryHandler(t *testing.T) {
	r := gin.New()
	r.Use(RecoveryHandler())
	r.GET("/panic", func(c *gin.Context) { panic("nil chart") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}
