package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStatusErrorCodes(t *testing.T) {
	cases := []struct {
		status int
		want   ErrCode
	}{
		{status: http.StatusUnauthorized, want: ErrCodeUnauthorized},
		{status: http.StatusForbidden, want: ErrCodeForbidden},
		{status: http.StatusNotFound, want: ErrCodeNotFound},
		{status: http.StatusTooManyRequests, want: ErrCodeRateLimited},
		{status: http.StatusInternalServerError, want: ErrCodeUpstream},
		{status: http.StatusBadGateway, want: ErrCodeUpstream},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			err := NewStatusError(tc.status, "https://example.zendesk.com/api/v2/x")
			assert.Equal(t, tc.want, err.Code)
			assert.Equal(t, tc.status, err.Status)
			assert.Contains(t, err.Error(), fmt.Sprintf("status %d", tc.status))
		})
	}
}

func TestStatusCodeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("ticket 101: %w", NewStatusError(http.StatusInternalServerError, ""))

	status, ok := StatusCode(wrapped)
	assert.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, status)

	_, ok = StatusCode(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsRateLimited(NewStatusError(http.StatusTooManyRequests, "")))
	assert.True(t, IsUnauthorized(fmt.Errorf("wrap: %w", NewStatusError(http.StatusUnauthorized, ""))))
	assert.True(t, IsNotFound(NewNotFoundError("ticket 7")))
	assert.False(t, IsNotFound(NewInternalError("boom", nil)))
}
