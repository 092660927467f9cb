package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"habitat/pkg/platform/sentinel"
)

// TestFromStore verifies the fallback translation keeps the fixed-meaning
// sentinels out of the internal-error bucket: a broken reference reads as bad
// input and a backend denial reads as forbidden, not as a server fault.
func TestFromStore(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{
			name: "invalid reference is a validation failure",
			err:  fmt.Errorf("%w: addresses_settlement_id_fkey", sentinel.ErrInvalidReference),
			want: CodeValidation,
		},
		{
			name: "backend denial is forbidden",
			err:  fmt.Errorf("%w: insufficient privilege", sentinel.ErrForbidden),
			want: CodeForbidden,
		},
		{
			name: "transient failure is unavailable",
			err:  fmt.Errorf("%w: dial tcp", sentinel.ErrUnavailable),
			want: CodeUnavailable,
		},
		{
			name: "anything else stays internal",
			err:  errors.New("disk full"),
			want: CodeInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := FromStore(tt.err, "failed to create address")
			assert.Equal(t, tt.want, de.Code)
			assert.ErrorIs(t, de, tt.err)
		})
	}
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(CodeValidation))
	assert.Equal(t, http.StatusForbidden, ToHTTPStatus(CodeForbidden))
	assert.Equal(t, http.StatusServiceUnavailable, ToHTTPStatus(CodeUnavailable))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(CodeInternal))
}
