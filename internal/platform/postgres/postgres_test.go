package postgres

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"habitat/pkg/platform/sentinel"
)

// TestClassifyError pins the SQLSTATE-to-sentinel mapping every postgres
// store relies on.
func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "unique violation is a conflict",
			err:  &pq.Error{Code: "23505", Constraint: "flats_building_id_unit_number_key"},
			want: sentinel.ErrConflict,
		},
		{
			name: "foreign key violation is an invalid reference",
			err:  &pq.Error{Code: "23503", Constraint: "addresses_settlement_id_fkey"},
			want: sentinel.ErrInvalidReference,
		},
		{
			name: "privilege denial is forbidden",
			err:  &pq.Error{Code: "42501"},
			want: sentinel.ErrForbidden,
		},
		{
			name: "network failure is unavailable",
			err:  &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			want: sentinel.ErrUnavailable,
		},
		{
			name: "wrapped driver errors are still classified",
			err:  fmt.Errorf("create flat: %w", &pq.Error{Code: "23503"}),
			want: sentinel.ErrInvalidReference,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ClassifyError(tt.err), tt.want)
		})
	}

	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, ClassifyError(nil))
	})

	t.Run("unknown errors are untouched", func(t *testing.T) {
		err := errors.New("syntax error")
		assert.Equal(t, err, ClassifyError(err))
	})
}
