package building

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "habitat/pkg/domain"
	dErrors "habitat/pkg/domain-errors"
)

func TestValidateUnitNumber(t *testing.T) {
	tests := []struct {
		name   string
		unit   string
		maxLen int
		ok     bool
	}{
		{name: "plain number", unit: "12", maxLen: 10, ok: true},
		{name: "number with letter suffix", unit: "2A", maxLen: 10, ok: true},
		{name: "letters only", unit: "PH", maxLen: 10, ok: true},
		{name: "empty", unit: "", maxLen: 10, ok: false},
		{name: "over max length", unit: "12345678901", maxLen: 10, ok: false},
		{name: "at max length", unit: "1234567890", maxLen: 10, ok: true},
		{name: "space rejected", unit: "2 A", maxLen: 10, ok: false},
		{name: "dash rejected", unit: "2-A", maxLen: 10, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUnitNumber(tt.unit, tt.maxLen)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestSortFlats(t *testing.T) {
	flats := func(units ...string) []*Flat {
		out := make([]*Flat, 0, len(units))
		for _, u := range units {
			out = append(out, &Flat{ID: id.FlatID(uuid.New()), UnitNumber: u})
		}
		return out
	}
	units := func(flats []*Flat) []string {
		out := make([]string, 0, len(flats))
		for _, f := range flats {
			out = append(out, f.UnitNumber)
		}
		return out
	}

	t.Run("numeric prefix ascending with lexical tie break", func(t *testing.T) {
		fs := flats("10", "2A", "1", "2")
		SortFlats(fs)
		assert.Equal(t, []string{"1", "2", "2A", "10"}, units(fs))
	})

	t.Run("non-numeric units sort after numbered ones", func(t *testing.T) {
		fs := flats("PH", "3", "A", "12")
		SortFlats(fs)
		assert.Equal(t, []string{"3", "12", "A", "PH"}, units(fs))
	})

	t.Run("case-sensitive units keep distinct positions", func(t *testing.T) {
		fs := flats("2a", "2A")
		SortFlats(fs)
		assert.Equal(t, []string{"2A", "2a"}, units(fs))
	})
}

func TestNewBuilding(t *testing.T) {
	now := time.Now()

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewBuilding(id.BuildingID(uuid.New()), id.AddressID(uuid.New()), "", id.UserID(uuid.New()), 100, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("truncates over-long name", func(t *testing.T) {
		b, err := NewBuilding(id.BuildingID(uuid.New()), id.AddressID(uuid.New()), "abcdefghij", id.UserID(uuid.New()), 5, now)
		require.NoError(t, err)
		assert.Equal(t, "abcde", b.Name)
	})
}
