// Package building owns the inventory tied to approved addresses: the
// buildings themselves and the flats inside them.
package building

import (
	"sort"
	"time"

	id "habitat/pkg/domain"
	dErrors "habitat/pkg/domain-errors"
)

// Building is the occupancy-management unit created for an approved address.
//
// Invariants:
//   - at most one building per address, enforced by a unique constraint on
//     address_id rather than application logic, because concurrent approvals
//     and repeated reconciliation runs race here
//   - immutable after creation except Name and ManagerID corrections
type Building struct {
	ID        id.BuildingID `json:"id"`
	AddressID id.AddressID  `json:"address_id"`
	Name      string        `json:"name"`
	ManagerID id.UserID     `json:"manager_id"`
	CreatedAt time.Time     `json:"created_at"`
}

func NewBuilding(buildingID id.BuildingID, addressID id.AddressID, name string, managerID id.UserID, maxNameLen int, now time.Time) (*Building, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "building name cannot be empty")
	}
	if maxNameLen > 0 && len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return &Building{
		ID:        buildingID,
		AddressID: addressID,
		Name:      name,
		ManagerID: managerID,
		CreatedAt: now,
	}, nil
}

// Flat is an individually assignable unit within a building. A non-nil
// TenantID means the flat is occupied; occupied flats cannot be deleted.
type Flat struct {
	ID         id.FlatID     `json:"id"`
	BuildingID id.BuildingID `json:"building_id"`
	UnitNumber string        `json:"unit_number"`
	TenantID   *id.UserID    `json:"tenant_id,omitempty"`
}

func (f *Flat) Occupied() bool {
	return f.TenantID != nil
}

// ValidateUnitNumber enforces the unit-number rules: non-empty, alphanumeric
// only, at most maxLen characters. Comparison is case-sensitive: "2a" and
// "2A" are distinct units.
func ValidateUnitNumber(unitNumber string, maxLen int) error {
	if unitNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "unit number cannot be empty")
	}
	if maxLen > 0 && len(unitNumber) > maxLen {
		return dErrors.New(dErrors.CodeValidation, "unit number exceeds maximum length")
	}
	for _, r := range unitNumber {
		isDigit := r >= '0' && r <= '9'
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !isDigit && !isLetter {
			return dErrors.New(dErrors.CodeValidation, "unit number must be alphanumeric")
		}
	}
	return nil
}

// CompareUnitNumbers orders flats the way residents expect: by the leading
// numeric prefix ascending, ties broken by plain string comparison. "2" sorts
// before "2A", which sorts before "10". Units without a numeric prefix sort
// after all numbered ones.
func CompareUnitNumbers(a, b string) int {
	aNum, aHas := leadingNumber(a)
	bNum, bHas := leadingNumber(b)
	switch {
	case aHas && !bHas:
		return -1
	case !aHas && bHas:
		return 1
	case aHas && bHas && aNum != bNum:
		if aNum < bNum {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// SortFlats sorts in place by unit number using CompareUnitNumbers.
func SortFlats(flats []*Flat) {
	sort.Slice(flats, func(i, j int) bool {
		return CompareUnitNumbers(flats[i].UnitNumber, flats[j].UnitNumber) < 0
	})
}

func leadingNumber(s string) (int64, bool) {
	var (
		n   int64
		has bool
	)
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int64(r-'0')
		has = true
	}
	return n, has
}
