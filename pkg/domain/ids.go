// Package domain defines typed identifiers shared across features. Distinct
// types keep an AddressID from ever being passed where a FlatID is expected;
// the compiler enforces what code review would otherwise have to catch.
package domain

import (
	"github.com/google/uuid"

	dErrors "habitat/pkg/domain-errors"
)

type (
	AddressID      uuid.UUID
	BuildingID     uuid.UUID
	FlatID         uuid.UUID
	RegistrationID uuid.UUID
	UserID         uuid.UUID
	SettlementID   uuid.UUID
)

func (id AddressID) String() string      { return uuid.UUID(id).String() }
func (id BuildingID) String() string     { return uuid.UUID(id).String() }
func (id FlatID) String() string         { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id SettlementID) String() string   { return uuid.UUID(id).String() }

// The ID types marshal as canonical UUID strings so JSON payloads and URL
// params share one wire form. Without these methods encoding/json would fall
// back to the underlying [16]byte array.

func (id AddressID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id BuildingID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id FlatID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id RegistrationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id SettlementID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *AddressID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *BuildingID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *FlatID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RegistrationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UserID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SettlementID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id AddressID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id BuildingID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id FlatID) IsZero() bool         { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsZero() bool         { return uuid.UUID(id) == uuid.Nil }
func (id SettlementID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared invariant: IDs must be valid, non-nil UUIDs.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, kind+" id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, kind+" id is not a valid uuid")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, kind+" id must not be the nil uuid")
	}
	return parsed, nil
}

func ParseAddressID(raw string) (AddressID, error) {
	parsed, err := parseUUID(raw, "address")
	return AddressID(parsed), err
}

func ParseBuildingID(raw string) (BuildingID, error) {
	parsed, err := parseUUID(raw, "building")
	return BuildingID(parsed), err
}

func ParseFlatID(raw string) (FlatID, error) {
	parsed, err := parseUUID(raw, "flat")
	return FlatID(parsed), err
}

func ParseRegistrationID(raw string) (RegistrationID, error) {
	parsed, err := parseUUID(raw, "registration")
	return RegistrationID(parsed), err
}

func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw, "user")
	return UserID(parsed), err
}

func ParseSettlementID(raw string) (SettlementID, error) {
	parsed, err := parseUUID(raw, "settlement")
	return SettlementID(parsed), err
}
