// Package location is the read-side of the settlement hierarchy. The
// workflow only ever needs it to compose display labels; nothing here is
// mutated by the approval or registration flows.
package location

import (
	id "habitat/pkg/domain"
)

type County struct {
	ID   id.SettlementID
	Name string
}

type Municipality struct {
	ID       id.SettlementID
	CountyID id.SettlementID
	Name     string
}

type Settlement struct {
	ID             id.SettlementID
	MunicipalityID id.SettlementID
	Name           string
}

// Hierarchy is one settlement resolved up to its county, used for read-time
// label composition.
type Hierarchy struct {
	Settlement   Settlement
	Municipality Municipality
	County       County
}
