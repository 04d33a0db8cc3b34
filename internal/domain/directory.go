package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by the ledger and directory adapters when the
// referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// AccountPatch is a partial update of a directory account. Nil fields are
// left untouched; a non-nil Relations pointer replaces the whole relation set
// (the directory has no per-relation addressing).
type AccountPatch struct {
	OrgUnitPath *string     `json:"orgUnitPath,omitempty"`
	Suspended   *bool       `json:"suspended,omitempty"`
	Relations   *[]Relation `json:"relations,omitempty"`
}

// ListQuery selects directory accounts for paginated listing.
type ListQuery struct {
	OrgUnitPath      string
	IncludeSuspended bool
}

// RowUpdate is a partial update of a ledger row. Nil fields are left
// untouched.
type RowUpdate struct {
	Timestamp        *time.Time
	Status           *string
	PrimaryEmail     *string
	ApproverEmail    *string
	ApproverResponse *string
	Exists           *bool
	IsLeader         *bool
	IsUnit           *bool
}
