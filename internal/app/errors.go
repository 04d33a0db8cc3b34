package app

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or incomplete caller input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition is returned when an operation is not legal in the
	// record's current state.
	ErrInvalidTransition = errors.New("transition not allowed in current state")
	// ErrDuplicateAccount is returned when provisioning would overwrite an
	// existing directory account.
	ErrDuplicateAccount = errors.New("directory account already exists")
)

// OrgUnitPathError is a permission denial: the asserted approver is not a
// member of the required org unit. It is distinct from validation and
// technical errors so the HTTP layer can render it as an authorization
// failure.
type OrgUnitPathError struct {
	UserEmail   string
	OrgUnitPath string
}

func (e *OrgUnitPathError) Error() string {
	return fmt.Sprintf("user '%s' was not found in %s", e.UserEmail, e.OrgUnitPath)
}
