/**
 * @description
 * Ledger row model and the account lifecycle state enumeration. A logical
 * account is the union of a ledger row (always) and a directory account (once
 * provisioned); its state is derived from whichever of the two is
 * authoritative at that point in the lifecycle.
 */
package domain

import "time"

// Ledger status column values.
const (
	StatusRequested       = "requested"
	StatusPendingApprover = "pending_approver"
	StatusPendingAdmin    = "pending_admin"
	StatusActive          = "active"
	StatusRejected        = "rejected"
	StatusDeleted         = "deleted"
)

// Row is a single ledger record backing an account request.
type Row struct {
	ID                int64
	Timestamp         time.Time
	Name              string
	Surname           string
	UnitName          string
	PrimaryEmail      string
	ApproverEmail     string
	ApproverResponse  string
	RecoveryEmail     string
	RecoveryPhone     string
	Status            string
	IsLeader          bool
	IsUnit            bool
	Exists            bool
	ConfirmationToken string
}

// State is the derived lifecycle state of an account record.
type State int

const (
	StateRequested State = iota
	StatePendingApprover
	StatePendingAdmin
	StateActive
	StateScheduledForDeactivation
	StateDeactivated
	StateRejected
	StateDeleted
)

var stateNames = map[State]string{
	StateRequested:                "Requested",
	StatePendingApprover:          "PendingApprover",
	StatePendingAdmin:             "PendingAdmin",
	StateActive:                   "Active",
	StateScheduledForDeactivation: "ScheduledForDeactivation",
	StateDeactivated:              "Deactivated",
	StateRejected:                 "Rejected",
	StateDeleted:                  "Deleted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// DeriveState computes the single authoritative state of a record. Before
// provisioning only the ledger row exists and the status column decides;
// after provisioning the directory object decides.
func DeriveState(row *Row, account *Account) State {
	if account != nil {
		if account.Suspended {
			return StateDeactivated
		}
		if _, scheduled := FindRelation(account.Relations, RelationScheduledForDeactivation); scheduled {
			return StateScheduledForDeactivation
		}
		return StateActive
	}
	if row == nil {
		return StateDeleted
	}
	switch row.Status {
	case StatusPendingApprover:
		return StatePendingApprover
	case StatusPendingAdmin:
		return StatePendingAdmin
	case StatusActive:
		return StateActive
	case StatusRejected:
		return StateRejected
	case StatusDeleted:
		return StateDeleted
	default:
		return StateRequested
	}
}
