/**
 * @description
 * Adapter interfaces the workflows and sweeps are built against. Concrete
 * implementations live in internal/store (ledger), pkg/directoryclient
 * (directory), internal/notify (notifier) and internal/auth (verifier);
 * tests substitute stubs.
 */
package app

import (
	"context"
	"time"

	"github.com/19pdh/user-manager/internal/auth"
	"github.com/19pdh/user-manager/internal/domain"
)

// Ledger is read/write access to the tabular record store backing requests.
type Ledger interface {
	InsertRow(ctx context.Context, row *domain.Row) (int64, error)
	GetRow(ctx context.Context, id int64) (*domain.Row, error)
	GetRowByPrimaryEmail(ctx context.Context, primaryEmail string) (*domain.Row, error)
	GetRowByToken(ctx context.Context, token string) (*domain.Row, error)
	UpdateRow(ctx context.Context, id int64, update domain.RowUpdate) error
	ListPendingApproverBefore(ctx context.Context, cutoff time.Time) ([]domain.Row, error)
	ListProvisionedBefore(ctx context.Context, cutoff time.Time) ([]domain.Row, error)
}

// Directory is the authoritative account service.
type Directory interface {
	Get(ctx context.Context, identifier string) (*domain.Account, error)
	Insert(ctx context.Context, account *domain.Account) error
	Patch(ctx context.Context, identifier string, patch domain.AccountPatch) error
	Remove(ctx context.Context, identifier string) error
	List(ctx context.Context, query domain.ListQuery, pageToken string) ([]domain.Account, string, error)
}

// Notifier sends a templated message to one or more addresses. Delivery is
// best-effort and external.
type Notifier interface {
	Send(ctx context.Context, to []string, subject, body, htmlBody string) error
}

// TokenVerifier validates an approver's identity assertion.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*auth.Identity, error)
}
