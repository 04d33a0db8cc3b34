/**
 * @description
 * PostgreSQL implementation of the ledger: the tabular record store backing
 * account requests. Rows are append-only at intake; workflows update named
 * fields in place. Lookups by field return the most recent match so a
 * resubmitted request prevails over the first.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/19pdh/user-manager/internal/domain"
)

const rowColumns = `id, submitted_at, name, surname, unit_name, primary_email,
	approver_email, approver_response, recovery_email, recovery_phone,
	status, is_leader, is_unit, account_exists, confirmation_token`

// PostgresLedger is the PostgreSQL implementation of the ledger adapter.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger creates a new instance of PostgresLedger.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// InsertRow appends a new request row and returns its ID.
func (r *PostgresLedger) InsertRow(ctx context.Context, row *domain.Row) (int64, error) {
	query := `
        INSERT INTO requests (submitted_at, name, surname, unit_name, primary_email,
            approver_email, recovery_email, recovery_phone, status,
            is_leader, is_unit, account_exists, confirmation_token)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING id
    `
	var id int64
	err := r.db.QueryRow(ctx, query,
		row.Timestamp,
		row.Name,
		row.Surname,
		row.UnitName,
		row.PrimaryEmail,
		row.ApproverEmail,
		row.RecoveryEmail,
		row.RecoveryPhone,
		row.Status,
		row.IsLeader,
		row.IsUnit,
		row.Exists,
		row.ConfirmationToken,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting request row: %w", err)
	}
	return id, nil
}

// GetRow fetches a single row by ID.
func (r *PostgresLedger) GetRow(ctx context.Context, id int64) (*domain.Row, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE id = $1`, rowColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetRowByPrimaryEmail fetches the most recent row for the given identifier.
func (r *PostgresLedger) GetRowByPrimaryEmail(ctx context.Context, primaryEmail string) (*domain.Row, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM requests WHERE primary_email = $1
        ORDER BY id DESC LIMIT 1
    `, rowColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, primaryEmail))
}

// GetRowByToken fetches the row carrying the given confirmation token.
func (r *PostgresLedger) GetRowByToken(ctx context.Context, token string) (*domain.Row, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM requests WHERE confirmation_token = $1
        ORDER BY id DESC LIMIT 1
    `, rowColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, token))
}

// UpdateRow applies the non-nil fields of update to the row.
func (r *PostgresLedger) UpdateRow(ctx context.Context, id int64, update domain.RowUpdate) error {
	sets := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Timestamp != nil {
		add("submitted_at", *update.Timestamp)
	}
	if update.Status != nil {
		add("status", *update.Status)
	}
	if update.PrimaryEmail != nil {
		add("primary_email", *update.PrimaryEmail)
	}
	if update.ApproverEmail != nil {
		add("approver_email", *update.ApproverEmail)
	}
	if update.ApproverResponse != nil {
		add("approver_response", *update.ApproverResponse)
	}
	if update.Exists != nil {
		add("account_exists", *update.Exists)
	}
	if update.IsLeader != nil {
		add("is_leader", *update.IsLeader)
	}
	if update.IsUnit != nil {
		add("is_unit", *update.IsUnit)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE requests SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating request row %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating request row %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListPendingApproverBefore returns rows still awaiting the approver whose
// submission is at or before the cutoff.
func (r *PostgresLedger) ListPendingApproverBefore(ctx context.Context, cutoff time.Time) ([]domain.Row, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM requests
        WHERE status = $1 AND submitted_at <= $2
        ORDER BY id
    `, rowColumns)
	return r.scanMany(ctx, query, domain.StatusPendingApprover, cutoff)
}

// ListProvisionedBefore returns rows with a live directory account whose
// ledger timestamp is at or before the cutoff.
func (r *PostgresLedger) ListProvisionedBefore(ctx context.Context, cutoff time.Time) ([]domain.Row, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM requests
        WHERE account_exists AND submitted_at <= $1
        ORDER BY id
    `, rowColumns)
	return r.scanMany(ctx, query, cutoff)
}

func (r *PostgresLedger) scanMany(ctx context.Context, query string, args ...interface{}) ([]domain.Row, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying request rows: %w", err)
	}
	defer rows.Close()

	var out []domain.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

func (r *PostgresLedger) scanOne(row pgx.Row) (*domain.Row, error) {
	out, err := scanRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return out, err
}

func scanRow(row pgx.Row) (*domain.Row, error) {
	var out domain.Row
	err := row.Scan(
		&out.ID,
		&out.Timestamp,
		&out.Name,
		&out.Surname,
		&out.UnitName,
		&out.PrimaryEmail,
		&out.ApproverEmail,
		&out.ApproverResponse,
		&out.RecoveryEmail,
		&out.RecoveryPhone,
		&out.Status,
		&out.IsLeader,
		&out.IsUnit,
		&out.Exists,
		&out.ConfirmationToken,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
