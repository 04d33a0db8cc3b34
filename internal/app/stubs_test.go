package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/19pdh/user-manager/internal/auth"
	"github.com/19pdh/user-manager/internal/config"
	"github.com/19pdh/user-manager/internal/domain"
)

func testConfig() config.Config {
	return config.Config{
		AccountDomain:  "example.org",
		PhonePrefix:    "+48",
		AdminEmail:     "admin@example.org",
		ManagerEmail:   "manager@example.org",
		SurveyLink:     "https://survey.example.org",
		ConfirmBaseURL: "https://confirm.example.org",
		MembersOrgUnit: "/members",
		LeadersOrgUnit: "/leaders",
		UnitsOrgUnit:   "/units",
		ReserveOrgUnit: "/members/reserve",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLedger is an in-memory ledger.
type fakeLedger struct {
	rows   map[int64]*domain.Row
	nextID int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: map[int64]*domain.Row{}, nextID: 1}
}

func (l *fakeLedger) InsertRow(ctx context.Context, row *domain.Row) (int64, error) {
	id := l.nextID
	l.nextID++
	stored := *row
	stored.ID = id
	l.rows[id] = &stored
	return id, nil
}

func (l *fakeLedger) GetRow(ctx context.Context, id int64) (*domain.Row, error) {
	row, ok := l.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *row
	return &out, nil
}

func (l *fakeLedger) GetRowByPrimaryEmail(ctx context.Context, primaryEmail string) (*domain.Row, error) {
	var match *domain.Row
	for _, row := range l.rows {
		if row.PrimaryEmail == primaryEmail && (match == nil || row.ID > match.ID) {
			match = row
		}
	}
	if match == nil {
		return nil, domain.ErrNotFound
	}
	out := *match
	return &out, nil
}

func (l *fakeLedger) GetRowByToken(ctx context.Context, token string) (*domain.Row, error) {
	var match *domain.Row
	for _, row := range l.rows {
		if row.ConfirmationToken == token && (match == nil || row.ID > match.ID) {
			match = row
		}
	}
	if match == nil {
		return nil, domain.ErrNotFound
	}
	out := *match
	return &out, nil
}

func (l *fakeLedger) UpdateRow(ctx context.Context, id int64, update domain.RowUpdate) error {
	row, ok := l.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	if update.Timestamp != nil {
		row.Timestamp = *update.Timestamp
	}
	if update.Status != nil {
		row.Status = *update.Status
	}
	if update.PrimaryEmail != nil {
		row.PrimaryEmail = *update.PrimaryEmail
	}
	if update.ApproverEmail != nil {
		row.ApproverEmail = *update.ApproverEmail
	}
	if update.ApproverResponse != nil {
		row.ApproverResponse = *update.ApproverResponse
	}
	if update.Exists != nil {
		row.Exists = *update.Exists
	}
	if update.IsLeader != nil {
		row.IsLeader = *update.IsLeader
	}
	if update.IsUnit != nil {
		row.IsUnit = *update.IsUnit
	}
	return nil
}

func (l *fakeLedger) ListPendingApproverBefore(ctx context.Context, cutoff time.Time) ([]domain.Row, error) {
	var out []domain.Row
	for _, id := range l.sortedIDs() {
		row := l.rows[id]
		if row.Status == domain.StatusPendingApprover && !row.Timestamp.After(cutoff) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (l *fakeLedger) ListProvisionedBefore(ctx context.Context, cutoff time.Time) ([]domain.Row, error) {
	var out []domain.Row
	for _, id := range l.sortedIDs() {
		row := l.rows[id]
		if row.Exists && !row.Timestamp.After(cutoff) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (l *fakeLedger) sortedIDs() []int64 {
	ids := make([]int64, 0, len(l.rows))
	for id := range l.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// fakeDirectory is an in-memory directory keyed by identifier. Accounts can
// be registered under an additional opaque ID the way the real directory
// resolves both.
type fakeDirectory struct {
	accounts map[string]*domain.Account
	aliases  map[string]string
	removed  []string
	pageSize int
	patchErr error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{accounts: map[string]*domain.Account{}, aliases: map[string]string{}}
}

func (d *fakeDirectory) put(account *domain.Account) {
	stored := *account
	d.accounts[account.PrimaryEmail] = &stored
}

func (d *fakeDirectory) alias(id, primaryEmail string) {
	d.aliases[id] = primaryEmail
}

func (d *fakeDirectory) resolve(identifier string) (*domain.Account, bool) {
	if target, ok := d.aliases[identifier]; ok {
		identifier = target
	}
	account, ok := d.accounts[identifier]
	return account, ok
}

func (d *fakeDirectory) Get(ctx context.Context, identifier string) (*domain.Account, error) {
	account, ok := d.resolve(identifier)
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *account
	return &out, nil
}

func (d *fakeDirectory) Insert(ctx context.Context, account *domain.Account) error {
	if _, ok := d.accounts[account.PrimaryEmail]; ok {
		return errors.New("directory: account already exists")
	}
	d.put(account)
	return nil
}

func (d *fakeDirectory) Patch(ctx context.Context, identifier string, patch domain.AccountPatch) error {
	if d.patchErr != nil {
		return d.patchErr
	}
	account, ok := d.resolve(identifier)
	if !ok {
		return domain.ErrNotFound
	}
	if patch.OrgUnitPath != nil {
		account.OrgUnitPath = *patch.OrgUnitPath
	}
	if patch.Suspended != nil {
		account.Suspended = *patch.Suspended
	}
	if patch.Relations != nil {
		account.Relations = append([]domain.Relation(nil), (*patch.Relations)...)
	}
	return nil
}

func (d *fakeDirectory) Remove(ctx context.Context, identifier string) error {
	account, ok := d.resolve(identifier)
	if !ok {
		return domain.ErrNotFound
	}
	delete(d.accounts, account.PrimaryEmail)
	d.removed = append(d.removed, account.PrimaryEmail)
	return nil
}

func (d *fakeDirectory) List(ctx context.Context, query domain.ListQuery, pageToken string) ([]domain.Account, string, error) {
	var matched []domain.Account
	for _, email := range d.sortedEmails() {
		account := d.accounts[email]
		if account.OrgUnitPath != query.OrgUnitPath {
			continue
		}
		if account.Suspended && !query.IncludeSuspended {
			continue
		}
		matched = append(matched, *account)
	}

	pageSize := d.pageSize
	if pageSize == 0 {
		pageSize = len(matched)
	}
	start := 0
	if pageToken != "" {
		for i, a := range matched {
			if a.PrimaryEmail == pageToken {
				start = i
				break
			}
		}
	}
	end := start + pageSize
	next := ""
	if end < len(matched) {
		next = matched[end].PrimaryEmail
	} else {
		end = len(matched)
	}
	return matched[start:end], next, nil
}

func (d *fakeDirectory) sortedEmails() []string {
	emails := make([]string, 0, len(d.accounts))
	for email := range d.accounts {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	return emails
}

// fakeNotifier records every send.
type sentMail struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

type fakeNotifier struct {
	sent    []sentMail
	sendErr error
}

func (n *fakeNotifier) Send(ctx context.Context, to []string, subject, body, htmlBody string) error {
	if n.sendErr != nil {
		return n.sendErr
	}
	n.sent = append(n.sent, sentMail{To: to, Subject: subject, Body: body, HTMLBody: htmlBody})
	return nil
}

func (n *fakeNotifier) sentTo(address string) []sentMail {
	var out []sentMail
	for _, mail := range n.sent {
		for _, to := range mail.To {
			if strings.EqualFold(to, address) {
				out = append(out, mail)
				break
			}
		}
	}
	return out
}

// fakeVerifier returns a canned identity or error.
type fakeVerifier struct {
	identity *auth.Identity
	err      error
}

func (v *fakeVerifier) Verify(ctx context.Context, rawToken string) (*auth.Identity, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.identity, nil
}
