/**
 * @description
 * Account request workflows: intake, approval and provisioning. The service
 * owns the pre-provisioning half of the lifecycle; everything time-based
 * after provisioning belongs to the sweep.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/19pdh/user-manager/internal/config"
	"github.com/19pdh/user-manager/internal/domain"
)

// Service implements the intake, approval and provisioning workflows.
type Service struct {
	ledger    Ledger
	directory Directory
	notifier  Notifier
	verifier  TokenVerifier
	logger    *slog.Logger
	cfg       config.Config
	now       func() time.Time
}

// NewService creates the workflow service.
func NewService(ledger Ledger, directory Directory, notifier Notifier, verifier TokenVerifier, logger *slog.Logger, cfg config.Config) *Service {
	return &Service{
		ledger:    ledger,
		directory: directory,
		notifier:  notifier,
		verifier:  verifier,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// IntakeRequest is a submitted account request: either a person
// (name+surname) or a unit (unit name).
type IntakeRequest struct {
	Name          string `json:"name"`
	Surname       string `json:"surname"`
	UnitName      string `json:"unit_name"`
	ApproverEmail string `json:"approver_email"`
	RecoveryEmail string `json:"recovery_email"`
	RecoveryPhone string `json:"recovery_phone"`
}

// Intake turns a submitted request into a ledger row and notifies whoever
// must act next. Re-running intake for an identifier whose row was already
// answered returns that row unchanged.
func (s *Service) Intake(ctx context.Context, req IntakeRequest) (*domain.Row, error) {
	isUnit := req.UnitName != ""
	name, surname := req.Name, req.Surname
	if isUnit {
		name, surname = domain.SplitUnitName(req.UnitName)
	}
	if name == "" || surname == "" {
		return nil, fmt.Errorf("%w: name and surname (or a unit name) are required", ErrValidation)
	}
	if req.RecoveryEmail == "" {
		return nil, fmt.Errorf("%w: recovery email is required", ErrValidation)
	}

	identifier := domain.ProposeIdentifier(name, surname)
	primaryEmail := identifier + "@" + s.cfg.AccountDomain

	// Reentry guard: never regress a row that has already moved past intake.
	existing, err := s.ledger.GetRowByPrimaryEmail(ctx, primaryEmail)
	switch {
	case err == nil:
		if existing.Exists || existing.Status != domain.StatusRequested {
			s.logger.Info("intake skipped, request already answered",
				"primary_email", primaryEmail, "status", existing.Status)
			return existing, nil
		}
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("looking up existing request: %w", err)
	}

	row := &domain.Row{
		Timestamp:         s.now(),
		Name:              name,
		Surname:           surname,
		UnitName:          req.UnitName,
		PrimaryEmail:      primaryEmail,
		ApproverEmail:     req.ApproverEmail,
		RecoveryEmail:     req.RecoveryEmail,
		RecoveryPhone:     req.RecoveryPhone,
		IsUnit:            isUnit,
		ConfirmationToken: uuid.NewString(),
	}
	if req.ApproverEmail != "" {
		row.Status = domain.StatusPendingApprover
	} else {
		// No approver to ask: a leadership self-request goes straight to the
		// administrator.
		row.Status = domain.StatusPendingAdmin
		row.IsLeader = true
	}

	id, err := s.ledger.InsertRow(ctx, row)
	if err != nil {
		return nil, err
	}
	row.ID = id

	if req.ApproverEmail != "" {
		link := s.confirmationLink(identifier, row.ConfirmationToken)
		body := fmt.Sprintf(
			"%s %s requested the account %s and named you as approver.\n\nConfirm the request: %s\n",
			name, surname, primaryEmail, link)
		if err := s.notifier.Send(ctx, []string{req.ApproverEmail},
			fmt.Sprintf("Account request %s", primaryEmail), body, ""); err != nil {
			s.logger.Error("failed to notify approver", "primary_email", primaryEmail, "error", err)
		}
	} else {
		body := fmt.Sprintf("A leadership account %s was requested and awaits provisioning (row %d).", primaryEmail, id)
		if err := s.notifier.Send(ctx, []string{s.cfg.AdminEmail},
			fmt.Sprintf("Account request %s", primaryEmail), body, ""); err != nil {
			s.logger.Error("failed to notify admin", "primary_email", primaryEmail, "error", err)
		}
	}

	s.logger.Info("request recorded", "primary_email", primaryEmail, "status", row.Status, "row", id)
	return row, nil
}

// ApprovalOutcome distinguishes the two legal results of a confirmation.
type ApprovalOutcome int

const (
	// OutcomeApproved advanced a pending row to the administrator.
	OutcomeApproved ApprovalOutcome = iota
	// OutcomeReconfirmed refreshed an already-provisioned account and
	// cancelled any scheduled deactivation.
	OutcomeReconfirmed
)

// ApprovalResult reports what a confirmation did.
type ApprovalResult struct {
	Outcome       ApprovalOutcome
	PrimaryEmail  string
	ApproverEmail string
}

// Approve consumes an approver's identity assertion and either advances a
// pending ledger row or reconfirms an existing directory account. The row is
// resolved by state token when present, by identifier otherwise.
func (s *Service) Approve(ctx context.Context, rawToken, stateToken, identifier string) (*ApprovalResult, error) {
	identity, err := s.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	approver, err := s.directory.Get(ctx, identity.Subject)
	if err != nil {
		return nil, fmt.Errorf("resolving approver %q: %w", identity.Subject, err)
	}
	if approver.OrgUnitPath != s.cfg.LeadersOrgUnit {
		return nil, &OrgUnitPathError{UserEmail: approver.PrimaryEmail, OrgUnitPath: s.cfg.LeadersOrgUnit}
	}

	row, err := s.resolveRow(ctx, stateToken, identifier)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		// Accounts provisioned before the ledger existed have no row. The
		// directory alone decides whether a reconfirmation is possible.
		account, dirErr := s.directory.Get(ctx, s.qualifyIdentifier(identifier))
		switch {
		case dirErr == nil:
			return s.reconfirm(ctx, account, approver)
		case errors.Is(dirErr, domain.ErrNotFound):
			return nil, err
		default:
			return nil, fmt.Errorf("checking directory for %s: %w", identifier, dirErr)
		}
	}

	account, err := s.directory.Get(ctx, row.PrimaryEmail)
	switch {
	case err == nil:
		return s.reconfirm(ctx, account, approver)
	case errors.Is(err, domain.ErrNotFound):
		return s.firstApproval(ctx, row, approver)
	default:
		return nil, fmt.Errorf("checking directory for %s: %w", row.PrimaryEmail, err)
	}
}

func (s *Service) resolveRow(ctx context.Context, stateToken, identifier string) (*domain.Row, error) {
	if stateToken != "" {
		row, err := s.ledger.GetRowByToken(ctx, stateToken)
		if err == nil {
			return row, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if identifier == "" {
		return nil, fmt.Errorf("%w: request not identified", ErrValidation)
	}
	return s.ledger.GetRowByPrimaryEmail(ctx, s.qualifyIdentifier(identifier))
}

// qualifyIdentifier turns a bare identifier into the primary address.
func (s *Service) qualifyIdentifier(identifier string) string {
	if strings.Contains(identifier, "@") {
		return identifier
	}
	return identifier + "@" + s.cfg.AccountDomain
}

// reconfirm clears any scheduled deactivation, stamps a fresh confirmation
// date and records the approver as manager. It works from the directory
// object alone, so accounts with no ledger row are reconfirmed the same way.
func (s *Service) reconfirm(ctx context.Context, account *domain.Account, approver *domain.Account) (*ApprovalResult, error) {
	relations := domain.WithoutRelation(account.Relations, domain.RelationScheduledForDeactivation)
	relations = domain.WithoutRelation(relations, domain.RelationConfirmationDate)
	relations = domain.WithoutRelationType(relations, domain.RelationManager)
	relations = append(relations,
		domain.Relation{Type: "custom", CustomType: domain.RelationConfirmationDate, Value: s.now().UTC().Format(time.RFC3339)},
		domain.Relation{Type: domain.RelationManager, Value: approver.PrimaryEmail},
	)

	if err := s.directory.Patch(ctx, account.PrimaryEmail, domain.AccountPatch{Relations: &relations}); err != nil {
		return nil, fmt.Errorf("reconfirming %s: %w", account.PrimaryEmail, err)
	}

	body := fmt.Sprintf(
		"Your account %s was reconfirmed by %s. The scheduled deactivation is cancelled.\n",
		account.PrimaryEmail, approver.PrimaryEmail)
	if err := s.notifier.Send(ctx, []string{account.PrimaryEmail, account.RecoveryEmail},
		fmt.Sprintf("Account %s reconfirmed", account.PrimaryEmail), body, ""); err != nil {
		s.logger.Error("failed to notify account holder", "primary_email", account.PrimaryEmail, "error", err)
	}

	s.logger.Info("account reconfirmed", "primary_email", account.PrimaryEmail, "approver", approver.PrimaryEmail)
	return &ApprovalResult{
		Outcome:       OutcomeReconfirmed,
		PrimaryEmail:  account.PrimaryEmail,
		ApproverEmail: approver.PrimaryEmail,
	}, nil
}

// firstApproval advances a pending row to the administrator.
func (s *Service) firstApproval(ctx context.Context, row *domain.Row, approver *domain.Account) (*ApprovalResult, error) {
	result := &ApprovalResult{
		Outcome:       OutcomeApproved,
		PrimaryEmail:  row.PrimaryEmail,
		ApproverEmail: approver.PrimaryEmail,
	}

	switch row.Status {
	case domain.StatusPendingAdmin:
		// The approver already answered; nothing to regress.
		return result, nil
	case domain.StatusPendingApprover, domain.StatusRequested:
	default:
		return nil, fmt.Errorf("%w: row %d is %s", ErrInvalidTransition, row.ID, row.Status)
	}

	now := s.now()
	status := domain.StatusPendingAdmin
	response := "confirmed"
	if err := s.ledger.UpdateRow(ctx, row.ID, domain.RowUpdate{
		Timestamp:        &now,
		Status:           &status,
		ApproverEmail:    &approver.PrimaryEmail,
		ApproverResponse: &response,
	}); err != nil {
		return nil, fmt.Errorf("advancing row %d: %w", row.ID, err)
	}

	body := fmt.Sprintf(
		"Approver %s confirmed the account request %s.\n\nRow: %d\n",
		approver.PrimaryEmail, row.PrimaryEmail, row.ID)
	if err := s.notifier.Send(ctx, []string{s.cfg.AdminEmail},
		fmt.Sprintf("Approver response for %s", row.PrimaryEmail), body, ""); err != nil {
		s.logger.Error("failed to notify admin", "primary_email", row.PrimaryEmail, "error", err)
	}

	s.logger.Info("request approved", "primary_email", row.PrimaryEmail, "approver", approver.PrimaryEmail)
	return result, nil
}

// ProvisionResult reports a created directory account.
type ProvisionResult struct {
	PrimaryEmail string
	OrgUnitPath  string
}

// Provision creates the directory account for a row the administrator
// approved and marks the row active. The one-time password travels only to
// the requester's out-of-band recovery address.
func (s *Service) Provision(ctx context.Context, rowID int64) (*ProvisionResult, error) {
	row, err := s.ledger.GetRow(ctx, rowID)
	if err != nil {
		return nil, err
	}
	if row.Exists {
		return nil, fmt.Errorf("%w: row %d is already provisioned", ErrInvalidTransition, rowID)
	}
	if row.Status != domain.StatusPendingAdmin {
		return nil, fmt.Errorf("%w: row %d is %s, expected %s", ErrInvalidTransition, rowID, row.Status, domain.StatusPendingAdmin)
	}

	// Duplicate-creation guard.
	if _, err := s.directory.Get(ctx, row.PrimaryEmail); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAccount, row.PrimaryEmail)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("checking directory for %s: %w", row.PrimaryEmail, err)
	}

	orgUnitPath := s.cfg.MembersOrgUnit
	if row.IsLeader {
		orgUnitPath = s.cfg.LeadersOrgUnit
	}
	if row.IsUnit {
		orgUnitPath = s.cfg.UnitsOrgUnit
	}

	password, err := GeneratePassword(passwordLength)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &domain.Account{
		PrimaryEmail: row.PrimaryEmail,
		Name: domain.AccountName{
			FullName:   row.Name + " " + row.Surname,
			GivenName:  row.Name,
			FamilyName: row.Surname,
		},
		OrgUnitPath:               orgUnitPath,
		ChangePasswordAtNextLogin: true,
		Password:                  password,
		RecoveryEmail:             row.RecoveryEmail,
		Relations: []domain.Relation{
			{Type: "custom", CustomType: domain.RelationConfirmationDate, Value: now.UTC().Format(time.RFC3339)},
		},
		Emails: []domain.TypedEmail{{Type: "work", Address: row.RecoveryEmail}},
	}
	if row.ApproverEmail != "" {
		account.Relations = append(account.Relations,
			domain.Relation{Type: domain.RelationManager, Value: row.ApproverEmail})
	}
	if row.RecoveryPhone != "" {
		account.RecoveryPhone = s.cfg.PhonePrefix + row.RecoveryPhone
		account.Phones = []domain.TypedPhone{{Type: "work", Value: row.RecoveryPhone}}
	}
	if err := s.directory.Insert(ctx, account); err != nil {
		return nil, fmt.Errorf("creating directory account %s: %w", row.PrimaryEmail, err)
	}

	exists := true
	status := domain.StatusActive
	if err := s.ledger.UpdateRow(ctx, rowID, domain.RowUpdate{
		Timestamp: &now,
		Status:    &status,
		Exists:    &exists,
	}); err != nil {
		return nil, fmt.Errorf("marking row %d provisioned: %w", rowID, err)
	}

	body := fmt.Sprintf(
		"Your account is ready.\n\nAddress: %s\nOne-time password: %s\n\nYou will be asked to change the password at first login.\n",
		row.PrimaryEmail, password)
	htmlBody, err := renderMail(mailCreated, createdMail{PrimaryEmail: row.PrimaryEmail, Password: password})
	if err != nil {
		s.logger.Error("failed to render credentials mail", "primary_email", row.PrimaryEmail, "error", err)
	}
	if err := s.notifier.Send(ctx, []string{row.RecoveryEmail},
		fmt.Sprintf("Your account %s is ready", row.PrimaryEmail), body, htmlBody); err != nil {
		s.logger.Error("failed to send credentials", "primary_email", row.PrimaryEmail, "error", err)
	}

	s.logger.Info("account provisioned", "primary_email", row.PrimaryEmail, "org_unit", orgUnitPath)
	return &ProvisionResult{PrimaryEmail: row.PrimaryEmail, OrgUnitPath: orgUnitPath}, nil
}

func (s *Service) confirmationLink(identifier, stateToken string) string {
	return fmt.Sprintf("%s/confirm?id=%s&state=%s", s.cfg.ConfirmBaseURL, identifier, stateToken)
}
