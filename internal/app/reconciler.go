/**
 * @description
 * Batch reconciliation of the leadership org-unit membership against a
 * supplied target list. Last-writer-wins and non-transactional: a concurrent
 * directory change between the listing and the patches is not detected.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/19pdh/user-manager/internal/config"
	"github.com/19pdh/user-manager/internal/domain"
)

// addressPattern is the basic address-shape check applied to the target list.
var addressPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ReconcileResult classifies every address the sync touched.
type ReconcileResult struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	NotFound []string `json:"not_found"`
}

// Reconciler syncs the leadership org unit against a target list.
type Reconciler struct {
	directory Directory
	logger    *slog.Logger
	cfg       config.Config
	pace      func()
}

// NewReconciler creates the group membership reconciler.
func NewReconciler(directory Directory, logger *slog.Logger, cfg config.Config) *Reconciler {
	delay := time.Duration(cfg.RateLimitDelayMS) * time.Millisecond
	return &Reconciler{
		directory: directory,
		logger:    logger,
		cfg:       cfg,
		pace:      func() { time.Sleep(delay) },
	}
}

// SyncGroup moves every listed directory account into the leadership org
// unit and every unlisted current member out to the reserve unit. Invalid
// addresses are discarded before any directory call.
func (r *Reconciler) SyncGroup(ctx context.Context, targets []string) (*ReconcileResult, error) {
	targetSet := make(map[string]bool)
	ordered := make([]string, 0, len(targets))
	for _, raw := range targets {
		addr := strings.ToLower(strings.TrimSpace(raw))
		if addr == "" || !addressPattern.MatchString(addr) {
			continue
		}
		if !targetSet[addr] {
			targetSet[addr] = true
			ordered = append(ordered, addr)
		}
	}
	if len(ordered) == 0 {
		return nil, fmt.Errorf("%w: no valid addresses in target list", ErrValidation)
	}

	members, err := r.listMembers(ctx)
	if err != nil {
		return nil, err
	}
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[strings.ToLower(m.PrimaryEmail)] = true
	}

	result := &ReconcileResult{Added: []string{}, Removed: []string{}, NotFound: []string{}}

	for _, addr := range ordered {
		if memberSet[addr] {
			continue
		}
		account, err := r.directory.Get(ctx, addr)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				result.NotFound = append(result.NotFound, addr)
				continue
			}
			return nil, fmt.Errorf("resolving %s: %w", addr, err)
		}
		orgUnit := r.cfg.LeadersOrgUnit
		if err := r.directory.Patch(ctx, account.PrimaryEmail, domain.AccountPatch{OrgUnitPath: &orgUnit}); err != nil {
			return nil, fmt.Errorf("moving %s into %s: %w", addr, orgUnit, err)
		}
		result.Added = append(result.Added, addr)
		r.pace()
	}

	for _, m := range members {
		addr := strings.ToLower(m.PrimaryEmail)
		if targetSet[addr] {
			continue
		}
		reserve := r.cfg.ReserveOrgUnit
		if err := r.directory.Patch(ctx, m.PrimaryEmail, domain.AccountPatch{OrgUnitPath: &reserve}); err != nil {
			return nil, fmt.Errorf("moving %s into %s: %w", addr, reserve, err)
		}
		result.Removed = append(result.Removed, addr)
		r.pace()
	}

	r.logger.Info("group sync finished",
		"added", len(result.Added), "removed", len(result.Removed), "not_found", len(result.NotFound))
	return result, nil
}

func (r *Reconciler) listMembers(ctx context.Context) ([]domain.Account, error) {
	query := domain.ListQuery{OrgUnitPath: r.cfg.LeadersOrgUnit, IncludeSuspended: true}
	var members []domain.Account
	pageToken := ""
	for {
		page, nextPageToken, err := r.directory.List(ctx, query, pageToken)
		if err != nil {
			return nil, fmt.Errorf("listing %s members: %w", r.cfg.LeadersOrgUnit, err)
		}
		members = append(members, page...)
		if nextPageToken == "" {
			return members, nil
		}
		pageToken = nextPageToken
	}
}
