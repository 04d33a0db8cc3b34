package app

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/19pdh/user-manager/internal/domain"
)

func newTestReconciler(directory Directory) *Reconciler {
	rec := NewReconciler(directory, testLogger(), testConfig())
	rec.pace = func() {}
	return rec
}

func putLeader(directory *fakeDirectory, email string) {
	directory.put(&domain.Account{PrimaryEmail: email, OrgUnitPath: "/leaders"})
}

func TestSyncGroup_ClassifiesEveryAddress(t *testing.T) {
	directory := newFakeDirectory()
	putLeader(directory, "stays@example.org")
	putLeader(directory, "leaves@example.org")
	directory.put(&domain.Account{PrimaryEmail: "joins@example.org", OrgUnitPath: "/members"})

	rec := newTestReconciler(directory)
	result, err := rec.SyncGroup(context.Background(), []string{
		"stays@example.org",
		"joins@example.org",
		"missing@example.org",
	})
	if err != nil {
		t.Fatalf("SyncGroup: %v", err)
	}

	if !reflect.DeepEqual(result.Added, []string{"joins@example.org"}) {
		t.Errorf("added = %v", result.Added)
	}
	if !reflect.DeepEqual(result.Removed, []string{"leaves@example.org"}) {
		t.Errorf("removed = %v", result.Removed)
	}
	if !reflect.DeepEqual(result.NotFound, []string{"missing@example.org"}) {
		t.Errorf("not found = %v", result.NotFound)
	}

	joined, _ := directory.Get(context.Background(), "joins@example.org")
	if joined.OrgUnitPath != "/leaders" {
		t.Errorf("joins org unit = %q", joined.OrgUnitPath)
	}
	left, _ := directory.Get(context.Background(), "leaves@example.org")
	if left.OrgUnitPath != "/members/reserve" {
		t.Errorf("leaves org unit = %q", left.OrgUnitPath)
	}
	stays, _ := directory.Get(context.Background(), "stays@example.org")
	if stays.OrgUnitPath != "/leaders" {
		t.Errorf("stays org unit = %q", stays.OrgUnitPath)
	}
}

func TestSyncGroup_NormalizesTargetList(t *testing.T) {
	directory := newFakeDirectory()
	directory.put(&domain.Account{PrimaryEmail: "anna.nowak@example.org", OrgUnitPath: "/members"})

	rec := newTestReconciler(directory)
	result, err := rec.SyncGroup(context.Background(), []string{
		"  Anna.Nowak@Example.org ",
		"anna.nowak@example.org",
		"not an address",
		"",
	})
	if err != nil {
		t.Fatalf("SyncGroup: %v", err)
	}
	if len(result.Added) != 1 || result.Added[0] != "anna.nowak@example.org" {
		t.Errorf("added = %v", result.Added)
	}
	if len(result.NotFound) != 0 {
		t.Errorf("malformed entries must be discarded, not reported: %v", result.NotFound)
	}
}

func TestSyncGroup_RejectsEmptyTargetList(t *testing.T) {
	rec := newTestReconciler(newFakeDirectory())
	_, err := rec.SyncGroup(context.Background(), []string{"", "not-an-address"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSyncGroup_IsIdempotent(t *testing.T) {
	directory := newFakeDirectory()
	putLeader(directory, "a@example.org")
	directory.put(&domain.Account{PrimaryEmail: "b@example.org", OrgUnitPath: "/members"})

	rec := newTestReconciler(directory)
	targets := []string{"a@example.org", "b@example.org"}
	if _, err := rec.SyncGroup(context.Background(), targets); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	second, err := rec.SyncGroup(context.Background(), targets)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if len(second.Added) != 0 || len(second.Removed) != 0 {
		t.Errorf("second sync must be a no-op, got %+v", second)
	}
}

func TestSyncGroup_IncludesSuspendedMembers(t *testing.T) {
	// A suspended account parked in the leadership unit is still moved out
	// when it drops off the target list.
	directory := newFakeDirectory()
	directory.put(&domain.Account{
		PrimaryEmail: "suspended.leader@example.org",
		OrgUnitPath:  "/leaders",
		Suspended:    true,
	})
	putLeader(directory, "active.leader@example.org")

	rec := newTestReconciler(directory)
	result, err := rec.SyncGroup(context.Background(), []string{"active.leader@example.org"})
	if err != nil {
		t.Fatalf("SyncGroup: %v", err)
	}
	if len(result.Removed) != 1 || result.Removed[0] != "suspended.leader@example.org" {
		t.Errorf("removed = %v", result.Removed)
	}
	moved, _ := directory.Get(context.Background(), "suspended.leader@example.org")
	if moved.OrgUnitPath != "/members/reserve" {
		t.Errorf("org unit = %q", moved.OrgUnitPath)
	}
}

func TestSyncGroup_PaginatesMemberListing(t *testing.T) {
	directory := newFakeDirectory()
	directory.pageSize = 1
	putLeader(directory, "a@example.org")
	putLeader(directory, "b@example.org")
	putLeader(directory, "c@example.org")

	rec := newTestReconciler(directory)
	result, err := rec.SyncGroup(context.Background(), []string{"a@example.org"})
	if err != nil {
		t.Fatalf("SyncGroup: %v", err)
	}
	if len(result.Removed) != 2 {
		t.Errorf("expected both off-list members removed, got %v", result.Removed)
	}
}

func TestSyncGroup_HardErrorAborts(t *testing.T) {
	directory := newFakeDirectory()
	directory.patchErr = errors.New("directory unavailable")
	directory.put(&domain.Account{PrimaryEmail: "b@example.org", OrgUnitPath: "/members"})

	rec := newTestReconciler(directory)
	if _, err := rec.SyncGroup(context.Background(), []string{"b@example.org"}); err == nil {
		t.Fatal("expected the patch failure to abort the sync")
	}
}
