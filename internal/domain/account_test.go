package domain

import (
	"testing"
	"time"
)

func TestReplaceRelationIsIdempotent(t *testing.T) {
	relations := []Relation{
		{Type: "manager", Value: "boss@example.org"},
	}

	relations = ReplaceRelation(relations, RelationScheduledForDeactivation, "2026-01-01T00:00:00Z")
	relations = ReplaceRelation(relations, RelationScheduledForDeactivation, "2026-02-01T00:00:00Z")

	count := 0
	for _, r := range relations {
		if r.CustomType == RelationScheduledForDeactivation {
			count++
			if r.Value != "2026-02-01T00:00:00Z" {
				t.Errorf("expected latest deadline to win, got %q", r.Value)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one scheduled_for_deactivation relation, got %d", count)
	}
	if _, ok := FindRelationType(relations, "manager"); !ok {
		t.Error("unrelated relation should survive replacement")
	}
}

func TestWithoutRelation(t *testing.T) {
	relations := []Relation{
		{Type: "custom", CustomType: RelationConfirmationDate, Value: "2024-01-01T00:00:00Z"},
		{Type: "custom", CustomType: RelationConfirmationDate, Value: "2023-01-01T00:00:00Z"},
		{Type: "manager", Value: "boss@example.org"},
	}
	out := WithoutRelation(relations, RelationConfirmationDate)
	if len(out) != 1 || out[0].Value != "boss@example.org" {
		t.Errorf("expected only the manager relation to remain, got %+v", out)
	}
}

func TestNeverLoggedIn(t *testing.T) {
	epoch := &Account{LastLoginTime: time.Unix(0, 0).UTC()}
	if !epoch.NeverLoggedIn() {
		t.Error("epoch last-login should count as never logged in")
	}

	missing := &Account{}
	if missing.NeverLoggedIn() {
		t.Error("missing last-login must not count as never logged in")
	}

	active := &Account{LastLoginTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	if active.NeverLoggedIn() {
		t.Error("real last-login should not count as never logged in")
	}
}

func TestDeriveState(t *testing.T) {
	deadline := time.Now().Add(10 * 24 * time.Hour).Format(time.RFC3339)

	cases := []struct {
		name    string
		row     *Row
		account *Account
		want    State
	}{
		{"pending approver row", &Row{Status: StatusPendingApprover}, nil, StatePendingApprover},
		{"pending admin row", &Row{Status: StatusPendingAdmin}, nil, StatePendingAdmin},
		{"rejected row", &Row{Status: StatusRejected}, nil, StateRejected},
		{"fresh row", &Row{Status: StatusRequested}, nil, StateRequested},
		{"deleted row", &Row{Status: StatusDeleted}, nil, StateDeleted},
		{"provisioned active", &Row{Exists: true}, &Account{}, StateActive},
		{"suspended", &Row{Exists: true}, &Account{Suspended: true}, StateDeactivated},
		{
			"scheduled",
			&Row{Exists: true},
			&Account{Relations: []Relation{{Type: "custom", CustomType: RelationScheduledForDeactivation, Value: deadline}}},
			StateScheduledForDeactivation,
		},
	}

	for _, c := range cases {
		if got := DeriveState(c.row, c.account); got != c.want {
			t.Errorf("%s: DeriveState = %v, want %v", c.name, got, c.want)
		}
	}
}
