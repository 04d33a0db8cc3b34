package directoryclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/19pdh/user-manager/internal/domain"
)

func TestGet_DecodesAccount(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/users/jan.kowalski@example.org" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(domain.Account{
			PrimaryEmail: "jan.kowalski@example.org",
			OrgUnitPath:  "/members",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	account, err := client.Get(context.Background(), "jan.kowalski@example.org")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if account.PrimaryEmail != "jan.kowalski@example.org" || account.OrgUnitPath != "/members" {
		t.Errorf("unexpected account %+v", account)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected authorization header %q", gotAuth)
	}
}

func TestGet_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_, err := client.Get(context.Background(), "nobody@example.org")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsert_PostsAccount(t *testing.T) {
	var got domain.Account
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/users" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	err := client.Insert(context.Background(), &domain.Account{PrimaryEmail: "jan.kowalski@example.org"})
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if got.PrimaryEmail != "jan.kowalski@example.org" {
		t.Errorf("unexpected posted account %+v", got)
	}
}

func TestPatch_SendsPartialUpdate(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/v1/users/jan.kowalski@example.org" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	suspended := true
	err := client.Patch(context.Background(), "jan.kowalski@example.org",
		domain.AccountPatch{Suspended: &suspended})
	if err != nil {
		t.Fatalf("Patch returned error: %v", err)
	}
	if got["suspended"] != true {
		t.Errorf("expected suspended in the patch body, got %v", got)
	}
	if _, ok := got["orgUnitPath"]; ok {
		t.Error("unset patch fields must be omitted")
	}
}

func TestRemove_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	err := client.Remove(context.Background(), "nobody@example.org")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList_EncodesQueryAndPlumbsTokens(t *testing.T) {
	var queries []map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		queries = append(queries, map[string]string{
			"orgUnitPath":      q.Get("orgUnitPath"),
			"maxResults":       q.Get("maxResults"),
			"includeSuspended": q.Get("includeSuspended"),
			"pageToken":        q.Get("pageToken"),
		})
		page := listResponse{Users: []domain.Account{{PrimaryEmail: "a@example.org"}}}
		if q.Get("pageToken") == "" {
			page.NextPageToken = "page-2"
		} else {
			page.Users = []domain.Account{{PrimaryEmail: "b@example.org"}}
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	query := domain.ListQuery{OrgUnitPath: "/members", IncludeSuspended: true}

	first, next, err := client.List(context.Background(), query, "")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(first) != 1 || first[0].PrimaryEmail != "a@example.org" || next != "page-2" {
		t.Fatalf("unexpected first page %v next %q", first, next)
	}

	second, next, err := client.List(context.Background(), query, next)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(second) != 1 || second[0].PrimaryEmail != "b@example.org" || next != "" {
		t.Fatalf("unexpected second page %v next %q", second, next)
	}

	if queries[0]["orgUnitPath"] != "/members" || queries[0]["maxResults"] != "100" {
		t.Errorf("unexpected first query %v", queries[0])
	}
	if queries[0]["includeSuspended"] != "true" {
		t.Errorf("includeSuspended not encoded: %v", queries[0])
	}
	if queries[0]["pageToken"] != "" || queries[1]["pageToken"] != "page-2" {
		t.Errorf("page token not plumbed: %v", queries)
	}
}

func TestList_OmitsIncludeSuspendedByDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("includeSuspended") {
			t.Error("includeSuspended must be omitted unless requested")
		}
		_ = json.NewEncoder(w).Encode(listResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	if _, _, err := client.List(context.Background(), domain.ListQuery{OrgUnitPath: "/members"}, ""); err != nil {
		t.Fatalf("List returned error: %v", err)
	}
}
