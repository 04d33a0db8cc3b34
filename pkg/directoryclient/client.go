/**
 * @description
 * This package provides a client for the directory service REST API, which
 * holds the authoritative account objects and their relations. It
 * encapsulates authenticated HTTP requests, JSON handling and pagination.
 */
package directoryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/19pdh/user-manager/internal/domain"
)

// Client is a client for the directory service API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new directory API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Get fetches an account by its primary address or opaque directory ID.
// Returns domain.ErrNotFound when no such account exists.
func (c *Client) Get(ctx context.Context, identifier string) (*domain.Account, error) {
	endpoint := fmt.Sprintf("%s/api/v1/users/%s", c.baseURL, url.PathEscape(identifier))
	var account domain.Account
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Insert creates a new directory account.
func (c *Client) Insert(ctx context.Context, account *domain.Account) error {
	endpoint := fmt.Sprintf("%s/api/v1/users", c.baseURL)
	return c.do(ctx, http.MethodPost, endpoint, account, nil)
}

// Patch applies a partial update to an existing account.
func (c *Client) Patch(ctx context.Context, identifier string, patch domain.AccountPatch) error {
	endpoint := fmt.Sprintf("%s/api/v1/users/%s", c.baseURL, url.PathEscape(identifier))
	return c.do(ctx, http.MethodPatch, endpoint, patch, nil)
}

// Remove deletes a directory account.
func (c *Client) Remove(ctx context.Context, identifier string) error {
	endpoint := fmt.Sprintf("%s/api/v1/users/%s", c.baseURL, url.PathEscape(identifier))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

type listResponse struct {
	Users         []domain.Account `json:"users"`
	NextPageToken string           `json:"nextPageToken"`
}

// List returns one page of accounts matching the query plus the token for
// the next page; an empty token means the listing is drained.
func (c *Client) List(ctx context.Context, query domain.ListQuery, pageToken string) ([]domain.Account, string, error) {
	params := url.Values{}
	params.Set("orgUnitPath", query.OrgUnitPath)
	params.Set("maxResults", "100")
	if query.IncludeSuspended {
		params.Set("includeSuspended", "true")
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	endpoint := fmt.Sprintf("%s/api/v1/users?%s", c.baseURL, params.Encode())

	var page listResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, "", err
	}
	return page.Users, page.NextPageToken, nil
}

// do executes an authenticated request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("directory %s %s: %w", method, endpoint, domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("directory %s %s: status %d: %s", method, endpoint, resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding directory response: %w", err)
		}
	}
	return nil
}
