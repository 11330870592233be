package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flxgame/gamesync/pkg/gamestate"
)

const (
	// DefaultRequestTimeout bounds every call so a hung flush or poll
	// fails fast instead of staying pending.
	DefaultRequestTimeout = 10 * time.Second
)

// Client is the HTTP client for the sync engine's API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type NewClientOptions struct {
	BaseURL string
	// Token is the platform identity token sent as a bearer token
	Token   string
	Timeout time.Duration
}

func NewClient(opts NewClientOptions) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// EnsureUser resolves the platform identity to an internal user,
// creating it on first contact.
func (c *Client) EnsureUser(ctx context.Context) (*gamestate.User, error) {
	user := &gamestate.User{}
	if err := c.do(ctx, http.MethodPost, "/user", nil, user); err != nil {
		return nil, err
	}
	return user, nil
}

// LatestState fetches the authoritative snapshot.
func (c *Client) LatestState(ctx context.Context) (*gamestate.GameState, error) {
	state := &gamestate.GameState{}
	if err := c.do(ctx, http.MethodGet, "/gamestate", nil, state); err != nil {
		return nil, err
	}
	return state, nil
}

// ApplyPatch sends a partial update and returns the updated snapshot.
func (c *Client) ApplyPatch(ctx context.Context, patch gamestate.Patch) (*gamestate.GameState, error) {
	state := &gamestate.GameState{}
	if err := c.do(ctx, http.MethodPost, "/gamestate", patch, state); err != nil {
		return nil, err
	}
	return state, nil
}

// RecomputePoints asks the server to re-derive points from the
// authoritative snapshot.
func (c *Client) RecomputePoints(ctx context.Context) (int64, error) {
	response := struct {
		Points int64 `json:"points"`
	}{}
	if err := c.do(ctx, http.MethodPost, "/points", nil, &response); err != nil {
		return 0, err
	}
	return response.Points, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &ErrStateNotFound{}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &ErrStatus{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %v", err)
		}
	}

	return nil
}
