package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-bank-sync/model"
)

// TransportError marks failures where the server's decision is unknown: the
// request may or may not have been applied. Callers must retry with the same
// transfer id rather than give up or mint a new one.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectionError is a definitive server refusal carried back to the caller.
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("server rejected request (%d): %s", e.StatusCode, e.Message)
}

// Client talks to the ledger server over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// SetToken installs the bearer token used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &TransportError{Op: op, Err: fmt.Errorf("server returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		var appErr struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&appErr); err != nil || appErr.Message == "" {
			appErr.Message = http.StatusText(resp.StatusCode)
		}
		return &RejectionError{StatusCode: resp.StatusCode, Message: appErr.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SubmitTransfer posts a single transfer for immediate execution.
func (c *Client) SubmitTransfer(ctx context.Context, t *model.Transfer) (*model.Transfer, error) {
	var executed model.Transfer
	if err := c.do(ctx, "submit transfer", http.MethodPost, "/transactions", t, &executed); err != nil {
		return nil, err
	}
	return &executed, nil
}

// SyncTransfers posts a batch of queued transfers and returns per-item
// results in submission order.
func (c *Client) SyncTransfers(ctx context.Context, transfers []model.Transfer) ([]model.BatchResult, error) {
	var resp model.SyncResponse
	req := model.SyncRequest{Transfers: transfers}
	if err := c.do(ctx, "sync transfers", http.MethodPost, "/sync/transactions", req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// GetSnapshot fetches the authoritative account snapshot.
func (c *Client) GetSnapshot(ctx context.Context) (*model.AccountSnapshot, error) {
	var snap model.AccountSnapshot
	if err := c.do(ctx, "get snapshot", http.MethodGet, "/account/details", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetTransactions fetches a page of the server-side transfer history.
func (c *Client) GetTransactions(ctx context.Context, page, limit int) (*model.HistoryResponse, error) {
	var history model.HistoryResponse
	path := fmt.Sprintf("/transactions?page=%d&limit=%d", page, limit)
	if err := c.do(ctx, "get transactions", http.MethodGet, path, nil, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// Health probes the server health endpoint. Any error or non-200 counts as
// unreachable.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}
