package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"veil-chat/go-handoff/internal/exchange"
	"veil-chat/go-handoff/pkg/models"
)

const defaultClientTimeout = 10 * time.Second

// Client talks to a running daemon over its JSON-RPC listener. The CLI
// uses it; any local process holding the token could speak the same
// protocol directly.
type Client struct {
	Addr  string
	Token string
	HTTP  *http.Client
}

func NewClient(addr, token string) *Client {
	if strings.TrimSpace(addr) == "" {
		addr = DefaultRPCAddr
	}
	return &Client{
		Addr:  strings.TrimSpace(addr),
		Token: strings.TrimSpace(token),
		HTTP:  &http.Client{Timeout: defaultClientTimeout},
	}
}

// CallError is the JSON-RPC error object returned by the daemon.
type CallError struct {
	Code    int
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.call(ctx, "health_check", nil, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("daemon reported status %q", out.Status)
	}
	return nil
}

func (c *Client) StartExport(ctx context.Context, format string) (models.ExchangeState, error) {
	var state models.ExchangeState
	params := map[string]string{}
	if strings.TrimSpace(format) != "" {
		params["format"] = strings.TrimSpace(format)
	}
	err := c.call(ctx, "exchange.start_export", params, &state)
	return state, err
}

func (c *Client) BeginScan(ctx context.Context) (models.ExchangeState, error) {
	var state models.ExchangeState
	err := c.call(ctx, "exchange.begin_scan", nil, &state)
	return state, err
}

func (c *Client) SubmitScan(ctx context.Context, payload string) (models.ExchangeState, error) {
	var state models.ExchangeState
	err := c.call(ctx, "exchange.submit_scan", map[string]string{"payload": payload}, &state)
	return state, err
}

func (c *Client) ReportScanError(ctx context.Context, reason string) (models.ExchangeState, error) {
	var state models.ExchangeState
	err := c.call(ctx, "exchange.report_scan_error", map[string]string{"reason": reason}, &state)
	return state, err
}

func (c *Client) Cancel(ctx context.Context) (models.ExchangeState, error) {
	var state models.ExchangeState
	err := c.call(ctx, "exchange.cancel", nil, &state)
	return state, err
}

func (c *Client) Reset(ctx context.Context) (models.ExchangeState, error) {
	var state models.ExchangeState
	err := c.call(ctx, "exchange.reset", nil, &state)
	return state, err
}

func (c *Client) State(ctx context.Context) (models.ExchangeState, error) {
	var state models.ExchangeState
	err := c.call(ctx, "exchange.get_state", nil, &state)
	return state, err
}

func (c *Client) Events(ctx context.Context, fromSeq int64) ([]exchange.Event, error) {
	var out struct {
		Events []exchange.Event `json:"events"`
	}
	err := c.call(ctx, "exchange.events", map[string]int64{"from_seq": fromSeq}, &out)
	return out.Events, err
}

func (c *Client) Account(ctx context.Context) (models.Account, error) {
	var account models.Account
	err := c.call(ctx, "account.get", nil, &account)
	return account, err
}

func (c *Client) BackupExport(ctx context.Context, consent, passphrase string) (string, error) {
	var out struct {
		Blob string `json:"blob"`
	}
	params := map[string]string{"consent": consent, "passphrase": passphrase}
	if err := c.call(ctx, "backup.export", params, &out); err != nil {
		return "", err
	}
	return out.Blob, nil
}

func (c *Client) BackupRestore(ctx context.Context, consent, passphrase, blob string) (string, error) {
	var out struct {
		Restored bool   `json:"restored"`
		Username string `json:"username"`
	}
	params := map[string]string{"consent": consent, "passphrase": passphrase, "blob": blob}
	if err := c.call(ctx, "backup.restore", params, &out); err != nil {
		return "", err
	}
	return out.Username, nil
}

func (c *Client) call(ctx context.Context, method string, params any, out any) (retErr error) {
	if ctx == nil {
		ctx = context.Background()
	}
	body := struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int    `json:"id"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+c.Addr+"/rpc", bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("X-Veil-RPC-Token", c.Token)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && retErr == nil {
			retErr = closeErr
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc status %d", resp.StatusCode)
	}

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}
	if decoded.Error != nil {
		return &CallError{Code: decoded.Error.Code, Message: decoded.Error.Message}
	}
	if out != nil && len(decoded.Result) > 0 {
		return json.Unmarshal(decoded.Result, out)
	}
	return nil
}
