// ABOUTME: Hive JSON-RPC client answering whether an account exists
// ABOUTME: Calls condenser_api.get_accounts; failures are wrapped in ErrRegistry

package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"
)

// ErrRegistry wraps every failure to get an answer from a registry.
var ErrRegistry = errors.New("registry error")

// DefaultHiveURL is a public Hive API node.
const DefaultHiveURL = "https://api.hive.blog"

// DefaultTimeout bounds one registry request.
const DefaultTimeout = 5 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// rpcRequest is a JSON-RPC 2.0 call.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

// rpcResponse is a JSON-RPC 2.0 reply. Result is decoded by the caller.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     int64           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// hiveAccount holds the fields of get_accounts results this package reads.
type hiveAccount struct {
	Name string `json:"name"`
}

// Hive checks account existence against a Hive API node.
type Hive struct {
	url    string
	client *http.Client
	logger *slog.Logger
	nextID atomic.Int64
}

// HiveOption configures a Hive client.
type HiveOption func(*Hive)

// WithHTTPClient replaces the HTTP client. Its timeout takes precedence.
func WithHTTPClient(c *http.Client) HiveOption {
	return func(h *Hive) {
		if c != nil {
			h.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HiveOption {
	return func(h *Hive) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHive creates a client for the node at endpoint. A zero timeout uses
// DefaultTimeout.
func NewHive(endpoint string, timeout time.Duration, opts ...HiveOption) (*Hive, error) {
	if endpoint == "" {
		endpoint = DefaultHiveURL
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing registry url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("registry url %q must be http or https", endpoint)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	h := &Hive{
		url:    endpoint,
		client: &http.Client{Timeout: timeout},
		logger: slog.Default().With("component", "registry"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Exists reports whether handle names a Hive account.
func (h *Hive) Exists(ctx context.Context, handle string) (bool, error) {
	found, err := h.Accounts(ctx, []string{handle})
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// Accounts returns the names among handles that exist, in the order the
// node returns them.
func (h *Hive) Accounts(ctx context.Context, handles []string) ([]string, error) {
	if len(handles) == 0 {
		return nil, nil
	}

	var accounts []hiveAccount
	if err := h.call(ctx, "condenser_api.get_accounts", []any{handles}, &accounts); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(accounts))
	for _, a := range accounts {
		names = append(names, a.Name)
	}
	h.logger.Debug("looked up accounts", "requested", len(handles), "found", len(names))
	return names, nil
}

// call performs one JSON-RPC request and decodes its result into out.
// Context errors are returned unwrapped so callers can tell cancellation
// apart from registry failure.
func (h *Hive) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      h.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("%w: marshaling request: %v", ErrRegistry, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", ErrRegistry, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: sending request: %v", ErrRegistry, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrRegistry, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d: %s", ErrRegistry, method, resp.StatusCode, truncate(string(data), 200))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrRegistry, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%w: %s: %s (code %d)", ErrRegistry, method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return fmt.Errorf("%w: %s: empty result", ErrRegistry, method)
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("%w: decoding %s result: %v", ErrRegistry, method, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
