// Package platform defines the multi-platform sync handler system.
//
// Each supported platform (Shopify, Etsy, Dropbox, Google Drive, Figma,
// Canva) implements a small fixed operation set behind a common Handler
// interface. The dispatcher resolves the handler by name (case-insensitive)
// and hands it a request that already carries a fresh access token.
//
// Design Patterns:
// - Strategy: each platform handler is a strategy for remote sync
// - Factory: Registry creates handler instances on first use
// - Adapter: every remote response is normalized to a neutral Result
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Errors shared by the registry and all handlers.
var (
	// ErrUnknownPlatform indicates the platform name matches no handler.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrUnsupportedOperation indicates the handler does not implement
	// the requested operation.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// UpstreamError wraps a non-2xx response from a platform API.
// The provider message is passed through to the caller per the error contract.
type UpstreamError struct {
	Platform   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream status %d: %s", e.Platform, e.StatusCode, e.Body)
}

// Request is a platform-neutral sync request. The access token is plaintext:
// decryption and refresh already happened upstream in the token lifecycle.
type Request struct {
	Operation   string
	UserID      string
	AccessToken string
	// Settings are per-connection values (e.g. shopify shop domain).
	Settings map[string]string
	// Payload is the operation-specific body, decoded by each handler.
	Payload json.RawMessage
}

// Result is the platform-neutral outcome shape {success, data|error}.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ItemResult reports the outcome of one item in a bulk operation.
// Bulk uploads collect one of these per item instead of aborting on the
// first failure.
type ItemResult struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler is the interface all platform sync handlers implement.
type Handler interface {
	// Name returns the canonical (lowercase) platform name.
	Name() string

	// Operations returns the fixed operation set this handler supports.
	Operations() []string

	// Handle executes one operation. Unknown operations return
	// ErrUnsupportedOperation; remote failures return *UpstreamError.
	Handle(ctx context.Context, req Request) (*Result, error)
}

// QuotaConsumer is implemented by handlers with operations that publish
// generated mockups upstream. QuotaCost reports how many generation
// credits an operation charges given its payload; 0 means the operation
// is free (reads, folder management, imports).
type QuotaConsumer interface {
	QuotaCost(operation string, payload json.RawMessage) int
}

// HandlerConfig carries the shared collaborators a handler needs.
type HandlerConfig struct {
	// HTTPClient performs all outbound calls. It must have a bounded
	// timeout; handlers never install their own.
	HTTPClient *http.Client
}

// Factory creates a handler instance.
type Factory func(cfg HandlerConfig) (Handler, error)

// Ok builds a success result.
func Ok(data any) *Result {
	return &Result{Success: true, Data: data}
}

// SupportsOperation reports whether op is in the handler's operation set.
func SupportsOperation(h Handler, op string) bool {
	for _, o := range h.Operations() {
		if o == op {
			return true
		}
	}
	return false
}
