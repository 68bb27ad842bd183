package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies provider failures. Derived from transport status codes,
// never from message text, so callers can branch without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindInsufficientCredit
	KindRateLimited
	KindTransport
	KindProtocol
	KindToolLoopLimit
	KindProvidersExhausted
)

func (k Kind) String() string {
	switch k {
	case KindInsufficientCredit:
		return "insufficient_credit"
	case KindRateLimited:
		return "rate_limited"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindToolLoopLimit:
		return "tool_loop_limit"
	case KindProvidersExhausted:
		return "providers_exhausted"
	default:
		return "unknown"
	}
}

// ErrNoProviders is the single hard configuration failure: no provider is
// configured at all for the requested operation.
var ErrNoProviders = errors.New("no providers configured")

// ProviderError is the structured failure an adapter returns.
type ProviderError struct {
	Provider string
	Kind     Kind
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err with a provider id and failure kind.
func NewProviderError(provider string, kind Kind, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Status: status, Err: err}
}

// KindFromStatus maps an HTTP status code onto the failure taxonomy:
// 402 means the account is out of credit, 429 means rate limited, 5xx is a
// backend fault the provider may recover from, any other non-2xx is a
// protocol-level rejection of the request.
func KindFromStatus(status int) Kind {
	switch {
	case status == http.StatusPaymentRequired:
		return KindInsufficientCredit
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindTransport
	default:
		return KindProtocol
	}
}

// KindOf extracts the failure kind from err. Context timeouts and plain
// transport errors map to KindTransport; nil maps to KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return KindFromStatus(se.Status)
	}
	if errors.Is(err, ErrMalformedResponse) {
		return KindProtocol
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransport
	}
	return KindTransport
}

// Classify turns any adapter-level error into a ProviderError carrying the
// right kind for the retry/skip decision upstream.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	status := 0
	var se *HTTPStatusError
	if errors.As(err, &se) {
		status = se.Status
	}
	return NewProviderError(provider, KindOf(err), status, err)
}
