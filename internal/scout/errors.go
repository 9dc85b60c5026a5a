package scout

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed classification for sweep failures. Exactly one
// concept per kind; HTTP status specificity is carried by SweepError.Status.
type ErrorKind string

// Sweep error kinds.
const (
	KindFetchFailed        ErrorKind = "fetch_failed"
	KindHTTPError          ErrorKind = "http_error"
	KindRedirectBlocked    ErrorKind = "redirect_blocked"
	KindNonHTMLResponse    ErrorKind = "non_html_response"
	KindEmptyHTML          ErrorKind = "empty_html"
	KindNoUsableFields     ErrorKind = "html_received_no_events"
	KindUnsupportedLayout  ErrorKind = "unsupported_layout"
	KindExtractorError     ErrorKind = "extractor_error"
	KindConstraintOutdated ErrorKind = "attribute_constraint_outdated"
)

// Diagnostics is the bundle attached to every fetch outcome, success or not.
// Operators rely on it being complete on failure paths.
type Diagnostics struct {
	StatusCode    int      `json:"status_code"`
	ContentType   string   `json:"content_type"`
	ByteCount     int      `json:"byte_count"`
	FinalURL      string   `json:"final_url"`
	RedirectCount int      `json:"redirect_count"`
	RedirectChain []string `json:"redirect_chain,omitempty"`
	LastLocation  string   `json:"last_location,omitempty"`
}

// SweepError is the classified failure returned by the fetcher and extractor
// layers. HTTP-layer translation happens once at the API boundary.
type SweepError struct {
	Kind        ErrorKind
	Status      int
	Message     string
	Diagnostics Diagnostics
	Err         error
}

// Code renders the machine-readable code, embedding the HTTP status for
// http_error so callers can pattern-match per-status.
func (e *SweepError) Code() string {
	if e.Kind == KindHTTPError {
		return fmt.Sprintf("http_error_%d", e.Status)
	}
	return string(e.Kind)
}

func (e *SweepError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code(), e.Err)
	}
	return e.Code()
}

func (e *SweepError) Unwrap() error {
	return e.Err
}

// NewSweepError builds a classified error with diagnostics attached.
func NewSweepError(kind ErrorKind, diag Diagnostics, msg string) *SweepError {
	return &SweepError{Kind: kind, Diagnostics: diag, Message: msg, Status: diag.StatusCode}
}

// WrapFetchFailed classifies a transport-level failure (DNS, timeout, body
// read) distinctly from a non-2xx response.
func WrapFetchFailed(diag Diagnostics, err error) *SweepError {
	return &SweepError{Kind: KindFetchFailed, Diagnostics: diag, Err: err}
}

// AsSweepError unwraps err into a *SweepError if it is one.
func AsSweepError(err error) (*SweepError, bool) {
	var se *SweepError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// TerminalKind maps a fetch failure onto the registry status that should
// permanently park the source, if any. A plain fetch_failed is transient and
// maps to nothing.
func TerminalKind(err *SweepError) (SourceReviewStatus, bool) {
	switch {
	case err.Kind == KindHTTPError && (err.Status == 401 || err.Status == 403):
		return SourceBlocked, true
	case err.Kind == KindHTTPError && err.Status == 402:
		return SourcePaywalled, true
	case err.Kind == KindHTTPError && err.Status == 404 || err.Kind == KindHTTPError && err.Status == 410:
		return SourceDead, true
	case err.Kind == KindRedirectBlocked:
		return SourceBlocked, true
	default:
		return "", false
	}
}
