// Package gdrive is a thin client for the Google Drive v3 API covering the
// four capabilities healthdrive needs: folder lookup by name, name-predicate
// search, paginated listing, and chunked content download. Every failure that
// leaves this package is an *Error whose Kind is one of the sentinels below.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Error kinds. Use errors.Is(err, gdrive.ErrNotFound) to branch.
var (
	// ErrAuth means no usable credential could be produced or the remote
	// service rejected the one presented. Fatal to the call.
	ErrAuth = errors.New("gdrive: authorization required")

	// ErrNotFound means the folder or object does not exist (or is trashed).
	ErrNotFound = errors.New("gdrive: not found")

	// ErrAmbiguous means a name lookup matched more than one folder.
	ErrAmbiguous = errors.New("gdrive: ambiguous name")

	// ErrFetch means a transfer with the remote service failed. No partial
	// content accompanies it.
	ErrFetch = errors.New("gdrive: transfer failed")
)

// Error carries the kind of a failure plus enough context to render it.
type Error struct {
	Op         string      // "resolve folder", "list files", "search", "fetch content"
	Kind       error       // one of ErrAuth, ErrNotFound, ErrAmbiguous, ErrFetch
	StatusCode int         // HTTP status when the remote service answered, else 0
	Message    string      // human-readable detail
	Candidates []Container // populated for ErrAmbiguous
	Err        error       // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap exposes both the kind and the cause, so errors.Is works for the
// sentinel and for context.Canceled alike.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// rateLimitReasons are 403 reasons that mean "slow down", not "forbidden".
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// classify converts any error produced while talking to Drive into an
// *Error. fallback is the kind used when nothing more specific applies.
func classify(op string, err error, fallback error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}

	// Credential failures surface through the oauth2 transport wrapped in
	// *url.Error; they keep the ErrAuth sentinel in their chain.
	if errors.Is(err, ErrAuth) {
		return &Error{Op: op, Kind: ErrAuth, Message: err.Error(), Err: err}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Op: op, Kind: fallback, Message: err.Error(), Err: err}
	}

	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return &Error{Op: op, Kind: fallback, Message: err.Error(), Err: err}
	}

	out := &Error{
		Op:         op,
		Kind:       fallback,
		StatusCode: gErr.Code,
		Message:    remoteMessage(gErr),
		Err:        err,
	}

	switch gErr.Code {
	case http.StatusUnauthorized:
		out.Kind = ErrAuth
	case http.StatusForbidden:
		if !isRateLimited(gErr) {
			out.Kind = ErrAuth
		}
	case http.StatusNotFound:
		out.Kind = ErrNotFound
	}

	return out
}

func isRateLimited(gErr *googleapi.Error) bool {
	for _, item := range gErr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}

	return false
}

func remoteMessage(gErr *googleapi.Error) string {
	if gErr.Message != "" {
		return gErr.Message
	}

	if gErr.Body != "" {
		return gErr.Body
	}

	return http.StatusText(gErr.Code)
}
