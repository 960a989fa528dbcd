package upstream

import (
	"errors"
	"fmt"

	"identigraph/internal/domain"
)

// Kind classifies a fetch failure
type Kind string

const (
	KindNoResult          Kind = "no_result"
	KindUpstreamHTTP      Kind = "upstream_http_error"
	KindTransportTimeout  Kind = "transport_timeout"
	KindTransport         Kind = "transport_error"
	KindMalformedResponse Kind = "malformed_response"
	KindParam             Kind = "param_error"
	KindStorage           Kind = "storage_error"
)

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrNoResult          = &Error{Kind: KindNoResult}
	ErrUpstreamHTTP      = &Error{Kind: KindUpstreamHTTP}
	ErrTransportTimeout  = &Error{Kind: KindTransportTimeout}
	ErrTransport         = &Error{Kind: KindTransport}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
	ErrParam             = &Error{Kind: KindParam}
	ErrStorage           = &Error{Kind: KindStorage}
)

// Error is a classified fetch failure
type Error struct {
	Kind    Kind
	Source  domain.DataSource
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Source != "" {
		msg = fmt.Sprintf("%s: %s", e.Source, msg)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of err, or "" when err is not classified
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNoResult reports whether err means "nothing found" rather than a failure
func IsNoResult(err error) bool {
	return errors.Is(err, ErrNoResult)
}

func noResult(source domain.DataSource, format string, args ...any) error {
	return &Error{Kind: KindNoResult, Source: source, Message: fmt.Sprintf(format, args...)}
}

func paramError(source domain.DataSource, format string, args ...any) error {
	return &Error{Kind: KindParam, Source: source, Message: fmt.Sprintf(format, args...)}
}

func malformed(source domain.DataSource, format string, args ...any) error {
	return &Error{Kind: KindMalformedResponse, Source: source, Message: fmt.Sprintf(format, args...)}
}

func storageError(source domain.DataSource, err error) error {
	return &Error{Kind: KindStorage, Source: source, Err: err}
}
