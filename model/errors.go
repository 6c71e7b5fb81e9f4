package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is matching against the concrete error types below.
var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUpstream         = errors.New("upstream error")
	ErrSchemaMismatch   = errors.New("schema mismatch")
	ErrPersistence      = errors.New("persistence error")
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMalformedPayload
	KindUpstream
	KindSchemaMismatch
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformedPayload:
		return "MalformedPayload"
	case KindUpstream:
		return "UpstreamError"
	case KindSchemaMismatch:
		return "SchemaMismatch"
	case KindPersistence:
		return "PersistenceError"
	default:
		return "Unknown"
	}
}

// KindOf reports which kind of pipeline failure err is, looking through wrapping.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrMalformedPayload):
		return KindMalformedPayload
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	case errors.Is(err, ErrSchemaMismatch):
		return KindSchemaMismatch
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	default:
		return KindUnknown
	}
}

// MalformedPayloadError means the input could not be parsed as JSON at all.
type MalformedPayloadError struct {
	Preview string
	Err     error
}

func (e *MalformedPayloadError) Error() string {
	msg := fmt.Sprintf("unexpected non-JSON response from API: %q", e.Preview)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

func (e *MalformedPayloadError) Is(target error) bool { return target == ErrMalformedPayload }

// UpstreamError carries a throttling or error notice sent by the provider.
type UpstreamError struct {
	Field   string
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("alpha vantage %q: %s", e.Field, e.Message)
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// SchemaMismatchError means the payload is valid JSON but not the expected shape.
type SchemaMismatchError struct {
	Reason string
	// Keys holds the top-level keys of the payload when relevant.
	Keys []string
	// Type is the kind of the payload when it was not an object.
	Type   string
	Detail string
	Err    error
}

func (e *SchemaMismatchError) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason)
	if e.Keys != nil {
		fmt.Fprintf(&b, "; top-level keys received: [%s]", strings.Join(e.Keys, ", "))
	}
	if e.Type != "" {
		fmt.Fprintf(&b, "; received type: %s", e.Type)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, "; %s", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SchemaMismatchError) Unwrap() error { return e.Err }

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// PersistenceError identifies the row whose write failed.
type PersistenceError struct {
	Key RowKey
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to upsert row %s: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
