// Package fault is the structured error value business code raises. A fault
// carries an error id and context; severity and user visibility are decided
// later from the catalog at the boundary.
package fault

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"
)

// Fields is free-form error context such as tenantId or entity ids.
type Fields map[string]any

// Well-known context keys.
const (
	KeyTenantID      = "tenantId"
	KeyCorrelationID = "correlationId"
)

// Error is a structured error owned by the call chain that raised it.
type Error struct {
	ID         string
	Message    string
	Context    Fields
	Cause      error
	OccurredAt time.Time
}

// Raise creates a fault for id with the given context.
func Raise(id string, fields Fields) *Error {
	e := &Error{ID: id, Context: Fields{}, OccurredAt: time.Now()}
	maps.Copy(e.Context, fields)
	return e
}

// RaiseCtx is Raise plus the correlation and tenant ids carried by ctx.
func RaiseCtx(ctx context.Context, id string, fields Fields) *Error {
	e := Raise(id, fields)
	if cid := CorrelationID(ctx); cid != "" {
		e.Context[KeyCorrelationID] = cid
	}
	if tid := TenantID(ctx); tid != "" {
		if _, set := e.Context[KeyTenantID]; !set {
			e.Context[KeyTenantID] = tid
		}
	}
	return e
}

// New creates a fault with an internal message.
func New(id, message string) *Error {
	e := Raise(id, nil)
	e.Message = message
	return e
}

// Newf creates a fault with a formatted internal message.
func Newf(id, format string, args ...any) *Error {
	return New(id, fmt.Sprintf(format, args...))
}

// Wrap raises id with cause as its predecessor.
func Wrap(cause error, id, message string) *Error {
	e := New(id, message)
	e.Cause = cause
	return e
}

// With adds one context field.
func (e *Error) With(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// WithFields merges fields into the context.
func (e *Error) WithFields(fields Fields) *Error {
	maps.Copy(e.Context, fields)
	return e
}

// Error returns the internal representation. It is never sent to end users.
func (e *Error) Error() string {
	msg := e.ID
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// As returns the outermost fault in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ID returns the id of the outermost fault in err's chain, or "".
func ID(err error) string {
	if e, ok := As(err); ok {
		return e.ID
	}
	return ""
}

// AddContext attaches a field to the outermost fault in err's chain. Errors
// without a fault are returned unchanged.
func AddContext(err error, key string, value any) error {
	if e, ok := As(err); ok {
		e.Context[key] = value
	}
	return err
}

// CollectFields merges the context of every fault in err's chain. Inner
// fields are applied first so the outer layers win on conflicting keys.
func CollectFields(err error) Fields {
	var chain []*Error
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if e, ok := cur.(*Error); ok {
			chain = append(chain, e)
		}
	}

	out := Fields{}
	for i := len(chain) - 1; i >= 0; i-- {
		maps.Copy(out, chain[i].Context)
	}
	return out
}

// String returns a context value as a string, or "" when absent.
func (f Fields) String(key string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
