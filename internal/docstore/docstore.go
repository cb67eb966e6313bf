// Package docstore defines the contract with the hosted document
// database. The sync packages are written against these interfaces;
// memstore backs tests and local runs, the firestore subpackage backs
// production.
package docstore

import (
	"context"
	"errors"
	"sync"
)

// MaxInValues is the backend's limit on the number of values in a single
// whereIn filter. A store constraint, not a tunable.
const MaxInValues = 10

// ErrInClauseTooLarge is returned when a whereIn query exceeds MaxInValues.
var ErrInClauseTooLarge = errors.New("docstore: whereIn exceeds 10 values")

// Document is a raw backend document: its id plus the decoded field tree.
type Document struct {
	ID   string
	Data map[string]any
}

// QuerySnapshot is one full-replace delivery from a query listener.
// Every invocation carries the complete current result set, not a delta.
type QuerySnapshot struct {
	Docs []Document
	Err  error
}

// DocSnapshot is one delivery from a single-document listener.
type DocSnapshot struct {
	Doc    Document
	Exists bool
	Err    error
}

// Subscription is a live listener registration. Cancel is idempotent and
// releases the listener; no callbacks are delivered after it returns.
type Subscription interface {
	Cancel()
}

// Filter is an equality predicate on a (possibly dotted) field path.
type Filter struct {
	Field string
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Union is the sentinel value for an atomic array-union update: elements
// not already present are appended server-side, concurrent unions
// interleave instead of clobbering.
type Union struct {
	Elems []any
}

// ArrayUnion wraps elems for use as an Update value.
func ArrayUnion(elems ...any) Union {
	return Union{Elems: elems}
}

// Store is the root handle to the document database.
type Store interface {
	Collection(name string) Collection
}

// Collection addresses one named document collection.
type Collection interface {
	// Doc addresses a single document by id.
	Doc(id string) Doc
	// NewID allocates a fresh document id without writing anything.
	NewID() string
	// WhereAny builds a query matching documents that satisfy any of the
	// given equality filters (boolean OR).
	WhereAny(filters ...Filter) Query
	// WhereIn builds a query matching documents whose field equals any of
	// values. Returns ErrInClauseTooLarge for more than MaxInValues.
	WhereIn(field string, values []string) (Query, error)
}

// Doc addresses a single document.
type Doc interface {
	// Get fetches the document. The bool reports existence; absence is
	// not an error.
	Get(ctx context.Context) (Document, bool, error)
	// Set writes the document wholesale, creating it if absent.
	Set(ctx context.Context, data map[string]any) error
	// Update writes a single (possibly dotted) field path. The value may
	// be a Union for atomic array-union semantics.
	Update(ctx context.Context, field string, value any) error
	// Listen registers a live listener. The current state is delivered
	// first, then every subsequent change, in backend write order.
	Listen(fn func(DocSnapshot)) Subscription
}

// Query is a filtered read over a collection.
type Query interface {
	Get(ctx context.Context) ([]Document, error)
	// Listen registers a live listener delivering the full matching set
	// on every change.
	Listen(fn func(QuerySnapshot)) Subscription
}

// CancelFunc adapts a plain function into an idempotent Subscription.
type CancelFunc struct {
	once sync.Once
	fn   func()
}

// NewCancelFunc wraps fn so Cancel runs it at most once.
func NewCancelFunc(fn func()) *CancelFunc {
	return &CancelFunc{fn: fn}
}

// Cancel runs the wrapped function on first call only.
func (c *CancelFunc) Cancel() {
	c.once.Do(c.fn)
}

// MultiSubscription cancels a group of subscriptions as one handle.
type MultiSubscription []Subscription

// Cancel cancels every member subscription.
func (m MultiSubscription) Cancel() {
	for _, s := range m {
		if s != nil {
			s.Cancel()
		}
	}
}
