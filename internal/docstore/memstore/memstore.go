// Package memstore is an in-process implementation of the docstore
// contract, used by tests and local runs. Writes are last-write-wins,
// array unions are atomic under the store lock, and listeners observe
// full-replace snapshots in write order.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/psantos/loro/internal/docstore"
)

// Store is the in-memory document database.
type Store struct {
	mu   sync.Mutex
	rev  uint64
	next int
	cols map[string]*collection
}

// New creates an empty store.
func New() *Store {
	return &Store{cols: make(map[string]*collection)}
}

// Collection returns the named collection, creating it lazily.
func (s *Store) Collection(name string) docstore.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cols[name]
	if !ok {
		c = &collection{
			store:     s,
			docs:      make(map[string]map[string]any),
			docSubs:   make(map[int]*docListener),
			querySubs: make(map[int]*queryListener),
		}
		s.cols[name] = c
	}
	return c
}

type collection struct {
	store     *Store
	docs      map[string]map[string]any
	docSubs   map[int]*docListener
	querySubs map[int]*queryListener
}

// docListener watches a single document id.
type docListener struct {
	docID string
	sink  sink[docstore.DocSnapshot]
}

// queryListener watches the full match set of a predicate.
type queryListener struct {
	match func(map[string]any) bool
	sink  sink[docstore.QuerySnapshot]
}

// sink serializes deliveries to one callback and drops snapshots that
// arrive out of revision order, so a listener never regresses to a stale
// full-replace state.
type sink[T any] struct {
	mu      sync.Mutex
	lastRev uint64
	fn      func(T)
}

func (k *sink[T]) deliver(rev uint64, snap T) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if rev < k.lastRev {
		return
	}
	k.lastRev = rev
	k.fn(snap)
}

func (c *collection) Doc(id string) docstore.Doc {
	return &doc{col: c, id: id}
}

func (c *collection) NewID() string {
	return uuid.New().String()
}

func (c *collection) WhereAny(filters ...docstore.Filter) docstore.Query {
	return &query{col: c, match: func(data map[string]any) bool {
		for _, f := range filters {
			if v, ok := fieldPath(data, f.Field); ok && reflect.DeepEqual(v, f.Value) {
				return true
			}
		}
		return false
	}}
}

func (c *collection) WhereIn(field string, values []string) (docstore.Query, error) {
	if len(values) > docstore.MaxInValues {
		return nil, docstore.ErrInClauseTooLarge
	}
	vals := make([]string, len(values))
	copy(vals, values)
	return &query{col: c, match: func(data map[string]any) bool {
		v, ok := fieldPath(data, field)
		if !ok {
			return false
		}
		s, ok := v.(string)
		if !ok {
			return false
		}
		for _, want := range vals {
			if s == want {
				return true
			}
		}
		return false
	}}, nil
}

type doc struct {
	col *collection
	id  string
}

func (d *doc) Get(_ context.Context) (docstore.Document, bool, error) {
	s := d.col.store
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := d.col.docs[d.id]
	if !ok {
		return docstore.Document{ID: d.id}, false, nil
	}
	return docstore.Document{ID: d.id, Data: deepCopy(data)}, true, nil
}

func (d *doc) Set(_ context.Context, data map[string]any) error {
	s := d.col.store
	s.mu.Lock()
	d.col.docs[d.id] = deepCopy(data)
	notifs, rev := d.col.collect(s, d.id)
	s.mu.Unlock()
	run(notifs, rev)
	return nil
}

func (d *doc) Update(_ context.Context, field string, value any) error {
	s := d.col.store
	s.mu.Lock()
	data, ok := d.col.docs[d.id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("memstore: update %q: no document to update", d.id)
	}
	if u, isUnion := value.(docstore.Union); isUnion {
		if err := applyUnion(data, field, u); err != nil {
			s.mu.Unlock()
			return err
		}
	} else {
		setPath(data, field, deepCopyValue(value))
	}
	notifs, rev := d.col.collect(s, d.id)
	s.mu.Unlock()
	run(notifs, rev)
	return nil
}

func (d *doc) Listen(fn func(docstore.DocSnapshot)) docstore.Subscription {
	s := d.col.store
	s.mu.Lock()
	id := s.next
	s.next++
	l := &docListener{docID: d.id}
	l.sink.fn = fn
	d.col.docSubs[id] = l
	snap := d.col.docSnapshot(d.id)
	rev := s.rev
	s.mu.Unlock()

	// Initial delivery of the current state.
	l.sink.deliver(rev, snap)

	return docstore.NewCancelFunc(func() {
		s.mu.Lock()
		delete(d.col.docSubs, id)
		s.mu.Unlock()
	})
}

type query struct {
	col   *collection
	match func(map[string]any) bool
}

func (q *query) Get(_ context.Context) ([]docstore.Document, error) {
	s := q.col.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return q.col.matching(q.match), nil
}

func (q *query) Listen(fn func(docstore.QuerySnapshot)) docstore.Subscription {
	s := q.col.store
	s.mu.Lock()
	id := s.next
	s.next++
	l := &queryListener{match: q.match}
	l.sink.fn = fn
	q.col.querySubs[id] = l
	snap := docstore.QuerySnapshot{Docs: q.col.matching(q.match)}
	rev := s.rev
	s.mu.Unlock()

	l.sink.deliver(rev, snap)

	return docstore.NewCancelFunc(func() {
		s.mu.Lock()
		delete(q.col.querySubs, id)
		s.mu.Unlock()
	})
}

// notification is a listener delivery prepared under the store lock.
type notification func(rev uint64)

func run(notifs []notification, rev uint64) {
	for _, n := range notifs {
		n(rev)
	}
}

// collect bumps the revision and builds deliveries for every listener
// affected by a mutation of docID. Caller holds the store lock.
func (c *collection) collect(s *Store, docID string) ([]notification, uint64) {
	s.rev++
	rev := s.rev

	var notifs []notification
	for _, l := range c.docSubs {
		if l.docID != docID {
			continue
		}
		l := l
		snap := c.docSnapshot(docID)
		notifs = append(notifs, func(rev uint64) { l.sink.deliver(rev, snap) })
	}
	for _, l := range c.querySubs {
		l := l
		snap := docstore.QuerySnapshot{Docs: c.matching(l.match)}
		notifs = append(notifs, func(rev uint64) { l.sink.deliver(rev, snap) })
	}
	return notifs, rev
}

func (c *collection) docSnapshot(docID string) docstore.DocSnapshot {
	data, ok := c.docs[docID]
	if !ok {
		return docstore.DocSnapshot{Doc: docstore.Document{ID: docID}}
	}
	return docstore.DocSnapshot{
		Doc:    docstore.Document{ID: docID, Data: deepCopy(data)},
		Exists: true,
	}
}

func (c *collection) matching(match func(map[string]any) bool) []docstore.Document {
	var out []docstore.Document
	for id, data := range c.docs {
		if match(data) {
			out = append(out, docstore.Document{ID: id, Data: deepCopy(data)})
		}
	}
	return out
}

// fieldPath resolves a dotted path against a field tree.
func fieldPath(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	cur := any(data)
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath writes a dotted path, creating intermediate maps as needed.
func setPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := data
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// applyUnion appends union elements not already present, preserving the
// existing order. Presence is deep equality, matching the backend's
// array-union contract.
func applyUnion(data map[string]any, path string, u docstore.Union) error {
	existing, _ := fieldPath(data, path)
	elems := toAnySlice(existing)
	for _, e := range u.Elems {
		found := false
		for _, have := range elems {
			if reflect.DeepEqual(have, e) {
				found = true
				break
			}
		}
		if !found {
			elems = append(elems, deepCopyValue(e))
		}
	}
	setPath(data, path, elems)
	return nil
}

func toAnySlice(v any) []any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func deepCopy(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
