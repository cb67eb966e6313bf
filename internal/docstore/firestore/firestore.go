// Package firestore adapts the hosted Cloud Firestore service to the
// docstore contract. Listener iterators are pumped into callback
// deliveries on a goroutine per subscription; Cancel stops the iterator
// and no callbacks are delivered after it returns.
package firestore

import (
	"context"

	cfs "cloud.google.com/go/firestore"
	"github.com/psantos/loro/internal/docstore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

// Store wraps a Firestore client.
type Store struct {
	client *cfs.Client
	logger *zap.Logger
}

// NewStore connects to the given Firestore project.
func NewStore(ctx context.Context, projectID string, logger *zap.Logger) (*Store, error) {
	client, err := cfs.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &Store{client: client, logger: logger}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Collection returns the named collection.
func (s *Store) Collection(name string) docstore.Collection {
	return &collection{ref: s.client.Collection(name), logger: s.logger}
}

type collection struct {
	ref    *cfs.CollectionRef
	logger *zap.Logger
}

func (c *collection) Doc(id string) docstore.Doc {
	return &doc{ref: c.ref.Doc(id)}
}

func (c *collection) NewID() string {
	return c.ref.NewDoc().ID
}

func (c *collection) WhereAny(filters ...docstore.Filter) docstore.Query {
	parts := make([]cfs.EntityFilter, 0, len(filters))
	for _, f := range filters {
		parts = append(parts, cfs.PropertyFilter{
			Path:     f.Field,
			Operator: "==",
			Value:    f.Value,
		})
	}
	return &query{q: c.ref.WhereEntity(cfs.OrFilter{Filters: parts})}
}

func (c *collection) WhereIn(field string, values []string) (docstore.Query, error) {
	if len(values) > docstore.MaxInValues {
		return nil, docstore.ErrInClauseTooLarge
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return &query{q: c.ref.Where(field, "in", vals)}, nil
}

type doc struct {
	ref *cfs.DocumentRef
}

func (d *doc) Get(ctx context.Context) (docstore.Document, bool, error) {
	snap, err := d.ref.Get(ctx)
	if snap != nil && !snap.Exists() {
		return docstore.Document{ID: d.ref.ID}, false, nil
	}
	if err != nil {
		return docstore.Document{ID: d.ref.ID}, false, err
	}
	return docstore.Document{ID: d.ref.ID, Data: snap.Data()}, true, nil
}

func (d *doc) Set(ctx context.Context, data map[string]any) error {
	_, err := d.ref.Set(ctx, data)
	return err
}

func (d *doc) Update(ctx context.Context, field string, value any) error {
	if u, ok := value.(docstore.Union); ok {
		value = cfs.ArrayUnion(u.Elems...)
	}
	_, err := d.ref.Update(ctx, []cfs.Update{{Path: field, Value: value}})
	return err
}

func (d *doc) Listen(fn func(docstore.DocSnapshot)) docstore.Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	it := d.ref.Snapshots(ctx)

	go func() {
		for {
			snap, err := it.Next()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				fn(docstore.DocSnapshot{Err: err})
				return
			}
			if !snap.Exists() {
				fn(docstore.DocSnapshot{Doc: docstore.Document{ID: d.ref.ID}})
				continue
			}
			fn(docstore.DocSnapshot{
				Doc:    docstore.Document{ID: d.ref.ID, Data: snap.Data()},
				Exists: true,
			})
		}
	}()

	return docstore.NewCancelFunc(func() {
		cancel()
		it.Stop()
	})
}

type query struct {
	q cfs.Query
}

func (q *query) Get(ctx context.Context) ([]docstore.Document, error) {
	it := q.q.Documents(ctx)
	defer it.Stop()

	var out []docstore.Document
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, docstore.Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
}

func (q *query) Listen(fn func(docstore.QuerySnapshot)) docstore.Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	it := q.q.Snapshots(ctx)

	go func() {
		for {
			qsnap, err := it.Next()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				fn(docstore.QuerySnapshot{Err: err})
				return
			}
			snaps, err := qsnap.Documents.GetAll()
			if err != nil {
				fn(docstore.QuerySnapshot{Err: err})
				continue
			}
			docs := make([]docstore.Document, 0, len(snaps))
			for _, snap := range snaps {
				docs = append(docs, docstore.Document{ID: snap.Ref.ID, Data: snap.Data()})
			}
			fn(docstore.QuerySnapshot{Docs: docs})
		}
	}()

	return docstore.NewCancelFunc(func() {
		cancel()
		it.Stop()
	})
}
