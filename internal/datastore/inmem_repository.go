package datastore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// InMemRepository is an in-memory implementation of the Repository interface.
// It backs the "memory" history driver and tests.
type InMemRepository struct {
	mu      sync.RWMutex
	records []Record
	nextID  int64
	closed  bool
	failErr error
}

// NewInMemRepository creates a new InMemRepository.
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		records: make([]Record, 0),
		nextID:  1,
	}
}

// FailWith makes subsequent saves return err. Pass nil to restore normal behaviour.
func (r *InMemRepository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failErr = err
}

// SaveDecisions appends the records, assigning IDs.
func (r *InMemRepository) SaveDecisions(ctx context.Context, records []Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("repository is closed")
	}
	if r.failErr != nil {
		return r.failErr
	}
	for _, rec := range records {
		rec.ID = r.nextID
		r.nextID++
		r.records = append(r.records, rec)
	}
	return nil
}

// ListSince returns records at or after since, newest first.
func (r *InMemRepository) ListSince(ctx context.Context, since time.Time) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0)
	for _, rec := range r.records {
		if !rec.Timestamp.Before(since) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// All returns a copy of every stored record in insertion order.
func (r *InMemRepository) All() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Record(nil), r.records...)
}

// Close marks the repository as closed.
func (r *InMemRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
