package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ppiankov/dailyreport/internal/models"
	"github.com/ppiankov/dailyreport/internal/storage"
)

// StorageKey is the fixed key holding the whole report collection.
const StorageKey = "daily-reports"

// Persister is called by the Store after every mutation and once on open.
type Persister interface {
	// Persist stores the complete collection, replacing what was there
	Persist(ctx context.Context, reports map[string]models.Report) error

	// Restore loads the complete collection. An empty backend yields an empty map
	Restore(ctx context.Context) (map[string]models.Report, error)
}

// KVPersister stores the collection as one JSON object (date -> report)
// under StorageKey in a key-value backend.
type KVPersister struct {
	kv  storage.KV
	key string
}

// NewKVPersister adapts kv to the Persister interface.
func NewKVPersister(kv storage.KV) *KVPersister {
	return &KVPersister{kv: kv, key: StorageKey}
}

// Persist writes reports under the storage key. An empty collection deletes
// the key instead.
func (p *KVPersister) Persist(ctx context.Context, reports map[string]models.Report) error {
	if len(reports) == 0 {
		return p.kv.Delete(ctx, p.key)
	}
	data, err := json.Marshal(reports)
	if err != nil {
		return fmt.Errorf("marshal reports: %w", err)
	}
	return p.kv.Set(ctx, p.key, string(data))
}

func (p *KVPersister) Restore(ctx context.Context) (map[string]models.Report, error) {
	data, err := p.kv.Get(ctx, p.key)
	if errors.Is(err, storage.ErrNotFound) {
		return map[string]models.Report{}, nil
	}
	if err != nil {
		return nil, err
	}

	reports := map[string]models.Report{}
	if data == "" {
		return reports, nil
	}
	if err := json.Unmarshal([]byte(data), &reports); err != nil {
		return nil, fmt.Errorf("unmarshal reports: %w", err)
	}
	return reports, nil
}

// Close releases the backend when it holds resources (database pools).
func (p *KVPersister) Close() error {
	if c, ok := p.kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
