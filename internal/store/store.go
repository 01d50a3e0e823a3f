// Package store persists pomodoro snapshots in a key-value store. The
// backends are interchangeable; the snapshot codec is shared.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"focusify/internal/model"
)

// ErrNotFound is returned by KV implementations for missing keys.
var ErrNotFound = errors.New("store: key not found")

type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// SnapshotStore saves one snapshot per owner.
type SnapshotStore struct {
	kv  KV
	now func() time.Time
}

func NewSnapshotStore(kv KV) *SnapshotStore {
	return &SnapshotStore{kv: kv, now: time.Now}
}

func snapshotKey(owner string) string {
	return "pomodoro:" + owner
}

// Load returns the stored snapshot and whether one existed.
func (s *SnapshotStore) Load(ctx context.Context, owner string) (model.Snapshot, bool, error) {
	raw, err := s.kv.Get(ctx, snapshotKey(owner))
	if errors.Is(err, ErrNotFound) {
		return model.DefaultSnapshot(), false, nil
	}
	if err != nil {
		return model.DefaultSnapshot(), false, fmt.Errorf("load snapshot: %w", err)
	}

	var snapshot model.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return model.DefaultSnapshot(), false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, true, nil
}

// Save stamps SavedAt and writes the snapshot.
func (s *SnapshotStore) Save(ctx context.Context, owner string, snapshot model.Snapshot) error {
	snapshot.SavedAt = s.now().UTC()
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.kv.Put(ctx, snapshotKey(owner), raw); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Clear removes the snapshot. Clearing a missing snapshot is not an error.
func (s *SnapshotStore) Clear(ctx context.Context, owner string) error {
	err := s.kv.Delete(ctx, snapshotKey(owner))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

// Memory is an in-process KV.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
