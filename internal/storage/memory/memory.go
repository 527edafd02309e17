// Package memory provides in-memory storage adapters. They back tests and
// dry runs, and can inject failures per operation.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/steveyegge/mealsync/internal/storage"
	"github.com/steveyegge/mealsync/internal/types"
)

// FaultFunc decides whether an operation fails. op is the method name, target
// the key or collection it addresses. A nil return lets the call proceed.
type FaultFunc func(op, target string) error

// Local is an in-memory storage.LocalStore.
type Local struct {
	mu     sync.RWMutex
	values map[string][]byte
	meta   map[string]string
	writes int
	fault  FaultFunc
}

var _ storage.LocalStore = (*Local)(nil)

// NewLocal returns an empty local store.
func NewLocal() *Local {
	return &Local{values: make(map[string][]byte), meta: make(map[string]string)}
}

// SetFault installs a fault hook. Pass nil to clear it.
func (l *Local) SetFault(f FaultFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fault = f
}

// Writes returns how many mutating calls succeeded.
func (l *Local) Writes() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.writes
}

func (l *Local) check(op, target string) error {
	if l.fault == nil {
		return nil
	}
	return l.fault(op, target)
}

func (l *Local) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.check("Read", key); err != nil {
		return nil, err
	}
	v, ok := l.values[key]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", key, storage.ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (l *Local) Write(ctx context.Context, key string, value []byte) error {
	return l.WriteBatch(ctx, map[string][]byte{key: value})
}

func (l *Local) WriteBatch(ctx context.Context, values map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range values {
		if err := l.check("Write", k); err != nil {
			return err
		}
	}
	for k, v := range values {
		l.values[k] = append([]byte(nil), v...)
	}
	l.writes++
	return nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check("Delete", key); err != nil {
		return err
	}
	if _, ok := l.values[key]; ok {
		delete(l.values, key)
		l.writes++
	}
	return nil
}

func (l *Local) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var keys []string
	for k := range l.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (l *Local) GetMetadata(ctx context.Context, key string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.check("GetMetadata", key); err != nil {
		return "", err
	}
	v, ok := l.meta[key]
	if !ok {
		return "", fmt.Errorf("get metadata %s: %w", key, storage.ErrNotFound)
	}
	return v, nil
}

func (l *Local) SetMetadata(ctx context.Context, key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check("SetMetadata", key); err != nil {
		return err
	}
	l.meta[key] = value
	l.writes++
	return nil
}

func (l *Local) DeleteMetadata(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.meta, key)
	return nil
}

func (l *Local) Close() error { return nil }

// Remote is an in-memory storage.RemoteStore keyed by document path.
type Remote struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	writes int
	fault  FaultFunc
}

var _ storage.RemoteStore = (*Remote)(nil)

// NewRemote returns an empty remote store.
func NewRemote() *Remote {
	return &Remote{docs: make(map[string][]byte)}
}

// SetFault installs a fault hook. target is the collection name.
func (r *Remote) SetFault(f FaultFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fault = f
}

// Writes returns how many documents were written or deleted.
func (r *Remote) Writes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

// Paths lists all stored document paths in order.
func (r *Remote) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.docs))
	for p := range r.docs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (r *Remote) check(op string, c types.Collection) error {
	if r.fault == nil {
		return nil
	}
	return r.fault(op, string(c))
}

func (r *Remote) GetDocument(ctx context.Context, userID string, c types.Collection, id string) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return storage.Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.check("GetDocument", c); err != nil {
		return storage.Document{}, err
	}
	path := storage.RemotePath(userID, c, id)
	body, ok := r.docs[path]
	if !ok {
		return storage.Document{}, fmt.Errorf("get %s: %w", path, storage.ErrNotFound)
	}
	return storage.Document{ID: id, Body: append([]byte(nil), body...)}, nil
}

func (r *Remote) PutDocument(ctx context.Context, userID string, c types.Collection, doc storage.Document) error {
	return r.PutBatch(ctx, userID, c, []storage.Document{doc})
}

func (r *Remote) DeleteDocument(ctx context.Context, userID string, c types.Collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check("DeleteDocument", c); err != nil {
		return err
	}
	path := storage.RemotePath(userID, c, id)
	if _, ok := r.docs[path]; ok {
		delete(r.docs, path)
		r.writes++
	}
	return nil
}

func (r *Remote) ListCollection(ctx context.Context, userID string, c types.Collection) ([]storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.check("ListCollection", c); err != nil {
		return nil, err
	}
	prefix := storage.RemotePath(userID, c, "")
	var out []storage.Document
	for path, body := range r.docs {
		if id, ok := strings.CutPrefix(path, prefix); ok {
			out = append(out, storage.Document{ID: id, Body: append([]byte(nil), body...)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Remote) PutBatch(ctx context.Context, userID string, c types.Collection, docs []storage.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check("PutBatch", c); err != nil {
		return err
	}
	for _, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("put batch %s: document without id", c)
		}
	}
	for _, d := range docs {
		r.docs[storage.RemotePath(userID, c, d.ID)] = append([]byte(nil), d.Body...)
		r.writes++
	}
	return nil
}

func (r *Remote) Close() error { return nil }
