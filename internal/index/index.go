// Package index keeps each owner's newest-first, capacity-bounded list of
// asset records on top of a kv.Store.
//
// Every mutation is a read-modify-write of the owner's whole list and runs
// inside an owner-scoped critical section, so concurrent uploads and deletes
// from one owner never lose each other's updates. Different owners never
// contend.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"ar-asset-backend/internal/kv"
	"ar-asset-backend/internal/models"
)

// Capacity is the maximum number of records kept per owner.
const Capacity = 50

const keyPrefix = "ar_assets:"

var (
	// ErrIndex wraps every failure to read or write the backing store.
	ErrIndex = errors.New("asset index error")

	ErrNotFound   = errors.New("asset not found")
	ErrEmptyOwner = errors.New("owner id is required")
)

type ownerLock struct {
	sem  chan struct{}
	refs int
}

type Index struct {
	store    kv.Store
	capacity int

	mu    sync.Mutex
	locks map[string]*ownerLock
}

func New(store kv.Store) *Index {
	return NewWithCapacity(store, Capacity)
}

func NewWithCapacity(store kv.Store, capacity int) *Index {
	if capacity <= 0 {
		capacity = Capacity
	}
	return &Index{
		store:    store,
		capacity: capacity,
		locks:    make(map[string]*ownerLock),
	}
}

// Append prepends a to the owner's list and drops whatever falls beyond the
// capacity. Nothing is written if ctx is done before the write.
func (ix *Index) Append(ctx context.Context, ownerID string, a models.Asset) error {
	if ownerID == "" {
		return ErrEmptyOwner
	}
	release, err := ix.acquire(ctx, ownerID)
	if err != nil {
		return err
	}
	defer release()

	list, err := ix.load(ctx, ownerID)
	if err != nil {
		return err
	}

	a.Normalize()
	next := make([]models.Asset, 0, len(list)+1)
	next = append(next, a)
	next = append(next, list...)
	if len(next) > ix.capacity {
		next = next[:ix.capacity]
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return ix.save(ctx, ownerID, next)
}

// List returns the owner's records, newest first. Unknown owners get an
// empty list.
func (ix *Index) List(ctx context.Context, ownerID string) ([]models.Asset, error) {
	if ownerID == "" {
		return nil, ErrEmptyOwner
	}
	return ix.load(ctx, ownerID)
}

func (ix *Index) Get(ctx context.Context, ownerID, id string) (models.Asset, error) {
	list, err := ix.List(ctx, ownerID)
	if err != nil {
		return models.Asset{}, err
	}
	for _, a := range list {
		if a.ID == id {
			return a, nil
		}
	}
	return models.Asset{}, ErrNotFound
}

// Remove deletes the record with id. Missing ids are not an error.
func (ix *Index) Remove(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return ErrEmptyOwner
	}
	release, err := ix.acquire(ctx, ownerID)
	if err != nil {
		return err
	}
	defer release()

	list, err := ix.load(ctx, ownerID)
	if err != nil {
		return err
	}

	next := list[:0]
	for _, a := range list {
		if a.ID != id {
			next = append(next, a)
		}
	}
	if len(next) == len(list) {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(next) == 0 {
		if err := ix.store.Remove(ctx, key(ownerID)); err != nil {
			return fmt.Errorf("%w: remove %s: %w", ErrIndex, ownerID, err)
		}
		return nil
	}
	return ix.save(ctx, ownerID, next)
}

// Clear drops the owner's whole index.
func (ix *Index) Clear(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return ErrEmptyOwner
	}
	release, err := ix.acquire(ctx, ownerID)
	if err != nil {
		return err
	}
	defer release()

	if err := ix.store.Remove(ctx, key(ownerID)); err != nil {
		return fmt.Errorf("%w: clear %s: %w", ErrIndex, ownerID, err)
	}
	return nil
}

// Ping probes the backing store when it supports it.
func (ix *Index) Ping(ctx context.Context) error {
	p, ok := ix.store.(kv.Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrIndex, err)
	}
	return nil
}

func key(ownerID string) string {
	return keyPrefix + ownerID
}

func (ix *Index) load(ctx context.Context, ownerID string) ([]models.Asset, error) {
	raw, err := ix.store.Get(ctx, key(ownerID))
	if errors.Is(err, kv.ErrNotFound) {
		return []models.Asset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", ErrIndex, ownerID, err)
	}

	var list []models.Asset
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrIndex, ownerID, err)
	}
	if list == nil {
		list = []models.Asset{}
	}
	for i := range list {
		list[i].Normalize()
	}
	return list, nil
}

func (ix *Index) save(ctx context.Context, ownerID string, list []models.Asset) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrIndex, ownerID, err)
	}
	if err := ix.store.Set(ctx, key(ownerID), string(raw)); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrIndex, ownerID, err)
	}
	return nil
}

// acquire enters the owner's critical section, giving up if ctx ends first.
func (ix *Index) acquire(ctx context.Context, ownerID string) (func(), error) {
	ix.mu.Lock()
	l, ok := ix.locks[ownerID]
	if !ok {
		l = &ownerLock{sem: make(chan struct{}, 1)}
		ix.locks[ownerID] = l
	}
	l.refs++
	ix.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			ix.unref(ownerID, l)
		}, nil
	case <-ctx.Done():
		ix.unref(ownerID, l)
		return nil, ctx.Err()
	}
}

func (ix *Index) unref(ownerID string, l *ownerLock) {
	ix.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(ix.locks, ownerID)
	}
	ix.mu.Unlock()
}
