package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store. Orders are created on first merge.
type Memory struct {
	mu     sync.RWMutex
	orders map[string]*ShipmentState
	now    func() time.Time
}

// NewMemory creates an empty in-memory store. now defaults to time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		orders: make(map[string]*ShipmentState),
		now:    now,
	}
}

// Merge implements Store.
func (m *Memory) Merge(ctx context.Context, orderID string, fields Fields) error {
	if fields.IsEmpty() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.orders[orderID]
	if !ok {
		state = &ShipmentState{}
		m.orders[orderID] = state
	}
	if state.Conflicts(fields) {
		return shipmentConflict(orderID)
	}
	state.Apply(fields, m.now())
	return nil
}

// FindOrderID implements Store. When several orders match, the lowest
// order id wins.
func (m *Memory) FindOrderID(ctx context.Context, key Key, value string) (string, error) {
	if !key.Valid() {
		return "", invalidKey(key)
	}
	if value == "" {
		return "", ErrOrderNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var found string
	for id, state := range m.orders {
		if state.Lookup(key) == value && (found == "" || id < found) {
			found = id
		}
	}
	if found == "" {
		return "", ErrOrderNotFound
	}
	return found, nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, orderID string) (*ShipmentState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}

	cp := *state
	if state.TrackingData != nil {
		cp.TrackingData = make(map[string]any, len(state.TrackingData))
		for k, v := range state.TrackingData {
			cp.TrackingData[k] = v
		}
	}
	if state.LastSynced != nil {
		ts := *state.LastSynced
		cp.LastSynced = &ts
	}
	return &cp, nil
}

// Close implements Store.
func (m *Memory) Close(ctx context.Context) error {
	return nil
}

var _ Store = (*Memory)(nil)
