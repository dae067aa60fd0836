package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process implementation of the store interfaces, used by
// tests and local development. A single mutex serializes mutations, giving
// the same lost-update-free semantics as the MongoDB upserts.
type Memory struct {
	mu         sync.RWMutex
	groups     map[string]*Group
	ipAccess   map[string]*IPAccess
	userGroups map[string]string
	datasets   map[string]*Dataset
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		groups:     make(map[string]*Group),
		ipAccess:   make(map[string]*IPAccess),
		userGroups: make(map[string]string),
		datasets:   make(map[string]*Dataset),
	}
}

func (m *Memory) AddMember(_ context.Context, groupID, address string) (*Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	g, ok := m.groups[groupID]
	if !ok {
		g = &Group{GroupID: groupID, CreatedAt: now}
		m.groups[groupID] = g
	}
	if !slices.Contains(g.MemberAddresses, address) {
		g.MemberAddresses = append(g.MemberAddresses, address)
	}
	g.UpdatedAt = now

	cp := *g
	cp.MemberAddresses = slices.Clone(g.MemberAddresses)
	return &cp, nil
}

func (m *Memory) ListMembers(_ context.Context, groupID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[groupID]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(g.MemberAddresses), nil
}

func (m *Memory) IsMember(_ context.Context, groupID, address string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[groupID]
	return ok && slices.Contains(g.MemberAddresses, address), nil
}

func (m *Memory) GroupForUser(_ context.Context, address string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	groupID, ok := m.userGroups[NormalizeAddress(address)]
	if !ok {
		return "", ErrNotFound
	}
	return groupID, nil
}

func (m *Memory) SetGroupForUser(_ context.Context, address, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.userGroups[NormalizeAddress(address)] = groupID
	return nil
}

func (m *Memory) Grant(_ context.Context, ipID, address string) (*IPAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	rec, ok := m.ipAccess[ipID]
	if !ok {
		rec = &IPAccess{IPID: ipID, CreatedAt: now}
		m.ipAccess[ipID] = rec
	}
	if !slices.Contains(rec.AllowedAddresses, address) {
		rec.AllowedAddresses = append(rec.AllowedAddresses, address)
	}
	rec.UpdatedAt = now

	cp := *rec
	cp.AllowedAddresses = slices.Clone(rec.AllowedAddresses)
	return &cp, nil
}

func (m *Memory) Allowed(_ context.Context, ipID, address string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.ipAccess[ipID]
	return ok && slices.Contains(rec.AllowedAddresses, address), nil
}

func (m *Memory) Save(_ context.Context, d *Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *d
	m.datasets[d.ContentID] = &cp
	return nil
}

func (m *Memory) List(_ context.Context) ([]Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Dataset, 0, len(m.datasets))
	for _, d := range m.datasets {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (m *Memory) ByContentID(_ context.Context, cid string) (*Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.datasets[cid]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}
