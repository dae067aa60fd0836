package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMemberIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.AddMember(ctx, "research", "0xAbC1")
	require.NoError(t, err)
	g, err := s.AddMember(ctx, "research", "0xAbC1")
	require.NoError(t, err)

	assert.Equal(t, []string{"0xAbC1"}, g.MemberAddresses)

	members, err := s.ListMembers(ctx, "research")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestAddMemberCreatesGroup(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	g, err := s.AddMember(ctx, "fresh", "0x1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", g.GroupID)
	assert.False(t, g.CreatedAt.IsZero())
}

func TestListMembersMissingGroup(t *testing.T) {
	s := NewMemory()
	_, err := s.ListMembers(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsMemberMissingGroupIsFalse(t *testing.T) {
	s := NewMemory()
	ok, err := s.IsMember(context.Background(), "nope", "0x1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetGroupForUserOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.SetGroupForUser(ctx, "0xA", "g1"))
	require.NoError(t, s.SetGroupForUser(ctx, "0xA", "g2"))

	groupID, err := s.GroupForUser(ctx, "0xA")
	require.NoError(t, err)
	assert.Equal(t, "g2", groupID)
}

func TestGroupForUserCaseNormalized(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.SetGroupForUser(ctx, "0xABCdef0123", "g1"))

	upper, err := s.GroupForUser(ctx, "0xABCDEF0123")
	require.NoError(t, err)
	lower, err := s.GroupForUser(ctx, "0xabcdef0123")
	require.NoError(t, err)
	assert.Equal(t, upper, lower)
}

func TestGroupForUserMissing(t *testing.T) {
	s := NewMemory()
	_, err := s.GroupForUser(context.Background(), "0xA")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIPAccessGrantAndCheck(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Grant(ctx, "ip-1", "0xA")
	require.NoError(t, err)
	rec, err := s.Grant(ctx, "ip-1", "0xA")
	require.NoError(t, err)
	assert.Len(t, rec.AllowedAddresses, 1)

	ok, err := s.Allowed(ctx, "ip-1", "0xA")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Allowed(ctx, "ip-1", "0xB")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Allowed(ctx, "ip-2", "0xA")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIPAccessIndependentOfGroups(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.AddMember(ctx, "g1", "0xA")
	require.NoError(t, err)

	ok, err := s.Allowed(ctx, "g1", "0xA")
	require.NoError(t, err)
	assert.False(t, ok, "group membership must not leak into IP access")
}

func TestDatasetSaveUpsertsByContentID(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.Save(ctx, &Dataset{ContentID: "cid-1", Name: "first", CreatedAt: 1}))
	require.NoError(t, s.Save(ctx, &Dataset{ContentID: "cid-1", Name: "second", CreatedAt: 2}))

	d, err := s.ByContentID(ctx, "cid-1")
	require.NoError(t, err)
	assert.Equal(t, "second", d.Name)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConcurrentAddMemberNoLostUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	var wg sync.WaitGroup
	addrs := []string{"0x1", "0x2", "0x3", "0x4", "0x5", "0x6", "0x7", "0x8"}
	for _, a := range addrs {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := s.AddMember(ctx, "busy", addr)
				assert.NoError(t, err)
			}
		}(a)
	}
	wg.Wait()

	members, err := s.ListMembers(ctx, "busy")
	require.NoError(t, err)
	assert.ElementsMatch(t, addrs, members)
}
