package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a lookup key has no document.
var ErrNotFound = errors.New("store: not found")

// Group is a named set of member addresses.
type Group struct {
	GroupID         string    `bson:"groupId" json:"groupId"`
	MemberAddresses []string  `bson:"userAddresses" json:"userAddresses"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IPAccess is a per-content allow-list, orthogonal to group membership.
type IPAccess struct {
	IPID             string    `bson:"ipId" json:"ipId"`
	AllowedAddresses []string  `bson:"allowedUserAddresses" json:"allowedUserAddresses"`
	CreatedAt        time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Dataset is a marketplace listing, keyed by content identifier.
type Dataset struct {
	Creator     string `bson:"creator" json:"creator"`
	Address     string `bson:"address" json:"address"`
	ContentID   string `bson:"cid" json:"cid"`
	CreatedAt   int64  `bson:"createdAt" json:"createdAt"`
	Category    string `bson:"category" json:"category"`
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description" json:"description"`
	Preview     string `bson:"preview" json:"preview"`
	GroupID     string `bson:"groupId" json:"groupId"`
	IPID        string `bson:"ipId" json:"ipId"`
}

// GroupStore manages access groups and the user -> group mapping.
type GroupStore interface {
	// AddMember inserts address into the group's member set, creating the
	// group if absent. Re-adding an existing member is not an error.
	AddMember(ctx context.Context, groupID, address string) (*Group, error)

	// ListMembers returns the member set, or ErrNotFound when no group
	// exists for groupID.
	ListMembers(ctx context.Context, groupID string) ([]string, error)

	// IsMember reports membership; a missing group yields false, not an error.
	IsMember(ctx context.Context, groupID, address string) (bool, error)

	// GroupForUser returns the group the address belongs to, or ErrNotFound.
	GroupForUser(ctx context.Context, address string) (string, error)

	// SetGroupForUser overwrites the mapping for address. A user belongs to
	// exactly one group; last write wins.
	SetGroupForUser(ctx context.Context, address, groupID string) error
}

// IPAccessStore manages per-content allow-lists.
type IPAccessStore interface {
	// Grant inserts address into the content's allow-list, creating the
	// record if absent. Idempotent.
	Grant(ctx context.Context, ipID, address string) (*IPAccess, error)

	// Allowed reports whether address is on the content's allow-list; a
	// missing record yields false, not an error.
	Allowed(ctx context.Context, ipID, address string) (bool, error)
}

// DatasetStore manages marketplace listings.
type DatasetStore interface {
	// Save upserts a listing keyed by its content identifier.
	Save(ctx context.Context, d *Dataset) error

	// List returns all listings, newest first.
	List(ctx context.Context) ([]Dataset, error)

	// ByContentID returns the listing for cid, or ErrNotFound.
	ByContentID(ctx context.Context, cid string) (*Dataset, error)
}

// NormalizeAddress lowercases an address for use as a lookup key, so mixed
// checksum casings resolve to the same document.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
