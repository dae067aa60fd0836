// Package store persists the gateway's access-control and dataset state.
//
// Three document collections back the system: access groups (groupId ->
// member address set), IP access records (contentId -> allowed address set),
// and the user -> group mapping. A fourth collection holds dataset listings
// keyed by content identifier.
//
// All set-insert mutations are single atomic find-and-update-or-insert
// commands so concurrent writers cannot lose updates; the user-group save
// additionally runs inside a session transaction. Addresses in the
// user-group mapping are lowercased before every read and write.
//
// The MongoDB implementation is the production backend; Memory implements
// the same interfaces for tests.
package store
