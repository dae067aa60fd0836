// Package gateway exposes the marketplace's HTTP API: access-group and
// IP-access administration, the user-group mapping, dataset listings, the
// authorization flow that exchanges a signed claim for a capacity
// delegation, and the CSV upload orchestrator.
//
// Handlers validate at the boundary and delegate to the stores and
// collaborator clients; every error is mapped to the taxonomy in errors.go
// before it reaches the wire. Upstream failure detail is logged, never
// returned to callers.
package gateway
