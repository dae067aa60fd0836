// Package testutil provides shared fixtures for gateway tests: claim
// signing the way the frontend does it, and multipart upload request
// construction.
package testutil
