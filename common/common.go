// Package common holds shared constants for the openRoots gateway.
package common

// PackageName identifies the module in metrics and logs.
const PackageName = "github.com/Imdavyking/openRoots"

// Version is set at build time via -ldflags.
var Version = "dev"
