// Package blob re-exports core blob abstractions for stable internal imports.
package blob

import (
	"themecore/internal/blob/core"
)

type (
	// Driver identifies a concrete backend driver.
	Driver = core.Driver
	// PutOptions carries optional write parameters.
	PutOptions = core.PutOptions
	// SignedURLOptions holds pre-signing options.
	SignedURLOptions = core.SignedURLOptions
	// Info describes a stored blob.
	Info = core.Info
	// Store is the backend interface snapshot archival is built on.
	Store = core.Store
)

const (
	// DriverFilesystem stores blobs on the local filesystem.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 targets S3-compatible endpoints.
	DriverS3 = core.DriverS3
	// DriverMemory keeps blobs in process memory.
	DriverMemory = core.DriverMemory
)

// ErrUnsupported indicates a driver lacks the requested capability.
var ErrUnsupported = core.ErrUnsupported
