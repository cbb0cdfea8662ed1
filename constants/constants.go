// Package constants holds size units shared across the engine packages.
package constants

const (
	MiB = int64(1024 * 1024)
	GiB = 1024 * MiB
)
