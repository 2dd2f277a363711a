//go:build unix

package storage

// DefaultBackend is bolt on platforms with sparse files: the declared map
// size costs address space, not disk.
const DefaultBackend = BackendBolt
