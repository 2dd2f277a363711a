//go:build !unix

package storage

// DefaultBackend is sqlite where sparse files are unavailable, because bolt
// would grow its file to the declared map size.
const DefaultBackend = BackendSQLite
