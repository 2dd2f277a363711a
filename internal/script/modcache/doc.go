// Package modcache is the persistent cache for remote module sources.
//
// A Cache wraps one storage.Store rooted at <cache_dir>/remote_script and
// runs every backend call on a bounded worker pool, so callers running on
// request goroutines never block on engine I/O longer than their context
// allows. Entries are keyed by the URL path of the remote module and hold
// the raw fetched bytes. There is no expiry; entries live until removed.
package modcache
