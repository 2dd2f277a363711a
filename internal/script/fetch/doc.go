// Package fetch downloads remote module sources over HTTP(S).
//
// HTTPFetcher applies a token bucket per host, identifies itself with the
// build's User-Agent, rejects non-2xx responses and caps the body size.
// It is the network collaborator of the module loader and knows nothing
// about caching.
package fetch
