// Package main provides the entry point for catpanel-server.
//
// The server opens the module cache, warms it with the configured preload
// list and serves:
//
//   - the admin API, health checks and metrics on http.bind
//   - the same admin API on a unix socket in the app directory, used by
//     catpanel-cli on the local host
//
// Usage:
//
//	catpanel-server [flags]
//	catpanel-server -config /etc/catpanel/config.yaml
//
// Configuration is read from defaults, _config_auto.yaml beside the config
// file, the config file and CP_ environment variables, in that order.
package main
