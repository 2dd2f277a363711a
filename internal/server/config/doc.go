// Package config defines the CatPanel backend configuration.
//
//   - spec.go: ServerConfig and its sections
//   - default.go: default values
//   - verify.go: validation and environment initialisation
//   - sanitize.go: copies safe to log
//   - holder.go: the process-wide current configuration and runtime merges
//
// Sources are layered by internal/infra/confloader: defaults, then
// _config_auto.yaml, then config.yaml, then CP_ environment variables.
package config
