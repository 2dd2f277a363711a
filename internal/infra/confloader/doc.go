// Package confloader layers configuration sources with koanf.
//
// Sources are applied in the order they are registered and later ones
// override earlier ones. The server uses:
//
//  1. struct defaults (the target passed to Load)
//  2. _config_auto.yaml, written by Persist when settings change at runtime
//  3. config.yaml
//  4. CP_* environment variables
//
// Nested keys in environment variables are separated by a double
// underscore: CP_GENERAL__APP_PATH sets general.app_path.
//
// Watcher reports edits to the loaded files so the caller can reload.
package confloader
