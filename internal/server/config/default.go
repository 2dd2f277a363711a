package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BoxCatTeam/CatPanelBackend/internal/script/fetch"
	"github.com/BoxCatTeam/CatPanelBackend/internal/script/modcache"
	"github.com/BoxCatTeam/CatPanelBackend/internal/storage"
)

// Default configuration values.
const (
	DefaultAppDir = ".cat_panel"

	DefaultBind                   = "127.0.0.1:8686"
	DefaultSystemInfoRefreshLimit = time.Second

	DefaultBackend = "default"

	DefaultLoaderConcurrency = 4

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// DefaultConfigFile is read from the working directory when no path
	// is given on the command line.
	DefaultConfigFile = "config.yaml"
	// AutoConfigFile holds settings changed at runtime.
	AutoConfigFile = "_config_auto.yaml"

	// SocketFile is the local admin socket inside the app directory.
	SocketFile = "catpanel.sock"
)

// DefaultAppPath returns ~/.cat_panel, or .cat_panel in the working
// directory when the home directory is unknown.
func DefaultAppPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultAppDir
	}
	return filepath.Join(home, DefaultAppDir)
}

// Default returns the default server configuration.
func Default() *ServerConfig {
	st := storage.DefaultConfig()
	fc := fetch.DefaultConfig()

	return &ServerConfig{
		General: GeneralSection{
			AppPath: DefaultAppPath(),
		},
		HTTP: HTTPSection{
			Bind:                   DefaultBind,
			SystemInfoRefreshLimit: DefaultSystemInfoRefreshLimit,
			LocalSocket:            true,
		},
		Storage: StorageSection{
			Backend: DefaultBackend,
			Workers: modcache.DefaultWorkers,
			Bolt: BoltSection{
				MapSize: st.Bolt.MapSize,
				NoSync:  st.Bolt.NoSync,
				Timeout: st.Bolt.Timeout,
			},
			Badger: BadgerSection{
				GCInterval:  st.Badger.GCInterval,
				GCThreshold: st.Badger.GCThreshold,
				SyncWrites:  st.Badger.SyncWrites,
				CacheSize:   st.Badger.CacheSize,
			},
			SQLite: SQLiteSection{
				CompressionLevel: st.SQLite.CompressionLevel,
				MinCompressSize:  st.SQLite.MinCompressSize,
				BusyTimeout:      st.SQLite.BusyTimeout,
			},
		},
		Fetch: FetchSection{
			Timeout:      fc.Timeout,
			RateLimit:    fc.RateLimit,
			Burst:        fc.Burst,
			MaxBodyBytes: fc.MaxBodyBytes,
		},
		Loader: LoaderSection{
			Concurrency: DefaultLoaderConcurrency,
		},
		Trace: TraceSection{
			SampleRatio: 1,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
