package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the process configuration, loaded from a TOML file. Every field
// has a working default so the server runs with no file at all.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `toml:"listen_addr"`
	// DataDir is the directory backing the storage volume; meshes live in
	// its "meshes" subdirectory, previews in "thumbs".
	DataDir string `toml:"data_dir"`
	// QueueCapacity bounds the pending thumbnail queue.
	QueueCapacity int `toml:"queue_capacity"`
	// Watch enables the mesh-directory watcher that queues previews for
	// files dropped in from outside.
	Watch bool `toml:"watch"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

func Default() Config {
	return Config{
		ListenAddr:    ":8080",
		DataDir:       "data",
		QueueCapacity: 128,
		Watch:         true,
		LogLevel:      "info",
	}
}

// Load reads the TOML file at path on top of the defaults. A missing file is
// not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = Default().QueueCapacity
	}
	return cfg, nil
}
