package main

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/kirsle/configdir"

	"memmap/log"
)

type Config struct {
	General GeneralConfig `toml:"general"`
	Output  OutputConfig  `toml:"output"`
	Blocks  BlocksConfig  `toml:"blocks"`
}

type GeneralConfig struct {
	// Comma-separated list of modules to enable debug logs for, when --log
	// is not given.
	Log string `toml:"log"`
}

type OutputConfig struct {
	Format string `toml:"format"` // text or json
	Color  bool   `toml:"color"`
}

type BlocksConfig struct {
	Perms string `toml:"perms"`
}

var defaultConfig = Config{
	Output: OutputConfig{Format: "text", Color: true},
	Blocks: BlocksConfig{Perms: "r--"},
}

// configDir returns the memmap config directory, creating it if needed.
var configDir = sync.OnceValue(func() string {
	dir := configdir.LocalConfig("memmap")
	if err := configdir.MakePath(dir); err != nil {
		log.ModCLI.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})

const cfgFilename = "config.toml"

// LoadConfigOrDefault loads the configuration from the memmap config
// directory, or provide a default one.
func LoadConfigOrDefault() Config {
	cfg := defaultConfig
	_, err := toml.DecodeFile(filepath.Join(configDir(), cfgFilename), &cfg)
	if err != nil {
		if !os.IsNotExist(err) {
			log.ModCLI.Warnf("failed to load config, using default: %v", err)
		}
		return defaultConfig
	}
	return cfg
}

// SaveConfig into memmap config directory.
func SaveConfig(cfg Config) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir(), cfgFilename), buf, 0644)
}
