package config

import (
	"time"

	"github.com/raoulx24/log-archiver/internal/archive"
	"github.com/raoulx24/log-archiver/internal/logging"
)

type Config struct {
	Archive ArchiveConfig  `yaml:"archive"`
	Rotate  RotateConfig   `yaml:"rotate"`
	Watch   WatchConfig    `yaml:"watch"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Logging logging.Config `yaml:"logging"`
}

type ArchiveConfig struct {
	Directory         string `yaml:"directory"`
	BaseName          string `yaml:"baseName"`
	CompressionSuffix string `yaml:"compressionSuffix"`
	CompressionLevel  int    `yaml:"compressionLevel"` // 0 (store) - 9 (max)
	RawRetention      int    `yaml:"rawRetention"`     // <= 0 keeps all
	ArchiveRetention  int    `yaml:"archiveRetention"` // <= 0 keeps all
	Schedule          string `yaml:"schedule"`         // 5-field cron
	SerializeSweeps   bool   `yaml:"serializeSweeps"`
}

type RotateConfig struct {
	When       string   `yaml:"when"`    // "midnight", "daily", "hourly" or a duration
	MaxSize    ByteSize `yaml:"maxSize"` // 0 disables size rotation
	AsyncSweep bool     `yaml:"asyncSweep"`
}

type WatchConfig struct {
	Mode           string        `yaml:"mode"`           // "off", "auto", "poll", "fsnotify"
	PollInterval   time.Duration `yaml:"pollInterval"`   // e.g. 30s
	DebounceWindow time.Duration `yaml:"debounceWindow"` // e.g. 500ms
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // node_exporter textfile path, empty disables
}

// Default returns the configuration used for every field a file leaves out.
func Default() Config {
	return Config{
		Archive: ArchiveConfig{
			Directory:         "./logs",
			BaseName:          "app",
			CompressionSuffix: ".zip",
			CompressionLevel:  9,
			RawRetention:      30,
			ArchiveRetention:  90,
			Schedule:          "0 1 * * *",
			SerializeSweeps:   true,
		},
		Rotate: RotateConfig{
			When: "midnight",
		},
		Watch: WatchConfig{
			Mode:           "off",
			PollInterval:   30 * time.Second,
			DebounceWindow: 500 * time.Millisecond,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "auto",
			Output: "stderr",
		},
	}
}

// ArchiverConfig projects the file configuration onto the engine.
func (c *Config) ArchiverConfig() archive.Config {
	return archive.Config{
		Directory:         c.Archive.Directory,
		BaseName:          c.Archive.BaseName,
		CompressionSuffix: c.Archive.CompressionSuffix,
		CompressionLevel:  c.Archive.CompressionLevel,
		RawRetention:      c.Archive.RawRetention,
		ArchiveRetention:  c.Archive.ArchiveRetention,
		Schedule:          c.Archive.Schedule,
	}
}
