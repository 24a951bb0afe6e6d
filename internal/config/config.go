package config

import (
	"flag"
	"time"
)

type Config struct {
	StoreFile     string
	StoreInterval time.Duration // 0 - disable periodic save
	Restore       bool
}

// NewConfig reads the configuration from command line flags. It may be
// called only once per process because of flag registration.
func NewConfig() *Config {
	f := flag.String("STORE_FILE", "db/index.data", "store file")
	i := flag.Duration("STORE_INTERVAL", time.Second*5, "store interval")
	r := flag.Bool("RESTORE", true, "restore the index from disk on startup")
	flag.Parse()

	return &Config{
		StoreFile:     *f,
		StoreInterval: *i,
		Restore:       *r,
	}
}

// Default returns the configuration defaults without touching the flag
// package. Used by tests.
func Default() *Config {
	return &Config{
		StoreFile:     "db/index.data",
		StoreInterval: time.Second * 5,
		Restore:       false,
	}
}
