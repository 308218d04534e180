package maincmd

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// RuntimeConfig holds the environment-driven tunables for the `build`,
// `clean` and `refresh` commands (SPEC_FULL.md §3 "Supplemental data-model
// additions"): I/O worker parallelism, buffer cache sizing, module cache
// sizing, and the module roots path. Populated the way the teacher's own
// mainer.Parser populates flags from the environment, but through
// github.com/caarlos0/env/v6 directly since these aren't CLI flags.
type RuntimeConfig struct {
	ModuleRoots string `env:"MODULE_ROOTS"`

	IOWorkerCount             int   `env:"EMBER_IO_WORKERS" envDefault:"4"`
	IOQueueCapacity           int   `env:"EMBER_IO_QUEUE_CAPACITY" envDefault:"256"`
	BufferCacheStrongCapacity int   `env:"EMBER_BUFFER_CACHE_STRONG" envDefault:"256"`
	BufferCacheSoftCapacity   int   `env:"EMBER_BUFFER_CACHE_SOFT" envDefault:"1024"`
	ModuleCacheCapacity       int   `env:"EMBER_MODULE_CACHE_CAPACITY" envDefault:"512"`
	DefaultFiberPriority      uint8 `env:"EMBER_DEFAULT_FIBER_PRIORITY" envDefault:"5"`
	BuildParallelism          int   `env:"EMBER_BUILD_PARALLELISM" envDefault:"4"`
}

// LoadRuntimeConfig parses RuntimeConfig from the process environment.
func LoadRuntimeConfig() (RuntimeConfig, error) {
	var cfg RuntimeConfig
	if err := env.Parse(&cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("maincmd: parsing runtime config: %w", err)
	}
	return cfg, nil
}
