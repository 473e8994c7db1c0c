// Package config provides configuration management for framering tools.
//
// Configuration is built in layers: built-in defaults, then each file added to
// the Loader in order, then environment variables. JSON and YAML files are
// accepted, chosen by extension (.json, .yaml, .yml). Files only override the
// fields they mention.
//
// # Basic Usage
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.yaml")
//	loader.AddLayer("configs/local.json") // Overrides base
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// config.Load(path) is the single-file shorthand. An empty path returns the
// defaults with environment overrides applied.
//
// # Environment Overrides
//
// Variables use the FRAMERING_ prefix:
//
//	FRAMERING_ALLOCATOR_KIND=mmap
//	FRAMERING_SCHEDULER_WORKERS=8
//	FRAMERING_METRICS_ENABLED=true
//	FRAMERING_SIM_FRAMES=1200
//
// # Validation
//
// Validate returns an invalid-class error wrapping errors.ErrInvalidConfig
// that names the offending field:
//
//	if err := cfg.Validate(); errors.IsInvalid(err) {
//		// reject
//	}
//
// # Thread-Safe Access
//
// SafeConfig wraps a Config behind an RWMutex. Get returns a copy; Update
// validates before swapping.
//
// # File Safety
//
// Files are read through size, type and path checks, and JSON nesting depth is
// bounded. SaveToFile writes with 0600 permissions.
package config
