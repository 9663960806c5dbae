// Package config provides layered configuration for dwarfdump: defaults, an
// optional YAML file, DWARFDUMP_* environment variables and explicitly set
// command-line flags, each layer overriding the previous one.
package config

// Defaults.
const (
	DefaultMaxResolveDepth = 64
	DefaultMaxTreeDepth    = 512
	DefaultMaxInputSize    = int64(4) << 30
	DefaultLogLevel        = "info"
)

// Config is the complete dwarfdump configuration.
type Config struct {
	// Demangle rewrites method names in demangled form.
	Demangle bool `yaml:"demangle" env:"DWARFDUMP_DEMANGLE"`
	// Variables extracts variables and their types.
	Variables bool `yaml:"variables" env:"DWARFDUMP_VARIABLES"`
	// Output is the report file. Empty prints the report to stdout.
	Output string `yaml:"output" env:"DWARFDUMP_OUTPUT"`
	// Pretty indents the report even when it is written to a file.
	Pretty bool `yaml:"pretty" env:"DWARFDUMP_PRETTY"`
	// Jobs is the number of units traversed in parallel. Zero uses GOMAXPROCS.
	Jobs int `yaml:"jobs" env:"DWARFDUMP_JOBS"`
	// MaxResolveDepth bounds specification and abstract-origin chains.
	MaxResolveDepth int `yaml:"max_resolve_depth" env:"DWARFDUMP_MAX_RESOLVE_DEPTH"`
	// MaxTreeDepth bounds the nesting of entry trees.
	MaxTreeDepth int `yaml:"max_tree_depth" env:"DWARFDUMP_MAX_TREE_DEPTH"`
	// MaxInputSize is the largest binary accepted, in bytes.
	MaxInputSize int64 `yaml:"max_input_size" env:"DWARFDUMP_MAX_INPUT_SIZE"`

	Log   LogConfig   `yaml:"log"`
	Index IndexConfig `yaml:"index"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" env:"DWARFDUMP_LOG_LEVEL"`
	// Pretty forces console (true) or JSON (false) logs. Unset picks console
	// output when stderr is a terminal.
	Pretty *bool `yaml:"pretty" env:"DWARFDUMP_LOG_PRETTY"`
}

// IndexConfig configures the DuckDB report index.
type IndexConfig struct {
	Database string `yaml:"database" env:"DWARFDUMP_INDEX_DATABASE"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		MaxResolveDepth: DefaultMaxResolveDepth,
		MaxTreeDepth:    DefaultMaxTreeDepth,
		MaxInputSize:    DefaultMaxInputSize,
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		Index: IndexConfig{
			Database: "dwarfdump.duckdb",
		},
	}
}
