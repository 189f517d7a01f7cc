package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagInput   = flag.String("in", "", "Input directory with raw asset dumps")
	flagOutput  = flag.String("out", "", "Output directory for staged assets")
	flagStrict  = flag.Bool("strict", false, "Fail assets on truncated texture data")
	flagWorkers = flag.Int("workers", 0, "Parallel texture decode workers")
)

// ParseFlags parses command-line flags. Subcommand mains pass their
// remaining arguments so the command word itself is not parsed.
func ParseFlags(args []string) {
	flag.CommandLine.Parse(args)
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagInput != "" {
		cfg.Pipeline.InputDir = *flagInput
	}
	if *flagOutput != "" {
		cfg.Pipeline.OutputDir = *flagOutput
	}
	if *flagStrict {
		cfg.Textures.Strict = true
	}
	if *flagWorkers > 0 {
		cfg.Pipeline.Workers = *flagWorkers
	}
}
