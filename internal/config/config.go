// Package config handles pipeline configuration loading and management.
package config

// Config holds all pipeline settings.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Textures TextureConfig  `yaml:"textures"`
	Meshes   MeshConfig     `yaml:"meshes"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PipelineConfig holds input/output locations and batch settings.
type PipelineConfig struct {
	InputDir  string `yaml:"input_dir"`  // Raw asset dumps from the toolkit
	OutputDir string `yaml:"output_dir"` // Staged files for the web viewer
	Workers   int    `yaml:"workers"`    // Parallel texture decode workers
}

// TextureConfig holds texture staging settings.
type TextureConfig struct {
	Strict  bool `yaml:"strict"`  // Fail assets on truncated block data instead of staging partials
	Mipmaps bool `yaml:"mipmaps"` // Generate a mip chain for staged rasters
}

// MeshConfig holds mesh staging settings.
type MeshConfig struct {
	UpgradeTangents bool `yaml:"upgrade_tangents"` // Rewrite v2/v3 meshes as v4 with tangents
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			InputDir:  "./assets",
			OutputDir: "./staged",
			Workers:   4,
		},
		Textures: TextureConfig{
			Strict:  false,
			Mipmaps: true,
		},
		Meshes: MeshConfig{
			UpgradeTangents: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
