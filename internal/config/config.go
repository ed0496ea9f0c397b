package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
)

// DefaultPath is the configuration file used when --config is not given.
const DefaultPath = "postbuilder.yaml"

// Config represents the application configuration
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Blog      BlogConfig      `yaml:"blog"`
	Renderer  RendererConfig  `yaml:"renderer"`
	Figures   []FigureConfig  `yaml:"figures"`
	Converter ConverterConfig `yaml:"converter"`
	Index     IndexConfig     `yaml:"index"`
}

// SiteConfig holds site-wide metadata passed to every rendered page.
type SiteConfig struct {
	Name   string `yaml:"name"`
	Lang   string `yaml:"lang"`
	Status string `yaml:"status"` // draft | published
}

// BlogConfig locates post sources and the page template.
type BlogConfig struct {
	Dir           string `yaml:"dir"`
	IndexDocument string `yaml:"index_document"`
	OutputFile    string `yaml:"output_file"`
	Template      string `yaml:"template"`
}

// RendererConfig configures the external document renderer.
type RendererConfig struct {
	Binary   string `yaml:"binary"`
	TOCDepth int    `yaml:"toc_depth"`
	From     string `yaml:"from"`
}

// FigureConfig describes one collection of canonical figures and the
// derived asset directory kept in sync with a document.
type FigureConfig struct {
	Name            string `yaml:"name"`
	Document        string `yaml:"document"`
	Namespace       string `yaml:"namespace"`
	SourceDir       string `yaml:"source_dir"`
	AssetDir        string `yaml:"asset_dir"`
	SourceExt       string `yaml:"source_ext,omitempty"`
	RasterExt       string `yaml:"raster_ext,omitempty"`
	ValidateSources bool   `yaml:"validate_sources,omitempty"`
}

// ConverterConfig configures PDF to PNG conversion.
type ConverterConfig struct {
	Candidates   []string `yaml:"candidates,omitempty"`
	MaxDimension int      `yaml:"max_dimension,omitempty"`
	DPI          int      `yaml:"dpi,omitempty"`
}

// IndexConfig configures the optional blog index page. An empty Template
// disables it.
type IndexConfig struct {
	Template    string `yaml:"template,omitempty"`
	Output      string `yaml:"output,omitempty"`
	Placeholder string `yaml:"placeholder,omitempty"`
}

// Enabled reports whether an index page should be written.
func (i IndexConfig) Enabled() bool { return i.Template != "" }

// Load loads configuration from the specified file. When configPath is the
// default path and no such file exists, the defaults are validated and
// returned.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if configPath == "" {
		configPath = DefaultPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) && configPath == DefaultPath {
			cfg := &Config{}
			applyDefaults(cfg)
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		if os.IsNotExist(err) {
			return nil, foundationerrors.NotFoundError("configuration file not found").
				WithCause(err).
				WithContext("path", configPath).
				Build()
		}
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	return Parse(data, configPath)
}

// Parse decodes YAML configuration, expanding ${VAR} references, then
// applies defaults and validates the result. source is used in diagnostics.
func Parse(data []byte, source string) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryConfig, "failed to unmarshal config").
			WithContext("path", source).
			Build()
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return foundationerrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := Config{
		Site: SiteConfig{Name: "SPECTER Labs", Lang: "en", Status: "published"},
		Blog: BlogConfig{
			Dir:           "site/blog",
			IndexDocument: "index.md",
			OutputFile:    "index.html",
			Template:      "site/blog/post-template.html",
		},
		Renderer: RendererConfig{Binary: "pandoc", TOCDepth: 2, From: DefaultRendererFrom},
		Figures: []FigureConfig{
			{
				Name:            "wonton-soup",
				Document:        "site/blog/wonton-soup/index.md",
				Namespace:       "/assets/wonton-soup/",
				SourceDir:       "dossiers/wonton-soup/figures",
				AssetDir:        "site/assets/wonton-soup",
				SourceExt:       ".pdf",
				RasterExt:       ".png",
				ValidateSources: true,
			},
		},
		Converter: ConverterConfig{
			Candidates:   append([]string(nil), DefaultConverterCandidates...),
			MaxDimension: DefaultMaxDimension,
			DPI:          DefaultDPI,
		},
		Index: IndexConfig{
			Template:    "site/blog/index-template.html",
			Output:      "site/blog/index.html",
			Placeholder: DefaultIndexPlaceholder,
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}

	return nil
}
