package config

// Defaults applied when a key is omitted.
const (
	DefaultSiteName         = "SPECTER Labs"
	DefaultLang             = "en"
	DefaultStatus           = "published"
	DefaultBlogDir          = "site/blog"
	DefaultIndexDocument    = "index.md"
	DefaultOutputFile       = "index.html"
	DefaultTemplate         = "site/blog/post-template.html"
	DefaultRendererBinary   = "pandoc"
	DefaultTOCDepth         = 2
	DefaultRendererFrom     = "markdown+lists_without_preceding_blankline"
	DefaultSourceExt        = ".pdf"
	DefaultRasterExt        = ".png"
	DefaultMaxDimension     = 1600
	DefaultDPI              = 200
	DefaultIndexPlaceholder = "<!-- POSTS -->"
)

// DefaultConverterCandidates is the probe order for PDF rasterizers.
var DefaultConverterCandidates = []string{"pdftoppm", "mutool", "magick", "sips"}

func applyDefaults(cfg *Config) {
	if cfg.Site.Name == "" {
		cfg.Site.Name = DefaultSiteName
	}
	if cfg.Site.Lang == "" {
		cfg.Site.Lang = DefaultLang
	}
	if cfg.Site.Status == "" {
		cfg.Site.Status = DefaultStatus
	}

	if cfg.Blog.Dir == "" {
		cfg.Blog.Dir = DefaultBlogDir
	}
	if cfg.Blog.IndexDocument == "" {
		cfg.Blog.IndexDocument = DefaultIndexDocument
	}
	if cfg.Blog.OutputFile == "" {
		cfg.Blog.OutputFile = DefaultOutputFile
	}
	if cfg.Blog.Template == "" {
		cfg.Blog.Template = DefaultTemplate
	}

	if cfg.Renderer.Binary == "" {
		cfg.Renderer.Binary = DefaultRendererBinary
	}
	if cfg.Renderer.TOCDepth <= 0 {
		cfg.Renderer.TOCDepth = DefaultTOCDepth
	}
	if cfg.Renderer.From == "" {
		cfg.Renderer.From = DefaultRendererFrom
	}

	for i := range cfg.Figures {
		f := &cfg.Figures[i]
		if f.SourceExt == "" {
			f.SourceExt = DefaultSourceExt
		}
		if f.RasterExt == "" {
			f.RasterExt = DefaultRasterExt
		}
	}

	if len(cfg.Converter.Candidates) == 0 {
		cfg.Converter.Candidates = append([]string(nil), DefaultConverterCandidates...)
	}
	if cfg.Converter.MaxDimension <= 0 {
		cfg.Converter.MaxDimension = DefaultMaxDimension
	}
	if cfg.Converter.DPI <= 0 {
		cfg.Converter.DPI = DefaultDPI
	}

	if cfg.Index.Enabled() {
		if cfg.Index.Placeholder == "" {
			cfg.Index.Placeholder = DefaultIndexPlaceholder
		}
		if cfg.Index.Output == "" {
			cfg.Index.Output = cfg.Blog.Dir + "/" + DefaultOutputFile
		}
	}
}
