package config

import (
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/postbuilder/internal/foundation"
	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
)

var statuses = foundation.NewNormalizer(map[string]string{"draft": "draft", "published": "published"})

// Validate checks a configuration after defaults have been applied.
func (c *Config) Validate() error {
	status, ok := statuses.Normalize(c.Site.Status)
	if !ok {
		return invalid("site.status must be one of "+strings.Join(statuses.ValidKeys(), ", "), "status", c.Site.Status)
	}
	c.Site.Status = status

	if filepath.Base(c.Blog.IndexDocument) != c.Blog.IndexDocument {
		return invalid("blog.index_document must be a bare filename", "index_document", c.Blog.IndexDocument)
	}
	if filepath.Base(c.Blog.OutputFile) != c.Blog.OutputFile {
		return invalid("blog.output_file must be a bare filename", "output_file", c.Blog.OutputFile)
	}
	if c.Blog.OutputFile == c.Blog.IndexDocument {
		return invalid("blog.output_file must differ from blog.index_document", "output_file", c.Blog.OutputFile)
	}

	if len(c.Figures) == 0 {
		return invalid("at least one figures collection is required", "figures", 0)
	}
	seen := make(map[string]struct{}, len(c.Figures))
	for i := range c.Figures {
		if err := c.Figures[i].validate(); err != nil {
			return err
		}
		name := c.Figures[i].Name
		if _, dup := seen[name]; dup {
			return invalid("duplicate figure collection name", "figure", name)
		}
		seen[name] = struct{}{}
	}

	for _, cand := range c.Converter.Candidates {
		if strings.TrimSpace(cand) == "" {
			return invalid("converter.candidates must not contain empty names", "candidates", strings.Join(c.Converter.Candidates, ","))
		}
	}

	if c.Index.Enabled() && strings.TrimSpace(c.Index.Placeholder) == "" {
		return invalid("index.placeholder must not be blank", "template", c.Index.Template)
	}
	return nil
}

func (f *FigureConfig) validate() error {
	required := []struct{ key, value string }{
		{"name", f.Name},
		{"document", f.Document},
		{"namespace", f.Namespace},
		{"source_dir", f.SourceDir},
		{"asset_dir", f.AssetDir},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return invalid("figures."+r.key+" is required", "figure", f.Name)
		}
	}
	for _, ext := range []string{f.SourceExt, f.RasterExt} {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return invalid("figure extensions must start with a dot", "figure", f.Name)
		}
	}
	if f.SourceExt == f.RasterExt {
		return invalid("figures.source_ext must differ from raster_ext", "figure", f.Name)
	}
	if filepath.Clean(f.SourceDir) == filepath.Clean(f.AssetDir) {
		return invalid("figures.asset_dir must differ from source_dir", "figure", f.Name)
	}
	return nil
}

func invalid(message, key string, value any) error {
	return foundationerrors.ConfigError(message).WithContext(key, value).Build()
}
