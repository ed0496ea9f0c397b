// Package index renders the blog landing page listing every post.
package index

import (
	"slices"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/net/html"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/postbuilder/internal/util/fsutil"
)

// Entry is one post on the index page.
type Entry struct {
	Slug  string
	Title string
}

// Page describes the index template and where to write the result.
type Page struct {
	TemplatePath string
	OutputPath   string
	Placeholder  string
}

// Sort orders entries by title, case-insensitively and language-aware,
// falling back to slug for equal titles.
func Sort(entries []Entry) {
	c := collate.New(language.English, collate.IgnoreCase)
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if n := c.CompareString(a.Title, b.Title); n != 0 {
			return n
		}
		return strings.Compare(a.Slug, b.Slug)
	})
}

// Items renders the post links that replace the placeholder.
func Items(entries []Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(`<a class="post-item" href="`)
		b.WriteString(html.EscapeString(e.Slug + "/"))
		b.WriteString(`"><span class="post-item-title">`)
		b.WriteString(html.EscapeString(e.Title))
		b.WriteString(`</span></a>`)
	}
	return b.String()
}

// Write sorts entries, substitutes them into the template and writes the
// page atomically.
func Write(fs afero.Fs, page Page, entries []Entry) error {
	tmpl, err := afero.ReadFile(fs, page.TemplatePath)
	if err != nil {
		return foundationerrors.NotFoundError("index template not found").
			WithCause(err).
			WithContext("path", page.TemplatePath).
			Build()
	}
	if !strings.Contains(string(tmpl), page.Placeholder) {
		return foundationerrors.ConfigError("index template lacks placeholder").
			WithContext("path", page.TemplatePath).
			WithContext("placeholder", page.Placeholder).
			Build()
	}

	sorted := slices.Clone(entries)
	Sort(sorted)
	out := strings.Replace(string(tmpl), page.Placeholder, Items(sorted), 1)

	if err := fsutil.WriteFileAtomic(fs, page.OutputPath, []byte(out), 0o644); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot write index page").
			WithContext("path", page.OutputPath).
			Build()
	}
	return nil
}
