// Package reference finds the figure filenames a post references under one
// asset namespace, e.g. "/assets/wonton-soup/fig-proof.png".
package reference

import (
	"errors"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/postbuilder/internal/util/sets"
)

// ErrInvalidPattern is returned when a namespace prefix or extension is unusable.
var ErrInvalidPattern = errors.New("invalid reference pattern")

// filenameBody is the bare filename allowed between the prefix and the extension.
const filenameBody = `[A-Za-z0-9][A-Za-z0-9._-]*`

// Pattern matches asset references under a fixed namespace prefix.
type Pattern struct {
	prefix string
	ext    string
	re     *regexp.Regexp
}

// NewPattern compiles a matcher for prefix + bare filename + ext.
func NewPattern(prefix, ext string) (*Pattern, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, errors.Join(ErrInvalidPattern, errors.New("empty namespace prefix"))
	}
	if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
		return nil, errors.Join(ErrInvalidPattern, errors.New("extension must start with a dot"))
	}
	re, err := regexp.Compile(regexp.QuoteMeta(prefix) + `(` + filenameBody + regexp.QuoteMeta(ext) + `)`)
	if err != nil {
		return nil, errors.Join(ErrInvalidPattern, err)
	}
	return &Pattern{prefix: prefix, ext: ext, re: re}, nil
}

// MustPattern is like NewPattern but panics on error.
func MustPattern(prefix, ext string) *Pattern {
	p, err := NewPattern(prefix, ext)
	if err != nil {
		panic(err)
	}
	return p
}

// Prefix returns the namespace prefix.
func (p *Pattern) Prefix() string { return p.prefix }

// Ext returns the raster extension.
func (p *Pattern) Ext() string { return p.ext }

// Extract returns the distinct bare filenames referenced in text. The result
// is empty, never nil, when nothing matches.
func (p *Pattern) Extract(text string) sets.Set[string] {
	out := sets.New[string]()
	for _, m := range p.re.FindAllStringSubmatch(text, -1) {
		out.Add(m[1])
	}
	return out
}

// Extract is a convenience wrapper compiling the pattern on each call.
func Extract(text, prefix, ext string) (sets.Set[string], error) {
	p, err := NewPattern(prefix, ext)
	if err != nil {
		return nil, err
	}
	return p.Extract(text), nil
}
