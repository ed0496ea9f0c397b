package post

import (
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
)

// Source is a post discovered on disk.
type Source struct {
	Path  string
	Slug  string
	Title string
}

// Slug returns the name of the directory containing the post source.
func Slug(path string) string {
	return filepath.Base(filepath.Dir(filepath.Clean(path)))
}

// ExtractTitle returns the text of the first level-1 heading. Headings
// inside code blocks are not headings and are ignored.
func ExtractTitle(markdown []byte) (string, error) {
	root := goldmark.New().Parser().Parse(text.NewReader(markdown))

	var title string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if h, ok := n.(*gmast.Heading); ok && h.Level == 1 {
			title = strings.TrimSpace(inlineText(h, markdown))
			if title != "" {
				return gmast.WalkStop, nil
			}
		}
		return gmast.WalkContinue, nil
	})

	if title == "" {
		return "", foundationerrors.ContentError("post has no level-1 heading").
			WithCause(ErrMissingTitle).
			Build()
	}
	return title, nil
}

// inlineText concatenates the literal text below n.
func inlineText(n gmast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *gmast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *gmast.String:
			b.Write(node.Value)
		default:
			b.WriteString(inlineText(c, source))
		}
	}
	return b.String()
}
