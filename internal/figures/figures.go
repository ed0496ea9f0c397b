// Package figures inspects canonical PDF figures before they are rasterized.
package figures

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/spf13/afero"
)

// ErrUnreadable is returned when a canonical figure does not parse as a PDF.
var ErrUnreadable = errors.New("canonical figure is not a readable PDF")

// Info describes a canonical figure.
type Info struct {
	Path  string
	Pages int
}

// MultiPage reports whether only part of the figure will be rasterized.
func (i Info) MultiPage() bool { return i.Pages > 1 }

// Inspect parses and validates the PDF at path. The file is read into
// memory so pdfcpu always seeks a bytes.Reader, which rejects offsets
// before the start of short inputs.
func Inspect(fs afero.Fs, path string) (Info, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Info{}, err
	}

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %s: %w", ErrUnreadable, path, err)
	}
	if ctx.PageCount < 1 {
		return Info{}, fmt.Errorf("%w: %s has no pages", ErrUnreadable, path)
	}
	return Info{Path: path, Pages: ctx.PageCount}, nil
}
