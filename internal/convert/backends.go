package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/postbuilder/internal/logfields"
	"git.home.luguber.info/inful/postbuilder/internal/raster"
	"git.home.luguber.info/inful/postbuilder/internal/util/fsutil"
)

// toolSpec describes how one converter is invoked. args must make the tool
// write page 1 of src to out, an absolute or relative path ending in .png.
type toolSpec struct {
	binary string
	args   func(src, out string, opts Options) []string
}

var tools = map[string]toolSpec{
	"pdftoppm": {
		binary: "pdftoppm",
		args: func(src, out string, o Options) []string {
			// -singlefile appends .png to the output root itself.
			return []string{"-png", "-singlefile", "-f", "1", "-l", "1",
				"-r", strconv.Itoa(o.DPI), src, strings.TrimSuffix(out, ".png")}
		},
	},
	"mutool": {
		binary: "mutool",
		args: func(src, out string, o Options) []string {
			return []string{"draw", "-q", "-F", "png", "-r", strconv.Itoa(o.DPI), "-o", out, src, "1"}
		},
	},
	"magick": {
		binary: "magick",
		args: func(src, out string, o Options) []string {
			bound := fmt.Sprintf("%dx%d>", o.MaxDimension, o.MaxDimension)
			return []string{"-density", strconv.Itoa(o.DPI), src + "[0]", "-resize", bound, "png:" + out}
		},
	},
	"sips": {
		binary: "sips",
		args: func(src, out string, o Options) []string {
			return []string{"-s", "format", "png", "-Z", strconv.Itoa(o.MaxDimension), src, "--out", out}
		},
	},
}

// toolBackend runs one external converter.
type toolBackend struct {
	name string
	path string
	spec toolSpec
	opts Options
}

func (b *toolBackend) Name() string { return b.name }

// Convert writes the tool output to a temporary sibling of dst, bounds it to
// MaxDimension and renames it into place. dst is untouched on failure.
func (b *toolBackend) Convert(ctx context.Context, src, dst string) error {
	fs := b.opts.Fs
	start := time.Now()

	tmp, err := fsutil.TempSibling(fs, dst)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot prepare conversion output").
			WithContext("path", dst).
			Build()
	}
	defer func() { _ = fs.Remove(tmp) }()

	out, runErr := b.opts.Runner.Run(ctx, b.path, b.spec.args(src, tmp, b.opts)...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if runErr != nil {
		return b.failure(src, runErr, out.Diagnostic())
	}

	if ok, _ := afero.Exists(fs, tmp); !ok {
		return b.failure(src, errors.New("no output file produced"), out.Diagnostic())
	}
	size, err := raster.Bound(fs, tmp, b.opts.MaxDimension)
	if err != nil {
		return b.failure(src, err, "")
	}

	if err := fs.Rename(tmp, dst); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot move converted figure into place").
			WithContext("path", dst).
			Build()
	}

	slog.Debug("Converted figure",
		logfields.Backend(b.name),
		logfields.Path(dst),
		slog.Int("width", size.Width),
		slog.Int("height", size.Height),
		logfields.Duration(time.Since(start)))
	return nil
}

func (b *toolBackend) failure(src string, cause error, detail string) error {
	builder := foundationerrors.ExternalToolError("figure conversion failed").
		WithCause(fmt.Errorf("%w: %w", ErrConversion, cause)).
		WithContext("tool", b.name).
		WithContext("figure", src)
	if line := firstLine(detail); line != "" {
		builder = builder.WithContext("detail", line)
	}
	return builder.Build()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
