// Package convert rasterizes canonical PDF figures to PNG using whichever
// external converter is installed.
//
// Backend selection runs once per build (see Once) and its result, a
// Backend, is passed to the caller explicitly:
//
//	backend, err := convert.Probe(exec.LookPath, convert.DefaultCandidates, convert.DefaultOptions())
//	if err != nil { ... }
//	err = backend.Convert(ctx, "figs/fig.pdf", "assets/fig.png")
package convert

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/spf13/afero"

	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/postbuilder/internal/logfields"
	"git.home.luguber.info/inful/postbuilder/internal/process"
)

var (
	// ErrNoConverterAvailable is returned when none of the candidate tools is on PATH.
	ErrNoConverterAvailable = errors.New("no PDF to PNG converter available")
	// ErrConversion is returned when a converter fails or produces no usable PNG.
	ErrConversion = errors.New("figure conversion failed")
)

// DefaultCandidates is the probe order.
var DefaultCandidates = []string{"pdftoppm", "mutool", "magick", "sips"}

// Options bound the rasterized output and supply the collaborators used to
// run tools and touch their output.
type Options struct {
	MaxDimension int
	DPI          int

	Runner process.Runner
	Fs     afero.Fs
}

// DefaultOptions returns the 1600 px / 200 DPI bounds. Nil collaborators fall
// back to process.ExecRunner and the OS filesystem.
func DefaultOptions() Options {
	return Options{MaxDimension: 1600, DPI: 200}
}

func (o Options) withDefaults() Options {
	if o.MaxDimension <= 0 {
		o.MaxDimension = 1600
	}
	if o.DPI <= 0 {
		o.DPI = 200
	}
	if o.Runner == nil {
		o.Runner = &process.ExecRunner{}
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	return o
}

// Backend converts the first page of a PDF into exactly one PNG.
type Backend interface {
	Name() string
	Convert(ctx context.Context, src, dst string) error
}

// Prober yields the Backend for one synchronization.
type Prober interface {
	Probe() (Backend, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func() (Backend, error)

func (f ProberFunc) Probe() (Backend, error) { return f() }

// Once wraps p so that p.Probe runs at most once. Later calls return the first
// backend or error again, keeping one converter selection per build.
func Once(p Prober) Prober {
	var (
		once    sync.Once
		backend Backend
		err     error
	)
	return ProberFunc(func() (Backend, error) {
		once.Do(func() { backend, err = p.Probe() })
		return backend, err
	})
}

// Probe returns a backend for the first candidate whose binary lookPath can
// resolve. It has no side effects beyond the lookups.
func Probe(lookPath process.LookPathFunc, candidates []string, opts Options) (Backend, error) {
	opts = opts.withDefaults()
	for _, name := range candidates {
		spec, ok := tools[name]
		if !ok {
			slog.Warn("Unknown converter candidate ignored", logfields.Tool(name))
			continue
		}
		path, err := lookPath(spec.binary)
		if err != nil {
			slog.Debug("Converter candidate not found", logfields.Tool(name))
			continue
		}
		return &toolBackend{name: name, path: path, spec: spec, opts: opts}, nil
	}
	return nil, foundationerrors.ToolingError("no PDF to PNG converter found on PATH").
		WithCause(ErrNoConverterAvailable).
		WithContext("candidates", strings.Join(candidates, ",")).
		Build()
}

// SystemProber probes PATH, by default using exec.LookPath.
type SystemProber struct {
	Candidates []string
	Options    Options
	LookPath   process.LookPathFunc
}

// NewSystemProber creates a prober for the given candidates, defaulting to
// DefaultCandidates when empty.
func NewSystemProber(candidates []string, opts Options) *SystemProber {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	return &SystemProber{Candidates: candidates, Options: opts, LookPath: exec.LookPath}
}

func (p *SystemProber) Probe() (Backend, error) {
	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return Probe(lookPath, p.Candidates, p.Options)
}
