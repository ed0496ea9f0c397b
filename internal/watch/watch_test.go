package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
)

const testDebounce = 50 * time.Millisecond

type session struct {
	builds atomic.Int32
	done   chan error
	cancel context.CancelFunc
}

func startWatch(t *testing.T, dirs []string, opts Options, build BuildFunc) *session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{done: make(chan error, 1), cancel: cancel}
	opts.Debounce = testDebounce
	go func() {
		s.done <- Run(ctx, dirs, func(ctx context.Context) error {
			s.builds.Add(1)
			if build != nil {
				return build(ctx)
			}
			return nil
		}, opts)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			t.Error("watch did not stop")
		}
	})
	s.waitBuilds(t, 1)
	return s
}

func (s *session) waitBuilds(t *testing.T, n int32) {
	t.Helper()
	require.Eventually(t, func() bool { return s.builds.Load() >= n }, 2*time.Second, 10*time.Millisecond)
}

// settle waits long enough for any pending debounce to fire.
func settle() { time.Sleep(6 * testDebounce) }

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(time.Now().String()), 0o600))
}

func TestRun_InitialBuild(t *testing.T) {
	s := startWatch(t, []string{t.TempDir()}, Options{}, nil)
	settle()
	assert.EqualValues(t, 1, s.builds.Load())
}

func TestRun_BurstCoalescesToSingleBuild(t *testing.T) {
	dir := t.TempDir()
	s := startWatch(t, []string{dir}, Options{}, nil)

	for i := range 5 {
		touch(t, filepath.Join(dir, "post-"+string(rune('a'+i))+".md"))
	}
	s.waitBuilds(t, 2)
	settle()
	assert.EqualValues(t, 2, s.builds.Load())
}

func TestRun_IgnoresEditorFilesAndOutputs(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Ignore: IgnoreOutputs([]string{"index.html"}, nil)}
	s := startWatch(t, []string{dir}, opts, nil)

	touch(t, filepath.Join(dir, "index.md.swp"))
	touch(t, filepath.Join(dir, ".index.html.tmp-123"))
	touch(t, filepath.Join(dir, "index.html"))
	settle()
	assert.EqualValues(t, 1, s.builds.Load())

	touch(t, filepath.Join(dir, "index.md"))
	s.waitBuilds(t, 2)
}

func TestRun_WatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()
	s := startWatch(t, []string{dir}, Options{}, nil)

	sub := filepath.Join(dir, "new-post")
	require.NoError(t, os.Mkdir(sub, 0o750))
	s.waitBuilds(t, 2)
	settle()

	touch(t, filepath.Join(sub, "index.md"))
	s.waitBuilds(t, 3)
}

func TestRun_ContinuesAfterFailedBuild(t *testing.T) {
	dir := t.TempDir()
	s := startWatch(t, []string{dir}, Options{}, func(context.Context) error {
		return errors.New("render failed")
	})

	touch(t, filepath.Join(dir, "index.md"))
	s.waitBuilds(t, 2)
}

func TestRun_MissingDirectory(t *testing.T) {
	err := Run(context.Background(), []string{filepath.Join(t.TempDir(), "missing")},
		func(context.Context) error { return nil }, Options{})
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryNotFound))
}

func TestShouldIgnoreEvent(t *testing.T) {
	tests := []struct {
		path   string
		ignore bool
	}{
		{"blog/post/index.md", false},
		{"figures/fig.pdf", false},
		{"blog/.hidden", true},
		{"blog/post/index.md~", true},
		{"blog/post/.index.md.swp", true},
		{"blog/post/index.md.swx", true},
		{"blog/post/#index.md#", true},
		{"blog/post/4913", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.ignore, shouldIgnoreEvent(tt.path))
		})
	}
}

func TestIgnoreOutputs(t *testing.T) {
	root := t.TempDir()
	ignore := IgnoreOutputs([]string{"index.html"}, []string{filepath.Join(root, "assets")})

	assert.True(t, ignore(filepath.Join(root, "blog", "post", "index.html")))
	assert.True(t, ignore(filepath.Join(root, "assets", "fig.png")))
	assert.True(t, ignore(filepath.Join(root, "assets")))
	assert.False(t, ignore(filepath.Join(root, "assets-src", "fig.pdf")))
	assert.False(t, ignore(filepath.Join(root, "blog", "post", "index.md")))
}
