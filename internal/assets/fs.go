package assets

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"git.home.luguber.info/inful/postbuilder/internal/util/sets"
)

// exists reports whether path is present. Stat errors count as absent.
func exists(fs afero.Fs, path string) bool {
	ok, err := afero.Exists(fs, path)
	return err == nil && ok
}

// dirExists reports whether path is a directory.
func dirExists(fs afero.Fs, path string) bool {
	ok, err := afero.DirExists(fs, path)
	return err == nil && ok
}

// listDerivedAssets returns the names of regular files directly inside dir
// that carry ext. Subdirectories are not descended into.
func listDerivedAssets(fs afero.Fs, dir, ext string) (sets.Set[string], error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}
	out := sets.New[string]()
	for _, e := range entries {
		if !e.Mode().IsRegular() {
			continue
		}
		if filepath.Ext(e.Name()) == ext {
			out.Add(e.Name())
		}
	}
	return out, nil
}

// canonicalPath maps a derived asset name to its canonical source by
// swapping the raster extension for the source extension.
func canonicalPath(sourceDir, name, sourceExt string) string {
	return filepath.Join(sourceDir, strings.TrimSuffix(name, filepath.Ext(name))+sourceExt)
}
