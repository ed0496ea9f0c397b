package helpers

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"slices"
	"testing"

	"git.home.luguber.info/inful/postbuilder/internal/process"
)

// PNG returns an encoded blank image of the given size.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// LookPathIn resolves only the named binaries, to /usr/bin/<name>.
func LookPathIn(available ...string) process.LookPathFunc {
	return func(file string) (string, error) {
		if slices.Contains(available, file) {
			return "/usr/bin/" + file, nil
		}
		return "", errors.New("executable file not found in $PATH")
	}
}
