package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeySlug       = "slug"
	KeyAsset      = "asset"
	KeyFigure     = "figure"
	KeyCollection = "collection"
	KeyBackend    = "backend"
	KeyTool       = "tool"
	KeyPath       = "path"
	KeyCount      = "count"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr       { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Slug(s string) slog.Attr           { return slog.String(KeySlug, s) }
func Asset(name string) slog.Attr       { return slog.String(KeyAsset, name) }
func Figure(path string) slog.Attr      { return slog.String(KeyFigure, path) }
func Collection(name string) slog.Attr  { return slog.String(KeyCollection, name) }
func Backend(name string) slog.Attr     { return slog.String(KeyBackend, name) }
func Tool(name string) slog.Attr        { return slog.String(KeyTool, name) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Count(n int) slog.Attr             { return slog.Int(KeyCount, n) }
func Duration(d time.Duration) slog.Attr { return DurationMS(float64(d.Microseconds()) / 1000) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
