package post

import "errors"

var (
	// ErrMissingDocument is returned when the post source does not exist.
	ErrMissingDocument = errors.New("post source not found")
	// ErrMissingTemplate is returned when the page template does not exist.
	ErrMissingTemplate = errors.New("template not found")
	// ErrMissingTitle is returned when a post has no level-1 heading.
	ErrMissingTitle = errors.New("post has no title")
	// ErrRendererNotFound is returned when the renderer binary is not on PATH.
	ErrRendererNotFound = errors.New("renderer not found")
	// ErrRender is returned when the renderer exits abnormally.
	ErrRender = errors.New("render failed")
)
