package assets

import "errors"

var (
	// ErrMissingDocument is returned when the document to scan does not exist.
	ErrMissingDocument = errors.New("document not found")
	// ErrMissingSourceDir is returned when the canonical figure directory does not exist.
	ErrMissingSourceDir = errors.New("canonical source directory not found")
	// ErrNoReferencesFound is returned when the document references no assets
	// under the namespace, which almost always means a broken pattern.
	ErrNoReferencesFound = errors.New("no asset references found")
	// ErrMissingCanonicalFigure is returned when a referenced asset has no
	// canonical source. Deletions already made are not undone.
	ErrMissingCanonicalFigure = errors.New("canonical figure not found")
)
