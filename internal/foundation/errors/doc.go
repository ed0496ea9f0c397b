// Package errors provides the classified error primitives used across postbuilder.
//
// Key features:
//   - ErrorCategory: broad classification (not_found, references, tooling, external_tool, content, ...)
//   - ClassifiedError: structured error with category, message, cause and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - CLIErrorAdapter: one-line diagnostics and exit codes for the CLI
//
// Domain packages keep their own sentinel errors and attach them as the cause,
// so both errors.Is (kind) and AsClassified (category, context) work:
//
//	err := errors.NotFoundError("canonical figure missing").
//		WithCause(assets.ErrMissingCanonicalFigure).
//		WithContext("figure", path).
//		Build()
package errors
