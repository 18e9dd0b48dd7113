// Package errors provides the classified error primitives used across sitepipe.
//
// A ClassifiedError carries a category (config, transform, filesystem, ...), a
// severity and free-form context. Severity drives pipeline control flow: a fatal
// error returned by a precondition task (for example cleaning the destination)
// stops the pipeline, while transform errors stay local to the file that failed.
//
// Example usage:
//
//	err := errors.FileSystemError("clean destination").
//		WithCause(removeErr).
//		WithContext("path", destRoot).
//		Fatal().
//		Build()
package errors
