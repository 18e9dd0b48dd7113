// Package transform wraps third-party content transforms behind one contract.
//
// An Adapter rewrites an in-memory Asset. A Chain pipes an Asset through
// adapters in order; the first failing adapter aborts that file only and the
// caller moves on to the next file. Failures surface as *TransformError
// carrying the file and, when the underlying library reports one, the line.
//
// Adapters keep no per-file state, so one Chain may serve concurrent tasks.
package transform
