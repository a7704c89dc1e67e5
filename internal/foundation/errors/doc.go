// Package errors provides the classified error primitives used across exposetext.
//
// Errors carry a category (validation, format, encoding, filesystem, …), a severity and a
// retry hint, plus free-form context. Sentinel errors from the engine packages are wrapped
// as the cause so callers can still match them with errors.Is.
//
// Example usage:
//
//	err := errors.WrapError(zipErr, errors.CategoryFormat, "document.xml missing").
//		WithContext("path", path).
//		Build()
package errors
