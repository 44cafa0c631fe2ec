// Package errors provides standardized error handling for the strom engine.
//
// Errors are classified into three classes that drive handling policy:
//
//   - Transient: temporary failures that may be retried (connection loss,
//     busy endpoints, timeouts)
//   - Invalid: structural or configuration problems that retrying cannot fix
//     (unknown block definitions, malformed links, rejected properties)
//   - Fatal: unrecoverable conditions that must stop processing
//
// Components wrap errors at package boundaries using WrapTransient,
// WrapInvalid, or WrapFatal, producing messages of the form
// "component.method: action failed: <cause>". Callers inspect classification
// with IsTransient / IsInvalid / IsFatal, or errors.Is against the standard
// error variables.
package errors
