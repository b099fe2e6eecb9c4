package record

import "errors"

var (
	// ErrMissingID is returned when a document has no identifier field.
	ErrMissingID = errors.New("document has no _id field")
	// ErrInvalidID is returned when the identifier is neither a string nor a number.
	ErrInvalidID = errors.New("document _id must be a string or a number")
	// ErrReservedField is returned when application data sets an engine-owned field.
	ErrReservedField = errors.New("reserved field set by caller")
	// ErrMalformed is returned when a line is not a serialized JSON object.
	ErrMalformed = errors.New("malformed document")
)

// Document is a schemaless record: field name to JSON-compatible value.
type Document map[string]any

// Partial is a set of fields merged over an existing document by an update.
type Partial map[string]any

// Condition is an equality constraint set: every field must equal its value.
type Condition map[string]any
