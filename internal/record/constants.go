// Package record defines the document model stored by NimbusDB and its
// newline-delimited JSON encoding.
package record

// Reserved field names. The engine owns these fields; application documents
// must not manage them directly.
const (
	// IDField holds the unique document identifier.
	IDField = "_id"
	// RemovedField marks a tombstone line.
	RemovedField = "_removed"
	// CreatedField holds the creation time in Unix milliseconds.
	CreatedField = "_ctime"
	// UpdatedField holds the last update time in Unix milliseconds.
	UpdatedField = "_atime"
)

// Reserved lists every engine-owned field name.
var Reserved = []string{IDField, RemovedField, CreatedField, UpdatedField}

// Newline terminates every encoded document.
const Newline = '\n'
