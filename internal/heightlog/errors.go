package heightlog

import "errors"

var (
	// ErrNotFound is returned by a Store when no document has been written yet.
	ErrNotFound = errors.New("heights document not found")

	// ErrDocumentCorrupt marks a document that exists but cannot be decoded or
	// fails validation. The recorder recovers from it by moving the file aside.
	ErrDocumentCorrupt = errors.New("heights document corrupt")

	// ErrPersistence marks a failure to read or write the document. It is the
	// only recorder failure that must fail the tick.
	ErrPersistence = errors.New("heights document persistence failed")
)
