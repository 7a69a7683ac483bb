package ingest

import "errors"

var (
	// ErrMediaTypeNotAllowed is returned when an upload's media type is
	// not in the configured allow-list (spec.md §4.5 step 1).
	ErrMediaTypeNotAllowed = errors.New("ingest: media type is not in the allow-list")
	// ErrFileTooLarge is returned when an upload exceeds MaxUploadBytes.
	ErrFileTooLarge = errors.New("ingest: file exceeds the maximum upload size")
	// ErrSecurityRejected is returned when the malware scanner returns a
	// MALICIOUS verdict (spec.md §4.4 policy table, scenario S3).
	ErrSecurityRejected = errors.New("ingest: malware scanner flagged this document as malicious")
	// ErrNotOwner names the case of a caller that isn't a document's owner
	// attempting an owner-only operation. No function in this package
	// returns it.
	ErrNotOwner = errors.New("ingest: caller does not own this document")
)
