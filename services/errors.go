package services

import (
	"errors"
	"fmt"
)

var (
	// ErrRemuxUnavailable means every remux backend failed or is missing;
	// the item degrades to its original container instead of failing.
	ErrRemuxUnavailable = errors.New("no remux backend succeeded")
	// ErrCoverToolsUnavailable means metaflac or every re-encode backend is
	// missing; cover normalization is inert for the process lifetime.
	ErrCoverToolsUnavailable = errors.New("required cover art tools are unavailable")
	// ErrNoCoverArt means no art could be sourced from the file, its folder
	// or the remote fetch callback.
	ErrNoCoverArt = errors.New("no cover art was found to embed")
)

// DecryptionError is fatal to the item being downloaded: either the security
// token could not be decoded or the decrypted output could not be written.
type DecryptionError struct {
	TrackID string
	Err     error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decrypt track %s: %v", e.TrackID, e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }
