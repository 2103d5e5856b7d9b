package linkcache

import (
	"errors"
	"fmt"

	"github.com/graphmirror/linkcache/internal/keyValStore"
)

var (
	ErrNotStarted = errors.New("linkcache: cache not started")

	errNilUpstream = errors.New("linkcache: upstream provider must not be nil")
	errNoPath      = errors.New("linkcache: no store path configured")
)

// ErrClosed reports use of the cache after Close. Operations that lose the
// store to a concurrent Close mid-flight also resolve to it.
var ErrClosed = keyValStore.ErrStoreClosed

// ErrDirectoryLocked reports that the store directory is held by another
// connection. Resolvable by closing the other handle, unlike a data error.
var ErrDirectoryLocked = keyValStore.ErrDirectoryLocked

// Phase names the cache operation step a storage failure happened in.
type Phase string

const (
	PhaseResolveRanges Phase = "resolve-ranges"
	PhaseFetchAndCache Phase = "fetch-and-cache"
	PhaseUpdateRanges  Phase = "update-ranges"
	PhaseReadMirror    Phase = "read-mirror"
	PhaseReadCache     Phase = "read-cache"
)

// StorageError wraps a persistent-store failure with the phase it occurred
// in. Upstream failures and cancellations are never wrapped in it; they
// propagate as-is.
type StorageError struct {
	Phase Phase
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure in %s: %v", e.Phase, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(phase Phase, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Phase: phase, Err: err}
}
