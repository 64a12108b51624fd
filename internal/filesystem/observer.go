package filesystem

import (
	"sync/atomic"
	"time"
)

// RetryEvent is one step of a stale handle retry loop.
type RetryEvent string

const (
	// RetryStale is recorded for every ESTALE returned by an attempt.
	RetryStale RetryEvent = "stale"
	// RetryBackoff is recorded before sleeping for another attempt.
	RetryBackoff RetryEvent = "backoff"
	// RetryRecovered is recorded when an attempt after the first succeeds.
	RetryRecovered RetryEvent = "recovered"
	// RetryExhausted is recorded when every attempt returned ESTALE.
	RetryExhausted RetryEvent = "exhausted"
)

// RetryEvents lists every event in the order a retry loop can emit them.
var RetryEvents = []RetryEvent{RetryStale, RetryBackoff, RetryRecovered, RetryExhausted}

// Observer receives filesystem measurements. The metrics package provides
// the production implementation; this package never imports it.
type Observer interface {
	// Operation records a single write or rename against a volume.
	Operation(volume, op string, took time.Duration, err error)
	// Retry records a step of a stat or open retry loop.
	Retry(volume, op string, event RetryEvent)
	// RetryDone records the wall time of a retry loop, sleeps included.
	RetryDone(volume, op string, took time.Duration)
}

type instruments struct {
	observer Observer
	volumes  *VolumeResolver
}

var current atomic.Pointer[instruments]

// Instrument installs the observer and the resolver used to label paths.
// Either may be nil; a nil observer disables recording.
func Instrument(o Observer, volumes *VolumeResolver) {
	current.Store(&instruments{observer: o, volumes: volumes})
}

// observer returns the installed observer and the volume label for path,
// or a nil observer when none is installed.
func observer(path string) (Observer, string) {
	in := current.Load()
	if in == nil || in.observer == nil {
		return nil, ""
	}
	return in.observer, in.volumes.Resolve(path)
}
