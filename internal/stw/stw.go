// Package stw freezes every other thread executing Go code while live
// instruction bytes are rewritten. It drives the runtime's own
// stop-the-world machinery: with the world stopped nothing else runs, so a
// patch becomes visible to all threads as a single event.
//
// Building against Go 1.23 or newer requires -ldflags=-checklinkname=0, the
// same relaxation other code-patching engines ask for.
package stw

import (
	"runtime"
	"sync/atomic"

	"github.com/pkg/errors"
	_ "unsafe" // go:linkname
)

// ErrNested means a freeze was requested while one is already in effect.
var ErrNested = errors.New("world is already frozen")

type stwReason uint8

// Mirrors runtime.worldStop.
type worldStop struct {
	reason           stwReason
	startedStopping  int64
	finishedStopping int64
	stoppedRunning   int64
}

//go:linkname stopTheWorld runtime.stopTheWorld
func stopTheWorld(reason stwReason) worldStop

//go:linkname startTheWorld runtime.startTheWorld
func startTheWorld(w worldStop)

var frozen atomic.Bool

// World represents a stopped world. It must be thawed by the same goroutine
// that froze it.
type World struct {
	ws worldStop
}

// Freeze stops every thread in the process except the calling one. The
// calling goroutine is pinned to its thread for the duration. Freeze must
// never be called with the world already frozen, from a signal handler, or
// while holding locks a stopped goroutine might own.
func Freeze() (*World, error) {
	if !frozen.CompareAndSwap(false, true) {
		return nil, ErrNested
	}
	runtime.LockOSThread()
	return &World{ws: stopTheWorld(0)}, nil
}

// Thaw resumes the world.
func (w *World) Thaw() {
	startTheWorld(w.ws)
	runtime.UnlockOSThread()
	frozen.Store(false)
}
