package engine

import "sync/atomic"

// sessionActive is set while any engine in the process holds a session.
var sessionActive atomic.Bool

func acquireSession() bool {
	return sessionActive.CompareAndSwap(false, true)
}

func releaseSession() {
	sessionActive.Store(false)
}

// SessionActive reports whether any engine in the process is running.
func SessionActive() bool {
	return sessionActive.Load()
}
