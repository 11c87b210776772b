// Package guard provides a non-blocking exclusive-access flag for state that
// is owned by the render thread but may be re-entered from callbacks.
package guard

import "sync/atomic"

// Flag is a try-acquire lock. The zero value is released.
type Flag struct {
	held atomic.Bool
}

// TryAcquire takes the flag and reports whether it was free.
// It never blocks.
func (f *Flag) TryAcquire() bool {
	return f.held.CompareAndSwap(false, true)
}

// Release frees the flag.
func (f *Flag) Release() {
	f.held.Store(false)
}

// Held reports whether the flag is currently taken.
func (f *Flag) Held() bool {
	return f.held.Load()
}
