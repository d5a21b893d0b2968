package core

import "runtime"

// YieldFunc is called at cooperative suspension points inside long-running
// streams so the serving loop never waits on a large job for more than one
// batch.
type YieldFunc func()

// Yield is the default YieldFunc.
func Yield() {
	runtime.Gosched()
}
