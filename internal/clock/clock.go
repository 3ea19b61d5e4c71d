// Package clock indirects time.Now so tests can pin the current time.
package clock

import "time"

// NowFunc returns the current time; override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }
