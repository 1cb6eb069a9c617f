//go:build !windows

package util

// StartedFromGUI reports whether the process was launched from a desktop
// shell rather than a terminal. Outside Windows there is no reliable signal,
// so it is always false.
func StartedFromGUI() bool { return false }
