// Package util holds process-level helpers for the command entry point.
package util

import "slices"

var commands = []string{"run", "ports", "layout", "config"}

// GUIArgs rewrites the arguments of a program started by double-click so
// it opens the control panel. Arguments that already name a command are
// returned unchanged.
func GUIArgs(args []string) []string {
	if len(args) > 1 && slices.Contains(commands, args[1]) {
		return args
	}
	out := make([]string, 0, len(args)+2)
	out = append(out, args[0], "run", "--panel")
	return append(out, args[1:]...)
}
