// Package stacktrace trims raw goroutine stacks down to frames inside this module.
package stacktrace

import "strings"

// InternalPaths returns "internal/...go:line" entries found in a debug.Stack dump.
func InternalPaths(stack []byte) []string {
	var paths []string
	for _, line := range strings.Split(string(stack), "\n") {
		line = strings.TrimSpace(line)

		_, rest, ok := strings.Cut(line, "/internal/")
		if !ok {
			continue
		}

		file, _, _ := strings.Cut(rest, " ")
		if !strings.Contains(file, ".go:") {
			continue
		}

		paths = append(paths, "internal/"+file)
	}
	return paths
}
