//go:build debug

package analyzer

import "fmt"

// assert panics when cond is false. Only compiled into builds with the debug tag.
func assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("analyzer: "+format, args...))
	}
}
