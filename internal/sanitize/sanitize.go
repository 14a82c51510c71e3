// Package sanitize recovers literal source text from a model completion.
package sanitize

import (
	"regexp"
	"strings"
)

// fencePattern matches a triple-backtick fence with an optional language tag
// (```js, ```typescript, ```c++) and the newline that follows it.
var fencePattern = regexp.MustCompile("(?i)```[a-z0-9_+#.-]*[ \\t]*\\n?")

// maxPasses bounds the fixpoint loop. Each pass removes at least one fence
// or stops, so this is only reached on pathological input.
const maxPasses = 16

// Completion strips markdown code fences wherever they occur and trims
// surrounding whitespace. It knows nothing about the language of the code
// and does not validate it. Completion(Completion(s)) == Completion(s).
func Completion(raw string) string {
	s := raw
	for i := 0; i < maxPasses; i++ {
		// Removing a fence can bring a stray \r next to a \n, so line
		// endings are normalised on every pass.
		next := strings.ReplaceAll(s, "\r\n", "\n")
		next = fencePattern.ReplaceAllString(next, "")
		next = strings.ReplaceAll(next, "```", "")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

// HasFences reports whether raw contains any code fence.
func HasFences(raw string) bool {
	return strings.Contains(raw, "```")
}
