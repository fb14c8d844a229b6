// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import "fmt"

// assertf panics with a formatted message. It guards programmer-contract
// violations with no defined recovery: ring exhaustion, entering before
// the context is registered, exiting a CID whose epoch precedes the
// local tail. Go has no separate release-mode no-op for assertions, so
// DEM always panics rather than silently corrupting state.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
