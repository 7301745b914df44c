// SPDX-License-Identifier: MPL-2.0

package platform

import "runtime"

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// Current returns the host platform in "GOOS/GOARCH" form, the shape used
// when tagging cache entries with the environment they were resolved on.
func Current() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
