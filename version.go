// Package ragent holds the release version of the ragent module.
package ragent

// Version is the current version of ragent.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
