// ABOUTME: Version constants
// ABOUTME: Identifies the player build to logs and the catalog server
package version

const (
	Product      = "Wavedeck Player"
	Manufacturer = "Wavedeck"
	Version      = "0.3.0"
)
