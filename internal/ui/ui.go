// Package ui holds the operator page served at the root path.
package ui

import _ "embed"

//go:embed index.html
var page []byte

// Page returns the joystick page. The returned slice must not be modified.
func Page() []byte {
	return page
}
