package ui

import "embed"

// Static holds the assets served under /static/.
//
//go:embed static
var Static embed.FS
