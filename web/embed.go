package web

import "embed"

// DistFS contains the browser canvas client.
//
//go:embed all:dist
var DistFS embed.FS
