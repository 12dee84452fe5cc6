// Package client embeds the browser script served under /assets/.
package client

import (
	"embed"
	"io/fs"
)

//go:embed src/*.js
var assets embed.FS

// ScriptName is the wizard client script's file name.
const ScriptName = "wizard.js"

// Assets returns the embedded files rooted at src.
func Assets() fs.FS {
	fsys, err := fs.Sub(assets, "src")
	if err != nil {
		panic(err)
	}
	return fsys
}
