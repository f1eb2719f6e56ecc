package web

import "embed"

// Content holds the embedded web frontend: the main view (index.html), the
// selected-assets overview (selected.html) and their shared script and styles.
//
//go:embed index.html selected.html app.js styles.css
var Content embed.FS
