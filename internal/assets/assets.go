package assets

import (
	_ "embed"
)

// ShellHTML is the outer page: address bar, error tooltip, settings panel
// and the canvas the frame is streamed to.
//
//go:embed shell.html
var ShellHTML string

// FrameScript runs in every document loaded into the frame and forwards
// uv_update window messages to the shell.
//
//go:embed frame.js
var FrameScript string

// UVConfig is the stock proxy configuration script, used when no codec
// script is configured.
//
//go:embed uv.config.js
var UVConfig string
