package robot

import _ "embed"

// Version is the release of the robot module.
//
//go:embed VERSION
var Version string
