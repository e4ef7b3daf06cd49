// Package build holds build-time information.
package build

// Version is the application version. It defaults to "dev" and is
// overwritten by linker flags on release builds.
var Version = "dev"

// Commit is the VCS revision the binary was built from, when known.
var Commit = ""
