//go:build prod

package build

// Set with -ldflags "-X github.com/apex-wang/AUIKit/build.Version=..." at release time.
var Name = "auikitd"
var Version = "v0.0.0-production"
var BuildDate = "unknown"
var Commit = "unknown"
var Mode = ModeProduction
