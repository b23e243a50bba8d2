// internal/version/version.go
package version

// Version is the released version string, overridable at link time.
var Version = "0.1.0"
