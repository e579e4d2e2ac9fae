// Package version provides build and version information for the FNOL simulator.
package version

// Version is the current release version of fnolsim.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/FNOLSimulator/internal/version.Version=x.y.z"
var Version = "0.1.0"
