// Package version reports the eventfeed build.
//
// Release builds set the variables with -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/eventfeed/version.Version=1.2.0" ./cmd/eventfeed
//
// Otherwise the VCS stamp recorded by the Go toolchain is used.
package version
