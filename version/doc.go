// Package version reports the xpdflow build version shown by the control
// surface. Version and Commit are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/xpdflow/version.Version=0.3.0"
//
// Without them the VCS stamp of the main module is used.
package version
