// Package version reports the build of the running agent.
//
// Version, commit and build time are stamped at link time:
//
//	go build -ldflags "-X github.com/guiqiqi/itmo-moodle-agent/version.Version=1.2.0" ./cmd/agent
package version
