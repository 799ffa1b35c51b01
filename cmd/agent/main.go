// Command agent runs the ITMO Moodle agent HTTP service and its
// administrative tasks.
package main

import (
	"os"

	"github.com/guiqiqi/itmo-moodle-agent/version"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = version.Get(serviceName, "").String()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
