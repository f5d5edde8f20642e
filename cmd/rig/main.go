// Command rig runs commands and setup tasks on remote hosts over SSH.
package main

import "github.com/rileyhilliard/rig/internal/cli"

// Stamped by release builds from git:
//
//	go build -ldflags "-X main.version=$(git describe --tags) \
//	  -X main.commit=$(git rev-parse --short HEAD) \
//	  -X main.date=$(date -u +%Y-%m-%d)" ./cmd/rig
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	cli.Execute()
}
