// webdev serves a web application during development and in simple
// deployments.
//
// It serves published frontend build output, builds on demand when a
// request misses, and forwards everything else to the application server.
// In development mode it supervises the framework's dev server instead.
//
// Usage:
//
//	# Serve with webdev.yaml from the current directory
//	webdev run
//
//	# Supervise the dev server
//	webdev run --mode development
//
//	# Build and publish once, for CI
//	webdev build --config webdev.toml
//
//	# Show recent builds
//	webdev history --limit 10 --output json
package main

import "os"

func main() {
	os.Exit(Execute())
}
