// Package main provides the entry point for the sitegrab CLI.
//
// sitegrab crawls a single website breadth-first, lists every resource it
// finds with its type and size, and downloads a selection of them.
//
// Usage:
//
//	sitegrab crawl https://example.com
//	sitegrab download --session <id> --category image
//
// See --help for all available options.
package main

// main is the entry point for sitegrab.
func main() {
	Execute()
}
