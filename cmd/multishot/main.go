// Package main provides multishot - viewport screenshots of web pages.
//
// Usage:
//
//	multishot [flags] <target> <WIDTHxHEIGHT> [job flags]
//	multishot [flags] [ <target> <WIDTHxHEIGHT> [job flags] ] ... [job flags]
//
// Examples:
//
//	multishot page.html 1280x800
//	multishot [ page.html 1280x800 ] [ page.html 375x667 ] --out shots
package main

import (
	"os"

	"multishot/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
