// Package main provides the entry point for the product crawler CLI.
//
// Usage:
//
//	crawler query --query laptops
//	crawler crawl --start-urls https://www.daraz.pk/
//
// See --help for all available options.
package main

func main() {
	Execute()
}
