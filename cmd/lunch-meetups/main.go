// Command lunch-meetups serves and prints lunchtime meetups collected from the
// connpass events API.
package main

import "github.com/Sternrassler/lunch-meetups/internal/cli"

func main() {
	cli.Execute()
}
