// Command streamplayer plays tracks whose backends may pull in further
// resources while they load or play.
//
// Usage:
//
//	streamplayer [--config file] [--debug] <command> [args]
//
// Commands:
//
//	play   <file|url>           play through the speaker or PortAudio
//	render <file|url> <out.wav> render offline into a WAV file
//	cache  list [query]         list persisted resources
//	cache  evict <key>          forget a resource
//	config init                 write the current configuration
package main

import (
	"fmt"
	"os"
)

var Version = "dev"

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
