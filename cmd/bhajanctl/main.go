// Command bhajanctl is the command line front end of a BhajanBook server. It searches the catalog with an on-disk
// offline snapshot as fallback and edits session playlists
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
