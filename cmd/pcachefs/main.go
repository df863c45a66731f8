// Command pcachefs mounts a persistently caching, read-only FUSE mirror of
// a directory tree, as described by internal/engine and internal/fusefs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
