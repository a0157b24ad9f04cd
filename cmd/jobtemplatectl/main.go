// Command jobtemplatectl manages job templates on a running jobtemplates server.
package main

import (
	"fmt"
	"os"
)

// Version information (set by build)
var Version = "dev"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
