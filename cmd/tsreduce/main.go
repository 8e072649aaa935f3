// Command tsreduce minimizes a directory tree against an
// interestingness test using a pool of sandboxed workers.
package main

import (
	"fmt"
	"os"

	"tsreduce/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
