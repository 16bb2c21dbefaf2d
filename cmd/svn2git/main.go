// Command svn2git converts Subversion dump files into a Git object
// graph, applying the path-mapping, history-relinking and merge
// reconstruction policies of an XML rules file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
