// Command toolctl runs the tool retrieval core: it ingests tool and
// skill manifests into a vector index and serves find_tools over MCP.
package main

import (
	"fmt"
	"os"

	"github.com/suntianc/toolcore/cmd/toolctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
