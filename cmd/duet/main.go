// Command duet is a shared task tracker for Ray and Claude.
package main

import (
	"os"

	"github.com/mesh-intelligence/duet/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
