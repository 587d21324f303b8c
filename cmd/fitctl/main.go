// Command fitctl seeds and maintains a fitcircle database.
package main

import (
	"os"

	"github.com/fitcircle/fitcircle/cli"
)

func main() {
	os.Exit(cli.Execute())
}
