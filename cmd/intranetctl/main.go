// Command intranetctl runs one-off operations against the intranet
// database: migrations, content seeding and admin bootstrap.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
