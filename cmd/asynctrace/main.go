// asynctrace traces asynchronous file-system operations and prints the
// recorded activity snapshot.
package main

import "github.com/hupe1980/asynctrace/internal/cli"

func main() {
	cli.Execute()
}
