// dptlink brings up an IPv6 link-local link to a device over USB and
// forwards a local IPv4 port to it.
package main

import (
	"context"
	"fmt"
	"os"

	"dptlink/cmd"
	"dptlink/internal/signals"
	"dptlink/util"
)

func main() {
	ctx, release := signals.ShutdownContext(context.Background(), util.NewLogger(1))

	err := cmd.Execute(ctx, os.Args[1:])
	release()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dptlink: %v\n", err)
		os.Exit(1)
	}
}
