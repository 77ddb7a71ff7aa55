// Cindervault daemon.
//
// Usage:
//
//	cindervaultd --admin <hex>   First run: pin the administrator
//	cindervaultd                 Run the vault node
//	cindervaultd --help          Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cinderlabs/cindervault/config"
	"github.com/cinderlabs/cindervault/internal/node"
)

func main() {
	cfg, flags, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if flags.Help {
		config.Usage()
		return
	}

	n, err := node.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		n.Stop()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	n.Stop()
}
