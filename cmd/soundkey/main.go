// Command soundkey emits and verifies acoustic login proofs and runs the
// frequency-triggered action listener
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lixenwraith/soundkey/config"
)

const usage = `Usage: soundkey [-debug] <command> [flags]

Commands:
  emit      play a raw hex payload (empty plays the demo sequence)
  prove     play an account's registered sound
  verify    listen and match an account's sound
  tone      play a single test tone
  listen    listen continuously and fire mapped actions
  mappings  list, add, edit or delete frequency mappings
  attest    obtain or clear the signer attestation
  serve     run the local HTTP control API
`

var debugFlag = flag.Bool("debug", false, "Write logs to logs/soundkey.log")

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"emit":     runEmit,
	"prove":    runProve,
	"verify":   runVerify,
	"tone":     runTone,
	"listen":   runListen,
	"mappings": runMappings,
	"attest":   runAttest,
	"serve":    runServe,
}

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg := config.Load()
	if logFile := setupLogging(*debugFlag || cfg.Debug); logFile != nil {
		defer logFile.Close()
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = cmd(ctx, a, flag.Args()[1:])
	stop()
	a.close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
