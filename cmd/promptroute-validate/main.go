// Command promptroute-validate checks a routing configuration file and
// prints a summary. Exit code 0 means the config is valid, 1 means it is
// not (or could not be read).
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/promptroute/promptroute/config"
)

const usage = `Usage: promptroute-validate <config-path>

Validates a promptroute configuration file: structural schema first, then
semantic cross-reference checks. Prints a summary on success; errors and
their details go to standard error.

Options:
  -h, --help   show this help and exit
`

func main() {
	if len(os.Args) != 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	arg := os.Args[1]
	if arg == "-h" || arg == "--help" {
		fmt.Print(usage)
		return
	}

	start := time.Now()
	cfg, err := config.Load(arg)
	elapsed := time.Since(start)
	if err != nil {
		report(err)
		os.Exit(1)
	}

	fmt.Printf("%s: valid (version %s, %d prompts, %d providers, %d schemas, %dms)\n",
		arg, cfg.Version, len(cfg.Prompts), len(cfg.Providers),
		len(cfg.ResponseSchemas), elapsed.Milliseconds())
}

func report(err error) {
	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "invalid configuration (%d error(s)):\n", len(verr.Errors))
	for _, e := range verr.Errors {
		fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Code, e.Message)
		if len(e.Details) > 0 {
			details, _ := json.Marshal(e.Details)
			fmt.Fprintf(os.Stderr, "    details: %s\n", details)
		}
	}
}
