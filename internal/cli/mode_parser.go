package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeTracker  = "tracker-service"
	ModeMigrate  = "migrate"
	ModeSimulate = "simulate"
	ModeToken    = "token"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeTracker, "tracker", "t":
		return ModeTracker, true
	case ModeMigrate, "migrator", "m":
		return ModeMigrate, true
	case ModeSimulate, "sim", "s":
		return ModeSimulate, true
	case ModeToken, "key", "k":
		return ModeToken, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `simulate --virtual`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for _, arg := range args {
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<mode>")
	}

	m, ok := isKnownMode(mode)
	if !ok {
		return "", out, fmt.Errorf("unknown mode %q", mode)
	}
	return m, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./ride-tracker --mode=<mode> [flags]

Modes:
  tracker-service    HTTP and websocket API that tracks rides and relays SOS alerts
  migrate            Apply or revert the database schema
  simulate           Run one ride tracker locally and print its timeline
  token              Mint a dev access token (PASSENGER | SUPPORT | ADMIN)

Examples:
  ./ride-tracker --mode=tracker-service --max-concurrent=150
  ./ride-tracker --mode=migrate --direction=up
  ./ride-tracker --mode=simulate --virtual --sos-at=8s
  ./ride-tracker --mode=token --user-id=<uuid> --role=PASSENGER --secret='<secret>'`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./ride-tracker --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
