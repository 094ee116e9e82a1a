/*
main.go - Application entry point

PURPOSE:
  Command-line front end for the fiscal PI engine. Runs the HTTP server and
  population scheduler, and exposes the same operations as one-shot
  commands for scripting.

COMMANDS:
  serve                      HTTP API plus the cron populate trigger
  label [date]               Label for a date (default: today)
  schedule [start]           Expanded increment, as text or --ics
  populate [start]           Write an increment to the calendar
  runs                       Population audit trail
  import-adjustments <ics>   Add holiday weeks from an iCalendar feed

GLOBAL FLAGS:
  --config   YAML config path (default: piengine.yaml, created on first run)
  --db       Override the config's SQLite path (":memory:" for RAM)
  --verbose  Debug logging

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM serve stops accepting connections, waits up to 30s for
  active requests, stops the scheduler and closes the database.

SEE ALSO:
  - config/config.go: Config file layout
  - api/server.go: Router configuration
*/
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
