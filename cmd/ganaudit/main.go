// Command ganaudit is a thin CLI wrapper around the audit orchestration
// library: it reads a thought (from a file, --text, or stdin), drives one
// turn of the audit loop, and prints the structured JSON result. It is
// glue, not a protocol server — no HTTP, no WebSocket, no database.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
