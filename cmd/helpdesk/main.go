// Command helpdesk is the entry point for the IT helpdesk RAG agent. It
// provides a CLI (via Cobra) for one-shot questions, knowledge-base ingestion
// and session maintenance, and an HTTP server for the query API.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/helpdesk-rag/cmd/helpdesk/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
