package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for PageGuard.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pageguard",
		Short: "Security backend for the PageGuard browser extension",
		Long: `PageGuard serves the analysis API used by the PageGuard browser
extension. It inspects page signals with a configured LLM provider
(Gemini or Groq), checks email addresses against breach databases,
and enforces per-client daily usage quotas.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
