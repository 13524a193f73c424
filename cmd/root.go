package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatterm",
	Short: "Terminal client for the thread-chat backend",
	Long: `chatterm talks to the chat backend from your terminal: one-shot
questions, interactive chat sessions, and search over your local
transcript history.

Examples:
  chatterm threads                          # list your conversation threads
  chatterm ask --thread <id> "why is the sky blue?"
  chatterm chat --thread <id>               # interactive session
  chatterm search "rate limit"              # search local history`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
