package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	tuichat "github.com/avlane/chatterm/internal/tui/chat"
)

var (
	chatThread string
	chatModel  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session on a thread",
	Long: `Open an interactive chat session.

Keyboard shortcuts:
  Enter   - Send message
  Esc     - Stop the in-flight generation
  Ctrl+K  - Clear conversation
  Ctrl+C  - Quit

Slash commands:
  /model [id]      - Show or switch model
  /search <query>  - Search this thread's local history
  /clear           - Clear conversation
  /quit            - Exit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatThread, "thread", "t", "", "Thread id (default: most recently active)")
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model id (default from config)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	thread, err := a.resolveThread(cmd.Context(), chatThread)
	if err != nil {
		return err
	}

	var searcher tuichat.Searcher
	if a.store != nil {
		searcher = a.store
	}
	model := tuichat.New(a.controller(), searcher, thread, a.model(chatModel))

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("failed to run chat: %w", err)
	}
	return nil
}
