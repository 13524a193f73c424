package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/avlane/chatterm/internal/api"
	"github.com/avlane/chatterm/internal/chat"
)

var (
	askThread string
	askModel  string
	askText   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question on a thread and stream the answer",
	Long: `Send one question to a thread and stream the reply to stdout.

Examples:
  chatterm ask --thread 4f1c… "What is the capital of France?"
  chatterm ask "summarize our last discussion"      # most recent thread
  chatterm ask -t 4f1c… --text "plain output" | less`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askThread, "thread", "t", "", "Thread id (default: most recently active)")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "Model id (default from config)")
	askCmd.Flags().BoolVar(&askText, "text", false, "Output plain text instead of rendered markdown")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	thread, err := a.resolveThread(ctx, askThread)
	if err != nil {
		return err
	}

	// Markdown rendering needs the whole reply; plain mode streams chunks
	// as they arrive instead.
	useMarkdown := !askText && term.IsTerminal(int(os.Stdout.Fd()))

	var opts []chat.ControllerOption
	if !useMarkdown {
		opts = append(opts, chat.WithDeltaHook(func(_, text string) {
			fmt.Print(text)
		}))
	}
	controller := a.controller(opts...)

	if err := controller.Start(ctx, thread.ID, question, a.model(askModel)); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return errors.New("token rejected by the backend; log in again and update CHATTERM_TOKEN")
		}
		return err
	}

	reply, ok := a.acc.LastMessage(thread.ID)
	if !ok || reply.Role != chat.RoleAssistant {
		// A stop before the first delta leaves only the question behind.
		fmt.Fprintln(os.Stderr, "(no reply)")
		return nil
	}

	if !useMarkdown {
		fmt.Println()
		return nil
	}
	return renderMarkdown(reply.Content)
}

func renderMarkdown(content string) error {
	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && w < width {
		width = w
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	out, err := renderer.Render(content)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	fmt.Print(out)
	return nil
}
