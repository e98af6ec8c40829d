package cli

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smithers-ai/smithers/pkg/agent"
)

var (
	chatSessionKey string
	chatPreset     string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session with the agent. The conversation
is persisted under the session key, so quitting and restarting resumes
where you left off. Type "exit" or "quit" to leave.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionKey, "session", "cli-default", "session key to chat under")
	chatCmd.Flags().StringVar(&chatPreset, "preset", "", "system prompt preset name")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.startScheduler(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	printer := NewPrinter(cmd.OutOrStdout())
	printer.Info("smithers %s, session %q. Type exit or quit to leave.", version, chatSessionKey)

	// Ctrl-C aborts the in-flight run instead of killing the REPL
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			a.runner.Abort(chatSessionKey)
		}
	}()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		printer.Prompt()
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		outcome, err := a.runner.Run(agent.RunParams{
			Prompt:     line,
			SessionKey: chatSessionKey,
			Config:     a.runConfig(chatPreset),
			WorkingDir: a.config().Tools.WorkspaceDir,
		})
		if err != nil {
			printer.Error("run failed: %v", err)
			continue
		}

		switch outcome.Status {
		case agent.StatusDone:
			printer.Assistant(outcome.Text)
		case agent.StatusCancelled:
			printer.Info("run cancelled")
		case agent.StatusFailed:
			printer.Error("run failed: %s", outcome.Reason)
		}
	}

	printer.Info("bye")
	return scanner.Err()
}
