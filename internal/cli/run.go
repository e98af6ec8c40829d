package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smithers-ai/smithers/pkg/agent"
)

var (
	runSessionKey string
	runPreset     string
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a single prompt and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runOnce,
}

func init() {
	runCmd.Flags().StringVar(&runSessionKey, "session", "cli-default", "session key to run under")
	runCmd.Flags().StringVar(&runPreset, "preset", "", "system prompt preset name")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	prompt := strings.Join(args, " ")

	outcome, err := a.runner.RunWithContext(cmd.Context(), agent.RunParams{
		Prompt:     prompt,
		SessionKey: runSessionKey,
		Config:     a.runConfig(runPreset),
		WorkingDir: a.config().Tools.WorkspaceDir,
	})
	if err != nil {
		return err
	}

	switch outcome.Status {
	case agent.StatusDone:
		fmt.Fprintln(cmd.OutOrStdout(), outcome.Text)
		return nil
	case agent.StatusCancelled:
		return fmt.Errorf("run cancelled")
	default:
		return fmt.Errorf("run failed: %s", outcome.Reason)
	}
}
