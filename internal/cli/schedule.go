package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smithers-ai/smithers/pkg/agent"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect and trigger configured schedules",
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured schedules",
	RunE:  runScheduleList,
}

var scheduleTriggerCmd = &cobra.Command{
	Use:   "trigger [name]",
	Short: "Run a configured schedule once, immediately",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleTrigger,
}

func init() {
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleTriggerCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	printer := NewPrinter(cmd.OutOrStdout())
	if len(a.config().Schedules) == 0 {
		printer.Info("no schedules configured")
		return nil
	}

	for _, s := range a.config().Schedules {
		sessionKey := s.SessionKey
		if sessionKey == "" {
			sessionKey = "cron-" + s.Name
		}
		printer.Tool("%s  %s  session=%s  %q", s.Name, s.Schedule, sessionKey, s.Prompt)
	}
	return nil
}

func runScheduleTrigger(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	name := args[0]
	printer := NewPrinter(cmd.OutOrStdout())

	for _, s := range a.config().Schedules {
		if s.Name != name {
			continue
		}

		sessionKey := s.SessionKey
		if sessionKey == "" {
			sessionKey = "cron-" + s.Name
		}

		outcome, err := a.runner.Run(agent.RunParams{
			Prompt:     s.Prompt,
			SessionKey: sessionKey,
			Config:     a.runConfig(""),
			WorkingDir: a.config().Tools.WorkspaceDir,
		})
		if err != nil {
			return err
		}

		switch outcome.Status {
		case agent.StatusDone:
			printer.Assistant(outcome.Text)
		case agent.StatusCancelled:
			printer.Info("run cancelled")
		case agent.StatusFailed:
			return fmt.Errorf("schedule %q failed: %s", name, outcome.Reason)
		}
		return nil
	}

	return fmt.Errorf("schedule %q is not configured", name)
}
