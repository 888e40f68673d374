package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edumfa/edumfa-go/internal/common"
	"github.com/edumfa/edumfa-go/internal/config"
	"github.com/edumfa/edumfa-go/internal/events"
)

var counterCmd = &cobra.Command{
	Use:   "counter",
	Short: "Read counters and trigger counting events",
}

var counterReadCmd = &cobra.Command{
	Use:   "read <name>...",
	Short: "Show the value of counters",
	Args:  cobra.MinimumNArgs(1),
	RunE: runWithServices(func(ctx context.Context, cmd *cobra.Command, args []string, services *config.Services) error {
		for _, name := range common.Unique(args...) {
			value, err := services.Store.ReadCounter(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", headerStyle.Render(name), value)
		}
		return nil
	}),
}

var counterResetCmd = &cobra.Command{
	Use:   "reset <name>",
	Short: "Reset a counter to zero",
	Args:  cobra.ExactArgs(1),
	RunE: runWithServices(func(ctx context.Context, cmd *cobra.Command, args []string, services *config.Services) error {
		if err := services.Store.ResetCounter(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Counter %s reset", args[0])))
		return nil
	}),
}

var counterTriggerCmd = &cobra.Command{
	Use:   "trigger <event>",
	Short: "Run the configured event definitions of an event",
	Args:  cobra.ExactArgs(1),
	RunE: runWithServices(func(ctx context.Context, cmd *cobra.Command, args []string, services *config.Services) error {
		position, _ := cmd.Flags().GetString("position")

		definitions, err := services.Store.ListEvents(ctx)
		if err != nil {
			return err
		}
		ran, err := services.Events.Trigger(ctx, args[0], position, definitions)
		out := cmd.OutOrStdout()
		for _, name := range ran {
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Ran %s", name)))
		}
		if len(ran) == 0 && err == nil {
			fmt.Fprintln(out, infoStyle.Render(fmt.Sprintf("No event definitions for %s at %s", args[0], position)))
		}
		return err
	}),
}

func init() {
	counterTriggerCmd.Flags().StringP("position", "p", events.PositionPost, "Event position (pre or post)")

	counterCmd.AddCommand(counterReadCmd)
	counterCmd.AddCommand(counterResetCmd)
	counterCmd.AddCommand(counterTriggerCmd)
	rootCmd.AddCommand(counterCmd)
}
