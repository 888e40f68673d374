package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edumfa/edumfa-go/internal/config"
	"github.com/edumfa/edumfa-go/internal/models"
)

var realmCmd = &cobra.Command{
	Use:   "realm",
	Short: "Manage realms",
}

var realmSetCmd = &cobra.Command{
	Use:   "set <realm> <resolver[:priority]>...",
	Short: "Create or replace the resolvers of a realm",
	Args:  cobra.MinimumNArgs(2),
	RunE: runWithServices(func(ctx context.Context, cmd *cobra.Command, args []string, services *config.Services) error {
		members, err := parseRealmMembers(args[1:])
		if err != nil {
			return err
		}
		realm, err := services.Registry.SetRealm(ctx, args[0], members)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Realm %s saved with %d resolvers", realm.Name, len(realm.Resolvers))))
		return nil
	}),
}

var realmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List realms and their resolvers in search order",
	RunE: runWithServices(func(_ context.Context, cmd *cobra.Command, _ []string, services *config.Services) error {
		out := cmd.OutOrStdout()
		snapshot := services.Registry.Current()
		names := snapshot.RealmNames()
		if len(names) == 0 {
			fmt.Fprintln(out, infoStyle.Render("No realms configured"))
			return nil
		}

		fmt.Fprintln(out, titleStyle.Render("Realms"))
		for _, name := range names {
			line := headerStyle.Render(name)
			if name == snapshot.DefaultRealm() {
				line += " " + badgeStyle.Render("default")
			}
			fmt.Fprintln(out, line)
			for _, member := range snapshot.Members(name) {
				fmt.Fprintf(out, "  %s %s\n", member.Name, mutedStyle.Render(fmt.Sprintf("(priority %d)", member.Priority)))
			}
		}
		return nil
	}),
}

var realmDeleteCmd = &cobra.Command{
	Use:   "delete <realm>",
	Short: "Delete a realm",
	Args:  cobra.ExactArgs(1),
	RunE: runWithServices(func(ctx context.Context, cmd *cobra.Command, args []string, services *config.Services) error {
		if err := services.Registry.DeleteRealm(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Deleted realm %s", args[0])))
		return nil
	}),
}

var realmDefaultCmd = &cobra.Command{
	Use:   "default <realm>",
	Short: "Make a realm the default realm",
	Args:  cobra.ExactArgs(1),
	RunE: runWithServices(func(ctx context.Context, cmd *cobra.Command, args []string, services *config.Services) error {
		if err := services.Registry.SetDefaultRealm(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Default realm is now %s", models.NormalizeRealm(args[0]))))
		return nil
	}),
}

// parseRealmMembers reads "name" or "name:priority" arguments.
func parseRealmMembers(args []string) ([]models.RealmResolver, error) {
	members := make([]models.RealmResolver, 0, len(args))
	for _, arg := range args {
		name, priorityText, hasPriority := strings.Cut(arg, ":")
		member := models.RealmResolver{Name: strings.TrimSpace(name)}
		if hasPriority {
			priority, err := strconv.Atoi(strings.TrimSpace(priorityText))
			if err != nil {
				return nil, fmt.Errorf("%w: priority of resolver %s: %v", models.ErrInvalidParameter, name, err)
			}
			member.Priority = &priority
		}
		members = append(members, member)
	}
	return members, nil
}

func init() {
	realmCmd.AddCommand(realmSetCmd)
	realmCmd.AddCommand(realmListCmd)
	realmCmd.AddCommand(realmDeleteCmd)
	realmCmd.AddCommand(realmDefaultCmd)
	rootCmd.AddCommand(realmCmd)
}
