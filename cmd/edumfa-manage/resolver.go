package main

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edumfa/edumfa-go/internal/config"
	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/registry"
	"github.com/edumfa/edumfa-go/internal/resolvers"
)

var resolverCmd = &cobra.Command{
	Use:   "resolver",
	Short: "Manage resolvers",
}

var resolverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured resolvers",
	RunE:  runWithServices(runResolverList),
}

var resolverTypesCmd = &cobra.Command{
	Use:               "types",
	Short:             "List the available resolver types",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headerStyle.Render("Resolver types"))
		for _, resolverType := range resolvers.Types() {
			descriptor, err := resolvers.Get(resolverType)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  %s %s\n", badgeStyle.Render(descriptor.Type), mutedStyle.Render(descriptor.Description))
		}
		return nil
	},
}

var resolverDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a resolver that is not part of any realm",
	Args:  cobra.ExactArgs(1),
	RunE: runWithServices(func(ctx context.Context, cmd *cobra.Command, args []string, services *config.Services) error {
		if err := services.Registry.DeleteResolver(ctx, args[0]); err != nil {
			return err
		}
		services.Cache.InvalidateResolver(args[0])
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Deleted resolver %s", args[0])))
		return nil
	}),
}

func runResolverList(_ context.Context, cmd *cobra.Command, _ []string, services *config.Services) error {
	resolverType, _ := cmd.Flags().GetString("type")
	printPasswords, _ := cmd.Flags().GetBool("print-passwords")
	capabilityNames, _ := cmd.Flags().GetStringSlice("capability")

	capabilities, err := parseCapabilities(capabilityNames)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	snapshot := services.Registry.Current()
	registrations := services.Registry.ListResolvers(registry.ListOptions{Type: resolverType, Censor: !printPasswords})
	if len(capabilities) > 0 {
		registrations = slices.DeleteFunc(registrations, func(registration models.ResolverRegistration) bool {
			instance, _ := snapshot.Resolver(registration.Name)
			return !hasCapabilities(instance, capabilities)
		})
	}

	if len(registrations) == 0 {
		fmt.Fprintln(out, infoStyle.Render("No resolvers configured"))
		return nil
	}

	fmt.Fprintln(out, titleStyle.Render("Resolvers"))
	for _, registration := range registrations {
		status := successStyle.Render("ready")
		instance, _ := snapshot.Resolver(registration.Name)
		if instance == nil {
			status = errorStyle.Render("unavailable")
		}
		fmt.Fprintf(out, "%s %s %s\n",
			headerStyle.Render(registration.Name),
			badgeStyle.Render(registration.Type),
			status)
		fmt.Fprintf(out, "  priority: %d\n", registration.EffectivePriority())
		if instance != nil {
			fmt.Fprintf(out, "  capabilities: %v\n", instance.GetCapabilities())
		}
		if realms := snapshot.RealmsForResolver(registration.Name); len(realms) > 0 {
			fmt.Fprintf(out, "  realms: %v\n", realms)
		}

		keys := make([]string, 0, len(registration.Data))
		for key := range registration.Data {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(out, "  %s: %v\n", mutedStyle.Render(key), registration.Data[key])
		}
	}
	return nil
}

func parseCapabilities(names []string) ([]models.ResolverCapability, error) {
	capabilities := make([]models.ResolverCapability, 0, len(names))
	for _, name := range names {
		capability, err := models.GetCapabilityFromString(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		capabilities = append(capabilities, capability)
	}
	return capabilities, nil
}

// hasCapabilities reports whether instance offers every capability. An
// unavailable resolver offers none.
func hasCapabilities(instance models.ResolverImpl, capabilities []models.ResolverCapability) bool {
	if instance == nil {
		return len(capabilities) == 0
	}
	for _, capability := range capabilities {
		if !instance.HasCapability(capability) {
			return false
		}
	}
	return true
}

func init() {
	resolverListCmd.Flags().StringP("type", "t", "", "Only list resolvers of this type")
	resolverListCmd.Flags().BoolP("print-passwords", "p", false, "Do not censor secrets")
	resolverListCmd.Flags().StringSliceP("capability", "c", nil, "Only list resolvers offering these capabilities")

	resolverCmd.AddCommand(resolverListCmd)
	resolverCmd.AddCommand(resolverTypesCmd)
	resolverCmd.AddCommand(resolverDeleteCmd)
	rootCmd.AddCommand(resolverCmd)
}
