package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edumfa/edumfa-go/internal/config"
	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/users"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Look up and manage users in the configured resolvers",
}

var userShowCmd = &cobra.Command{
	Use:   "show <login>",
	Short: "Resolve a user and show its attributes and tokens",
	Args:  cobra.ExactArgs(1),
	RunE: runWithServices(func(ctx context.Context, cmd *cobra.Command, args []string, services *config.Services) error {
		identity, err := locateUser(ctx, cmd, args[0], services)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render(identity.String()))
		fmt.Fprintf(out, "  uid: %s\n  resolver type: %s\n", identity.UID, identity.ResolverType)
		if realms := services.Users.GetUserRealms(identity); len(realms) > 0 {
			fmt.Fprintf(out, "  realms: %s\n", strings.Join(realms, ", "))
		}

		info, err := services.Users.Info(ctx, identity)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, headerStyle.Render("Attributes"))
		printSorted(out, info)

		owners, err := services.Store.GetTokenOwners(ctx, identity.UID, identity.Resolver)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, headerStyle.Render("Tokens"))
		if len(owners) == 0 {
			fmt.Fprintln(out, mutedStyle.Render("  none"))
		}
		for _, owner := range owners {
			fmt.Fprintf(out, "  %s %s\n", owner.Serial, mutedStyle.Render(fmt.Sprintf("(token %d)", owner.TokenID)))
		}
		return nil
	}),
}

var userCheckCmd = &cobra.Command{
	Use:   "check <login>",
	Short: "Check the password of a user",
	Long:  "Check the password of a user. Without --password the password is read from standard input.",
	Args:  cobra.ExactArgs(1),
	RunE: runWithServices(func(ctx context.Context, cmd *cobra.Command, args []string, services *config.Services) error {
		identity, err := locateUser(ctx, cmd, args[0], services)
		if err != nil {
			return err
		}
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}

		loggedIn, err := services.Users.CheckPassword(ctx, identity, password)
		if err != nil {
			return err
		}
		if len(loggedIn) == 0 {
			return fmt.Errorf("password of %s rejected", identity.LoginAtRealm())
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(users.LogUsedUser(identity, "Password accepted for "+loggedIn)))
		return nil
	}),
}

var userListCmd = &cobra.Command{
	Use:   "list [key=value]...",
	Short: "Search users",
	Long: `Search users. Every key=value argument is a search criterion, "*" is
a wildcard. Without --realm or --resolver every realm is searched.`,
	RunE: runWithServices(func(ctx context.Context, cmd *cobra.Command, args []string, services *config.Services) error {
		params, err := parseAttributes(args)
		if err != nil {
			return err
		}
		search := map[string]string{}
		for key, value := range params {
			search[key] = value.(string)
		}
		if realm, _ := cmd.Flags().GetString("realm"); len(realm) > 0 {
			search["realm"] = realm
		}
		if resolver, _ := cmd.Flags().GetString("resolver"); len(resolver) > 0 {
			search["resolver"] = resolver
		}
		withAttributes, _ := cmd.Flags().GetBool("attributes")

		found, err := services.Users.GetUserList(ctx, search, nil, withAttributes)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(found) == 0 {
			fmt.Fprintln(out, infoStyle.Render("No users found"))
			return nil
		}
		for _, info := range found {
			fmt.Fprintf(out, "%s %s\n", headerStyle.Render(info.GetString("username")), badgeStyle.Render(info.GetString("resolver")))
			printSorted(out, info)
		}
		return nil
	}),
}

var userCreateCmd = &cobra.Command{
	Use:   "create <resolver> <username> [key=value]...",
	Short: "Create a user in an editable resolver",
	Args:  cobra.MinimumNArgs(2),
	RunE: runWithServices(func(ctx context.Context, cmd *cobra.Command, args []string, services *config.Services) error {
		attributes, err := parseAttributes(args[2:])
		if err != nil {
			return err
		}
		attributes["username"] = args[1]

		var password *string
		if cmd.Flags().Changed("password") {
			value, _ := cmd.Flags().GetString("password")
			password = &value
		}

		uid, err := services.Users.CreateUser(ctx, args[0], attributes, password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Created user %s in %s with uid %s", args[1], args[0], uid)))
		return nil
	}),
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <login>",
	Short: "Delete a user from an editable resolver",
	Args:  cobra.ExactArgs(1),
	RunE: runWithServices(func(ctx context.Context, cmd *cobra.Command, args []string, services *config.Services) error {
		identity, err := locateUser(ctx, cmd, args[0], services)
		if err != nil {
			return err
		}
		if err := services.Users.DeleteUser(ctx, identity); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Deleted user %s", identity)))
		return nil
	}),
}

var userAttributeCmd = &cobra.Command{
	Use:   "attribute <login> [key=value]...",
	Short: "Show, set or delete custom attributes of a user",
	Args:  cobra.MinimumNArgs(1),
	RunE: runWithServices(func(ctx context.Context, cmd *cobra.Command, args []string, services *config.Services) error {
		identity, err := locateUser(ctx, cmd, args[0], services)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		deleteKey, _ := cmd.Flags().GetString("delete")
		deleteAll, _ := cmd.Flags().GetBool("delete-all")
		if len(deleteKey) > 0 || deleteAll {
			deleted, err := services.Users.DeleteAttribute(ctx, identity, deleteKey)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Deleted %d attributes", deleted)))
		}

		attributes, err := parseAttributes(args[1:])
		if err != nil {
			return err
		}
		attributeType, _ := cmd.Flags().GetString("type")
		for key, value := range attributes {
			if err := services.Users.SetAttribute(ctx, identity, key, value.(string), attributeType); err != nil {
				return err
			}
		}

		current, err := services.Users.Attributes(ctx, identity)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Custom attributes of %s", identity)))
		values := make(map[string]any, len(current))
		for key, value := range current {
			values[key] = value
		}
		printSorted(out, values)
		return nil
	}),
}

// locateUser resolves login with the --realm and --resolver flags. The user
// must exist.
func locateUser(ctx context.Context, cmd *cobra.Command, login string, services *config.Services) (*models.Identity, error) {
	params := map[string]string{"user": login}
	if realm, _ := cmd.Flags().GetString("realm"); len(realm) > 0 {
		params["realm"] = realm
	}
	if resolver, _ := cmd.Flags().GetString("resolver"); len(resolver) > 0 {
		params["resolver"] = resolver
	}

	identity, err := services.Users.UserFromParams(ctx, params)
	if err != nil {
		return nil, err
	}
	if !identity.Exists() {
		return nil, fmt.Errorf("%w: %s", models.ErrNotUniquelyLocated, identity)
	}
	return identity, nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("password") {
		return cmd.Flags().GetString("password")
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// parseAttributes reads key=value arguments.
func parseAttributes(args []string) (models.UserInfo, error) {
	attributes := models.UserInfo{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || len(strings.TrimSpace(key)) == 0 {
			return nil, fmt.Errorf("%w: expected key=value, got %q", models.ErrInvalidParameter, arg)
		}
		attributes[strings.TrimSpace(key)] = value
	}
	return attributes, nil
}

func printSorted(out io.Writer, values map[string]any) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(out, "  %s: %v\n", mutedStyle.Render(key), values[key])
	}
}

func init() {
	for _, cmd := range []*cobra.Command{userShowCmd, userCheckCmd, userDeleteCmd, userAttributeCmd, userListCmd} {
		cmd.Flags().StringP("realm", "r", "", "Realm of the user")
		cmd.Flags().String("resolver", "", "Resolver of the user")
	}
	userCheckCmd.Flags().StringP("password", "p", "", "Password to check")
	userCreateCmd.Flags().StringP("password", "p", "", "Password of the new user")
	userListCmd.Flags().BoolP("attributes", "a", false, "Include custom attributes")
	userAttributeCmd.Flags().String("delete", "", "Delete this custom attribute")
	userAttributeCmd.Flags().Bool("delete-all", false, "Delete all custom attributes")
	userAttributeCmd.Flags().StringP("type", "t", "", "Type of the attributes being set")

	userCmd.AddCommand(userShowCmd)
	userCmd.AddCommand(userCheckCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userAttributeCmd)
	rootCmd.AddCommand(userCmd)
}
