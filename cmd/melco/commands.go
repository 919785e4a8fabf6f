package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/elliotchance/orderedmap"
	"github.com/spf13/cobra"

	"github.com/zberg/go-melco/internal/check"
	"github.com/zberg/go-melco/pkg/melco"
)

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(attrsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(dumpCmd)

	attrsCmd.AddCommand(attrsGetCmd)
	attrsCmd.AddCommand(attrsSetCmd)
}

// hostArg returns the optional address positional at index i.
func hostArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

var getCmd = &cobra.Command{
	Use:   "get <method> <group> [address]",
	Short: "Read one value: GETTEMP, GETSETTEMP, GETSTATE or GETMODE",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := check.ParseMethod(args[0], "")
		if err != nil {
			return err
		}
		attr := check.Attribute(m)
		if attr == "" {
			return fmt.Errorf("%s is a set method, use 'melco set'", m.Name())
		}

		client, err := newClient(hostArg(args, 2))
		if err != nil {
			return err
		}
		attrs, err := client.GetAttributes(cmd.Context(), args[1], attr)
		if err != nil {
			return err
		}
		value, ok := attrs[attr]
		if !ok {
			return fmt.Errorf("controller returned no %s for group %s", attr, args[1])
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <method> <group> <value> [address]",
	Short: "Change one value: SETTEMP, SETSTATE or SETMODE",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := check.ParseMethod(args[0], args[2])
		if err != nil {
			return err
		}
		if check.Attribute(m) != "" {
			return fmt.Errorf("%s is a read method, use 'melco get'", m.Name())
		}

		client, err := newClient(hostArg(args, 3))
		if err != nil {
			return err
		}
		res := check.Run(cmd.Context(), client, args[1], m, check.Thresholds{})
		if res.Status != check.StatusOK {
			return fmt.Errorf("%s", res.Message)
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Message)
		return nil
	},
}

var attrsCmd = &cobra.Command{
	Use:   "attrs",
	Short: "Read or write raw Mnet attributes of a group",
}

var attrsGetCmd = &cobra.Command{
	Use:   "get <group> <attribute>...",
	Short: "Read attributes by name",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient("")
		if err != nil {
			return err
		}
		attrs, err := client.GetAttributes(cmd.Context(), args[0], args[1:]...)
		if err != nil {
			return err
		}
		for _, name := range args[1:] {
			value, ok := attrs[name]
			if !ok {
				value = "(not returned)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", name, value)
		}
		return nil
	},
}

var attrsSetCmd = &cobra.Command{
	Use:   "set <group> <attribute>=<value>...",
	Short: "Write attributes in the given order",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		client, err := newClient("")
		if err != nil {
			return err
		}
		if err := client.SetAttributes(cmd.Context(), args[0], values); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Group %s: set %s\n", args[0], strings.Join(args[1:], " "))
		return nil
	},
}

// parseAssignments turns name=value arguments into an ordered attribute map.
func parseAssignments(args []string) (*orderedmap.OrderedMap, error) {
	values := orderedmap.NewOrderedMap()
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q: want name=value", arg)
		}
		values.Set(name, value)
	}
	return values, nil
}

var statusCmd = &cobra.Command{
	Use:   "status [address]",
	Short: "Show controller information and the state of every group",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(hostArg(args, 0))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		sys, err := client.GetSystemData(ctx)
		if err != nil {
			fmt.Fprintf(out, "Error getting system data: %v\n", err)
		} else {
			fmt.Fprintf(out, "Controller %s: Model=%s, Version=%s, TempUnit=%s\n",
				client.Host(), sys["Model"], sys["Version"], sys["TempUnit"])
		}

		groups, err := client.DiscoverGroups(ctx)
		if err != nil {
			return fmt.Errorf("list groups: %w", err)
		}
		for _, g := range groups {
			state, err := client.GetGroupState(ctx, g.Group)
			if err != nil {
				fmt.Fprintf(out, "Group %s: error: %v\n", g.Group, err)
				continue
			}
			fmt.Fprintf(out, "Group %s (%s): Drive=%s, Mode=%s, SetTemp=%s, InletTemp=%s\n",
				g.Group, g.Name, state.Drive, state.Mode, formatTemp(state.SetTemp), formatTemp(state.InletTemp))
		}
		return nil
	},
}

func formatTemp(t *float64) string {
	if t == nil {
		return "-"
	}
	return strconv.FormatFloat(*t, 'f', -1, 64)
}

var groupsCmd = &cobra.Command{
	Use:   "groups [address]",
	Short: "List the groups a controller reports",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(hostArg(args, 0))
		if err != nil {
			return err
		}
		groups, err := client.DiscoverGroups(cmd.Context())
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No groups found.")
			return nil
		}
		for _, g := range groups {
			name := g.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Group %s: %s\n", g.Group, name)
		}
		return nil
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover controllers on the local network",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "Discovering controllers...")
		found, err := melco.DiscoverControllers(cmd.Context(), clientOptions()...)
		if err != nil {
			return fmt.Errorf("discover: %w", err)
		}
		if len(found) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No controllers found.")
			return nil
		}
		for _, c := range found {
			fmt.Fprintf(cmd.OutOrStdout(), "Found controller at: %s (model %s, version %s)\n", c.IP, c.Model, c.Version)
		}
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump [sublist] [address]",
	Short: "Print the raw response for a ControlGroup sublist (default MnetList)",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sublist := melco.SublistMnetList
		if len(args) > 0 {
			sublist = args[0]
		}
		client, err := newClient(hostArg(args, 1))
		if err != nil {
			return err
		}
		body, err := client.GetControlGroup(cmd.Context(), sublist)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "POST %s\n%s\n", client.URL(), body)
		return nil
	},
}
