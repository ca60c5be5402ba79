package cli

import (
	"fmt"

	"github.com/felixgeelhaar/membank/internal/cache"
	"github.com/felixgeelhaar/membank/internal/tools"
	"github.com/spf13/cobra"
)

// registry builds the tool set for this invocation, minus any disabled tools.
func (a *app) registry(disabled []string) (*tools.Registry, error) {
	deps := tools.Deps{Store: a.store, Engine: a.engine, Hook: a.hook}
	if resolver, err := a.resolver(); err == nil {
		deps.Fetcher = cache.NewFetcher(a.hook, resolver)
	}
	reg := tools.NewRegistry()
	if err := tools.RegisterMemoryTools(reg, deps); err != nil {
		return nil, err
	}
	for _, name := range disabled {
		if !reg.HasTool(name) {
			return nil, fmt.Errorf("cannot disable unknown tool %q", name)
		}
		reg.Unregister(name)
	}
	return reg, nil
}

func newToolsCmd(o *options) *cobra.Command {
	var disabled []string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List or invoke the agent tools",
	}
	cmd.PersistentFlags().StringSliceVar(&disabled, "disable", nil, "Tool to withhold from the registry (repeatable)")

	listCmd := &cobra.Command{
		Use:   "list [tool]",
		Short: "List tool definitions, or show one tool's parameters",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, args []string, a *app) error {
			reg, err := a.registry(disabled)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if len(args) == 1 {
				def, ok := reg.Get(args[0])
				if !ok {
					return fmt.Errorf("unknown tool: %s", args[0])
				}
				if o.json {
					return printJSON(cmd, def)
				}
				fmt.Fprintln(w, titleStyle.Render(def.Name))
				fmt.Fprintln(w, def.Description)
				return printJSON(cmd, def.Parameters)
			}

			if o.json {
				return printJSON(cmd, reg.FunctionSchemas())
			}
			for _, def := range reg.List() {
				fmt.Fprintf(w, "%s  %s\n", labelStyle.Render(def.Name), def.Description)
			}
			fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d tools", reg.Count())))
			return nil
		}),
	}

	callCmd := &cobra.Command{
		Use:   "call <tool> [json-args]",
		Short: "Invoke a tool with JSON arguments and print its JSON result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(o, func(cmd *cobra.Command, args []string, a *app) error {
			reg, err := a.registry(disabled)
			if err != nil {
				return err
			}
			call := tools.Call{Name: args[0], Args: "{}"}
			if len(args) == 2 {
				call.Args = args[1]
			}
			out, err := reg.Execute(cmd.Context(), call)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		}),
	}

	cmd.AddCommand(listCmd, callCmd)
	return cmd
}
