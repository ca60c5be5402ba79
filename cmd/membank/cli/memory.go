package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/felixgeelhaar/membank/internal/memory"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newPutCmd(o *options) *cobra.Command {
	var (
		data       string
		text       string
		fromStdin  bool
		source     string
		tags       []string
		timestamp  string
		ttl        float64
		importance float64
		vectorized bool
	)

	cmd := &cobra.Command{
		Use:   "put <category> [key]",
		Short: "Store a memory object, replacing any previous one",
		Long: `Store a value under category/key. The value is given as JSON with --data,
as plain text with --text, or as JSON on stdin with --stdin. A random key is
generated when none is given.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: withApp(o, func(cmd *cobra.Command, args []string, a *app) error {
			category := args[0]
			key := uuid.NewString()
			if len(args) == 2 {
				key = args[1]
			}

			payload, err := putPayload(cmd, data, text, fromStdin)
			if err != nil {
				return err
			}

			ov := memory.Overrides{Timestamp: timestamp, Source: source, Tags: tags}
			if cmd.Flags().Changed("ttl") {
				ov.TTL = memory.Float(ttl)
			}
			if cmd.Flags().Changed("importance") {
				ov.Importance = memory.Float(importance)
			}
			if cmd.Flags().Changed("vectorized") {
				ov.Vectorized = memory.Flag(vectorized)
			}

			obj, err := a.store.Put(cmd.Context(), category, key, payload, ov)
			if err != nil {
				return err
			}

			if o.json {
				return printJSON(cmd, obj)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", infoStyle.Render("stored"), category+"/"+key)
			return nil
		}),
	}

	f := cmd.Flags()
	f.StringVarP(&data, "data", "d", "", "Value as JSON")
	f.StringVarP(&text, "text", "t", "", "Value as plain text")
	f.BoolVar(&fromStdin, "stdin", false, "Read the JSON value from stdin")
	f.StringVar(&source, "source", "", "Origin of the value")
	f.StringSliceVar(&tags, "tag", nil, "Tag (repeatable)")
	f.StringVar(&timestamp, "timestamp", "", "Write time (default now)")
	f.Float64Var(&ttl, "ttl", 0, "Lifetime in days")
	f.Float64Var(&importance, "importance", 0, "Priority between 0 and 1")
	f.BoolVar(&vectorized, "vectorized", false, "Mark the value as embedded")
	return cmd
}

func putPayload(cmd *cobra.Command, data, text string, fromStdin bool) (memory.Payload, error) {
	given := 0
	for _, set := range []bool{cmd.Flags().Changed("data"), cmd.Flags().Changed("text"), fromStdin} {
		if set {
			given++
		}
	}
	if given != 1 {
		return memory.Payload{}, fmt.Errorf("exactly one of --data, --text or --stdin is required")
	}

	switch {
	case fromStdin:
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return memory.Payload{}, fmt.Errorf("failed to read stdin: %w", err)
		}
		return parseData(raw)
	case cmd.Flags().Changed("data"):
		return parseData([]byte(data))
	default:
		return memory.String(text), nil
	}
}

func parseData(raw []byte) (memory.Payload, error) {
	p, err := memory.ParseJSON(raw)
	if err != nil {
		return memory.Payload{}, fmt.Errorf("value is not valid JSON: %w", err)
	}
	return p, nil
}

func newGetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <category> <key>",
		Short: "Show one memory object",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(o, func(cmd *cobra.Command, args []string, a *app) error {
			obj, found, err := a.store.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%s/%s not found", args[0], args[1])
			}
			if o.json {
				return printJSON(cmd, obj)
			}
			renderObject(cmd.OutOrStdout(), obj)
			return nil
		}),
	}
}

func newListCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list [category]",
		Short: "List the keys of a category, or all categories",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, args []string, a *app) error {
			var (
				names []string
				err   error
			)
			if len(args) == 0 {
				names, err = a.store.Categories(cmd.Context())
			} else {
				names, err = a.store.List(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if names == nil {
				names = []string{}
			}
			sort.Strings(names)

			if o.json {
				return printJSON(cmd, names)
			}
			w := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(w, dimStyle.Render("(empty)"))
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(w, n)
			}
			return nil
		}),
	}
}

func newDeleteCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <category> <key>",
		Aliases: []string{"rm"},
		Short:   "Remove a memory object (succeeds when already absent)",
		Args:    cobra.ExactArgs(2),
		RunE: withApp(o, func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.store.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			if o.json {
				return printJSON(cmd, map[string]interface{}{"deleted": true, "category": args[0], "key": args[1]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", infoStyle.Render("deleted"), args[0]+"/"+args[1])
			return nil
		}),
	}
}
