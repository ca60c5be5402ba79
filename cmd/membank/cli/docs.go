package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/felixgeelhaar/membank/internal/cache"
	"github.com/spf13/cobra"
)

func newDocsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Work with the documentation cache",
	}
	cmd.AddCommand(newDocsLookupCmd(o), newDocsStoreCmd(o), newDocsFetchCmd(o))
	return cmd
}

func newDocsLookupCmd(o *options) *cobra.Command {
	var (
		topic string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "lookup <library-id>",
		Short: "Check the cache for a fresh documentation entry",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, args []string, a *app) error {
			lookup, err := a.hook.PreRequest(cmd.Context(), cache.Request{LibraryID: args[0], Topic: topic, ForceRefresh: force})
			if err != nil {
				return err
			}
			if o.json {
				return printJSON(cmd, lookup)
			}

			w := cmd.OutOrStdout()
			if !lookup.Cached {
				fmt.Fprintln(w, warnStyle.Render("miss")+" "+cache.CompositeKey(args[0], topic))
				return nil
			}
			fmt.Fprintf(w, "%s %s %s\n", infoStyle.Render("hit"), cache.CompositeKey(args[0], topic),
				dimStyle.Render("(age "+lookup.Age.Round(time.Second).String()+")"))
			fmt.Fprintln(w, renderPayload(lookup.Data))
			return nil
		}),
	}
	cmd.Flags().StringVar(&topic, "topic", "", "Documentation topic")
	cmd.Flags().BoolVar(&force, "force", false, "Report a miss without consulting the cache")
	return cmd
}

func newDocsStoreCmd(o *options) *cobra.Command {
	var (
		topic   string
		content string
		file    string
	)

	cmd := &cobra.Command{
		Use:   "store <library-id>",
		Short: "Cache a documentation response",
		Long: `Cache documentation text for a library topic. The text is taken from
--content, from --file, or from stdin when neither is given.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, args []string, a *app) error {
			text, err := docsContent(cmd, content, file)
			if err != nil {
				return err
			}
			obj, err := a.hook.PostResponse(cmd.Context(), cache.Request{LibraryID: args[0], Topic: topic}, text)
			if err != nil {
				return err
			}
			if o.json {
				return printJSON(cmd, obj)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", infoStyle.Render("cached"), obj.Metadata.Key)
			return nil
		}),
	}
	cmd.Flags().StringVar(&topic, "topic", "", "Documentation topic")
	cmd.Flags().StringVar(&content, "content", "", "Documentation text")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read documentation text from a file")
	return cmd
}

func docsContent(cmd *cobra.Command, content, file string) (string, error) {
	switch {
	case cmd.Flags().Changed("content") && file != "":
		return "", fmt.Errorf("--content and --file are mutually exclusive")
	case cmd.Flags().Changed("content"):
		return content, nil
	case file != "":
		raw, err := os.ReadFile(file) // #nosec G304
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(raw), nil
	default:
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(raw), nil
	}
}

func newDocsFetchCmd(o *options) *cobra.Command {
	var (
		topic  string
		tokens int
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <library>",
		Short: "Return documentation, from cache when fresh, else from the resolver",
		Long: `Fetch documentation for a library topic. A library starting with "/" is
taken as an identifier; anything else is resolved by name first.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, args []string, a *app) error {
			resolver, err := a.resolver()
			if err != nil {
				return err
			}

			req := cache.FetchRequest{Topic: topic, TokenBudget: tokens, ForceRefresh: force}
			if strings.HasPrefix(args[0], "/") {
				req.LibraryID = args[0]
			} else {
				req.LibraryName = args[0]
			}
			if req.TokenBudget <= 0 {
				req.TokenBudget = a.cfg.Resolver.TokenBudget
			}

			res, err := cache.NewFetcher(a.hook, resolver).Fetch(cmd.Context(), req)
			if err != nil {
				return err
			}
			if o.json {
				return printJSON(cmd, res)
			}

			w := cmd.OutOrStdout()
			status := warnStyle.Render("fetched")
			if res.Cached {
				status = infoStyle.Render("cached")
			}
			fmt.Fprintln(w, titleStyle.Render(cache.CompositeKey(res.LibraryID, res.Topic))+" "+status)
			fmt.Fprintln(w, res.Content)
			return nil
		}),
	}
	cmd.Flags().StringVar(&topic, "topic", "", "Documentation topic")
	cmd.Flags().IntVar(&tokens, "tokens", 0, "Token budget (default from resolver.tokenBudget)")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass the cache")
	return cmd
}
