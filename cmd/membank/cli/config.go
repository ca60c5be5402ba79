package cli

import (
	"fmt"

	"github.com/felixgeelhaar/membank/internal/secret"
	"github.com/spf13/cobra"
)

func newConfigCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o)
			if err != nil {
				return err
			}
			if o.json {
				return printJSON(cmd, cfg.Redacted())
			}
			out, err := cfg.Redacted().Marshal()
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o)
			if err != nil {
				return err
			}
			res := cfg.Validate()
			if o.json {
				if err := printJSON(cmd, res); err != nil {
					return err
				}
			} else {
				w := cmd.OutOrStdout()
				for _, e := range res.Errors {
					fmt.Fprintln(w, errorStyle.Render("error")+" "+e)
				}
				for _, warn := range res.Warnings {
					fmt.Fprintln(w, warnStyle.Render("warning")+" "+warn)
				}
				if res.Valid {
					fmt.Fprintln(w, infoStyle.Render("configuration is valid"))
				}
			}
			if !res.Valid {
				return fmt.Errorf("configuration has %d error(s)", len(res.Errors))
			}
			return nil
		},
	}

	encryptCmd := &cobra.Command{
		Use:   "encrypt <value>",
		Short: "Seal a secret for use in the config file",
		Long: `Encrypt a value (for example s3.secretKey) with a key derived from this
machine and user, mixed with $` + secret.PassphraseEnv + ` when set. Sealed values
start with "` + secret.Prefix + `" and are decrypted when the backend opens.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sealer, err := secret.FromEnv()
			if err != nil {
				return err
			}
			sealed, err := sealer.Seal(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return err
		},
	}

	cmd.AddCommand(showCmd, validateCmd, encryptCmd)
	return cmd
}
