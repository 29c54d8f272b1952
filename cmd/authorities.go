package cmd

import (
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/app"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/isbn"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/loc"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/metadata"
	"github.com/spf13/cobra"
)

func newAuthoritiesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorities",
		Short: "Query Library of Congress authority vocabularies",
	}

	cmd.AddCommand(newAuthoritiesListCmd(opts))
	cmd.AddCommand(newAuthoritiesSearchCmd(opts))

	return cmd
}

func newAuthoritiesListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the supported authority vocabularies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.print(cmd.OutOrStdout(), loc.Authorities)
		},
	}
}

func newAuthoritiesSearchCmd(opts *rootOptions) *cobra.Command {
	var types []string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search several authority vocabularies at once",
		Example: `  bookanalyzer authorities search "Lehigh River"
  bookanalyzer authorities search Shakespeare --types lcnaf,lcgft`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, t := range types {
				if _, ok := loc.LookupAuthority(t); !ok {
					return fmt.Errorf("unknown authority %q", t)
				}
			}
			query := strings.Join(args, " ")
			return withApp(cmd.Context(), opts, func(a *app.App, cfg *config.Config) error {
				results, err := a.LOC.SearchAuthorities(cmd.Context(), query, types)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), results)
			})
		},
	}

	cmd.Flags().StringSliceVar(&types, "types", nil, "Authority codes to search (default all)")

	return cmd
}

func newMARCFieldsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "marc-fields <lccn>",
		Short: "Show the subject fields of a catalog record",
		Long: `Fetches the MARCXML record for an LCCN from the Library of Congress and
prints its 650, 651 and 655 fields.`,
		Example: `  bookanalyzer marc-fields 2001012345`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lccn, err := lccnArg(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(a *app.App, cfg *config.Config) error {
				fields, err := a.LOC.MARCFields(cmd.Context(), lccn)
				if err != nil {
					return err
				}
				if loc.Empty(fields) {
					return fmt.Errorf("no subject fields for lccn %s", lccn)
				}
				return opts.print(cmd.OutOrStdout(), fields)
			})
		},
	}
}

// lccnArg normalizes an LCCN argument. Unrecognised values pass through so
// the catalog can decide, but an ISBN is rejected outright.
func lccnArg(arg string) (string, error) {
	if normalized := metadata.NormalizeLCCN(arg); normalized != "" {
		return normalized, nil
	}
	if isbn.Normalize(arg) != "" {
		return "", fmt.Errorf("expected an LCCN, got an ISBN: %s", arg)
	}
	return strings.TrimSpace(arg), nil
}
