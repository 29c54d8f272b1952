package cmd

import (
	"context"
	"slices"
	"strings"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/app"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/loc"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"github.com/spf13/cobra"
)

// withApp builds the components for one command invocation
func withApp(ctx context.Context, opts *rootOptions, fn func(*app.App, *config.Config) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	components, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Close()
	return fn(components, cfg)
}

func newSubjectsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "Search, suggest and validate Library of Congress subject headings",
	}

	cmd.AddCommand(newSubjectsSearchCmd(opts))
	cmd.AddCommand(newSubjectsShowCmd(opts))
	cmd.AddCommand(newSubjectsSuggestCmd(opts))
	cmd.AddCommand(newSubjectsValidateCmd(opts))

	return cmd
}

func newSubjectsSearchCmd(opts *rootOptions) *cobra.Command {
	var limit int
	var authorityType string

	cmd := &cobra.Command{
		Use:     "search <query>",
		Short:   "Search LCSH",
		Example: `  bookanalyzer subjects search "civil war" --limit 5 --authority-type Topic`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withApp(cmd.Context(), opts, func(a *app.App, cfg *config.Config) error {
				results, err := a.LOC.SearchAuthority(cmd.Context(), loc.LCSH, query, limit)
				if err != nil {
					return err
				}
				if authorityType != "" {
					filtered := results[:0]
					for _, r := range results {
						if slices.ContainsFunc(r.Type, func(t string) bool { return strings.EqualFold(t, authorityType) }) {
							filtered = append(filtered, r)
						}
					}
					results = filtered
				}
				return opts.print(cmd.OutOrStdout(), struct {
					Query   string                  `json:"query" yaml:"query"`
					Total   int                     `json:"total" yaml:"total"`
					Results []models.SubjectHeading `json:"results" yaml:"results"`
				}{query, len(results), results})
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	cmd.Flags().StringVar(&authorityType, "authority-type", "", "Only show headings of this type")

	return cmd
}

func newSubjectsShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "show <id>",
		Short:   "Show one subject heading",
		Example: `  bookanalyzer subjects show sh85061212`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App, cfg *config.Config) error {
				heading, err := a.LOC.GetDetails(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), heading)
			})
		},
	}
}

func newSubjectsSuggestCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "suggest <text>",
		Short:   "Suggest subject headings for free text",
		Example: `  bookanalyzer subjects suggest "a history of steam locomotives in Pennsylvania"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return withApp(cmd.Context(), opts, func(a *app.App, cfg *config.Config) error {
				suggestions, err := a.Retriever(cfg).Suggest(cmd.Context(), text, limit)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), suggestions)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of suggestions")

	return cmd
}

func newSubjectsValidateCmd(opts *rootOptions) *cobra.Command {
	var checkAll bool

	cmd := &cobra.Command{
		Use:   "validate <subject>...",
		Short: "Check that headings exist in an authority vocabulary",
		Long: `Checks each argument against LCSH (or every authority with --all) and
prints whether it matched, the matching record, and suggestions otherwise.`,
		Example: `  bookanalyzer subjects validate "Railroads" "Steam locomotives" --all`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App, cfg *config.Config) error {
				results, err := a.Retriever(cfg).Validate(cmd.Context(), args, checkAll)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), results)
			})
		},
	}

	cmd.Flags().BoolVar(&checkAll, "all", false, "Check every authority vocabulary, not only LCSH")

	return cmd
}
