// Package endpoints implements the endpoints command and its add and remove
// subcommands for the custom endpoints file.
package endpoints

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jonesrussell/seo-pinger/cmd/common"
	"github.com/jonesrussell/seo-pinger/internal/catalog"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/event"
	"github.com/jonesrussell/seo-pinger/internal/submission"
	"github.com/spf13/cobra"
)

// Command creates the endpoints command.
func Command(flags *common.GlobalFlags) *cobra.Command {
	var suggestURL string

	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List ping endpoints",
		Long: `List the built-in ping services, the custom endpoints and the manual
submission links. With --suggest, show the endpoints a URL would be pinged at
under the configured strategy.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps(flags, true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if suggestURL == "" {
				reg, regErr := catalog.NewRegistry(deps.Config.Catalog.CustomFile, deps.Logger)
				if regErr != nil {
					return fmt.Errorf("load custom endpoints: %w", regErr)
				}
				RenderCatalog(out, catalog.Default(), reg.List(), catalog.ManualLinks())
				return nil
			}

			if validateErr := submission.Validate([]string{suggestURL}); validateErr != nil {
				return validateErr
			}

			pipeline, err := common.NewPipeline(cmd.Context(), deps.Config, deps.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = pipeline.Close() }()

			var logs event.Collector
			resolved := pipeline.Resolver.Resolve(cmd.Context(), suggestURL, &logs)
			for _, line := range logs.Messages() {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "\nEndpoints for %s (strategy %s):\n", suggestURL, pipeline.Resolver.Strategy())
			RenderEndpoints(out, resolved)
			return nil
		},
	}

	cmd.Flags().StringVar(&suggestURL, "suggest", "", "show the endpoints resolved for `url`")

	cmd.AddCommand(addCommand(flags))
	cmd.AddCommand(removeCommand(flags))
	return cmd
}

func addCommand(flags *common.GlobalFlags) *cobra.Command {
	var e domain.Endpoint

	cmd := &cobra.Command{
		Use:          "add",
		Short:        "Add a custom endpoint",
		Example:      `  seo-pinger endpoints add --name "My Hub" --url-template "https://hub.example/ping?url={URL}"`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := openRegistry(flags)
			if err != nil {
				return err
			}
			if addErr := reg.Add(e); addErr != nil {
				return addErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", e.Name, reg.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&e.Name, "name", "", "display name")
	cmd.Flags().StringVar(&e.URLTemplate, "url-template", "", "ping URL containing "+domain.URLPlaceholder)
	cmd.Flags().StringVar(&e.Description, "description", "", "short description")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("url-template")
	return cmd
}

func removeCommand(flags *common.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "remove <name>",
		Short:        "Remove a custom endpoint",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(flags)
			if err != nil {
				return err
			}
			if removeErr := reg.Remove(args[0]); removeErr != nil {
				return removeErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[0], reg.Path())
			return nil
		},
	}
}

func openRegistry(flags *common.GlobalFlags) (*catalog.Registry, error) {
	deps, err := common.NewCommandDeps(flags, true)
	if err != nil {
		return nil, err
	}
	reg, err := catalog.NewRegistry(deps.Config.Catalog.CustomFile, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("load custom endpoints: %w", err)
	}
	return reg, nil
}

// RenderCatalog writes the built-in, custom and manual tables.
func RenderCatalog(out io.Writer, builtin, custom []domain.Endpoint, manual []domain.ManualLink) {
	fmt.Fprintln(out, "Built-in ping services:")
	RenderEndpoints(out, builtin)

	fmt.Fprintln(out, "\nCustom endpoints:")
	if len(custom) == 0 {
		fmt.Fprintln(out, "  (none)")
	} else {
		RenderEndpoints(out, custom)
	}

	fmt.Fprintln(out, "\nManual submission (sign-in required):")
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "URL", "Description"})
	for _, l := range manual {
		t.AppendRow(table.Row{l.Name, l.URL, l.Description})
	}
	t.Render()
}

// RenderEndpoints writes one table row per endpoint.
func RenderEndpoints(out io.Writer, endpoints []domain.Endpoint) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Name", "URL Template", "Description"})
	for i, e := range endpoints {
		t.AppendRow(table.Row{i + 1, e.Name, e.URLTemplate, e.Description})
	}
	t.Render()
}
