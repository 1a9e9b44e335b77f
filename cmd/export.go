// Package cmd — export commands.
//
// Thin layer over the export orchestrator: resolve the arguments (page ids
// or URLs, space keys, or everything) and hand off.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/confmark/confmark/confluence"
	"github.com/confmark/confmark/core"
	"github.com/confmark/confmark/core/export"
	"github.com/confmark/confmark/core/output"
)

var flagIgnorePages []int64

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export pages, spaces, or the whole site as Markdown",
}

var exportPagesCmd = &cobra.Command{
	Use:   "pages <page-id-or-url>...",
	Short: "Export the given pages and their descendants",
	Long: `Export each given page and all of its descendants. Pages may be given as
numeric ids or as browser URLs (both the /wiki/spaces/KEY/pages/ID form and
the short /SPACE/Title form are accepted).

Pages listed with --ignore are skipped along with their own descendants.

Examples:
  confmark export pages 12345
  confmark export pages https://example.atlassian.net/wiki/spaces/DOC/pages/12345/Start
  confmark export pages 12345 --ignore 67890 -o ./out`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExportPages,
}

var exportSpacesCmd = &cobra.Command{
	Use:   "spaces <space-key>...",
	Short: "Export each space's homepage and every page below it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExportSpaces,
}

var exportAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Export every global space",
	Args:  cobra.NoArgs,
	RunE:  runExportAll,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportPagesCmd)
	exportCmd.AddCommand(exportSpacesCmd)
	exportCmd.AddCommand(exportAllCmd)

	exportPagesCmd.Flags().Int64SliceVar(&flagIgnorePages, "ignore", nil,
		"Page ids to skip, including their descendants (repeatable)")
}

func runExportPages(cmd *cobra.Command, args []string) error {
	client, exporter, err := newExporter()
	if err != nil {
		return err
	}
	ctx := context.Background()

	for _, arg := range args {
		id, err := resolvePageArg(ctx, client, arg)
		if err != nil {
			return err
		}
		if err := exporter.ExportTree(ctx, id, flagIgnorePages); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stdout, "✓ Exported to %s\n", flagOutputDir)
	return nil
}

func runExportSpaces(cmd *cobra.Command, args []string) error {
	_, exporter, err := newExporter()
	if err != nil {
		return err
	}
	ctx := context.Background()

	for _, key := range args {
		if err := exporter.ExportSpace(ctx, key); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stdout, "✓ Exported to %s\n", flagOutputDir)
	return nil
}

func runExportAll(cmd *cobra.Command, args []string) error {
	_, exporter, err := newExporter()
	if err != nil {
		return err
	}
	if err := exporter.ExportAll(context.Background()); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "✓ Exported to %s\n", flagOutputDir)
	return nil
}

// newExporter assembles the client, cache, writer and orchestrator from the
// validated flag config and environment credentials.
func newExporter() (*confluence.Client, *export.Exporter, error) {
	baseURL := os.Getenv("CONFLUENCE_URL")
	username := os.Getenv("CONFLUENCE_USERNAME")
	token := os.Getenv("CONFLUENCE_API_TOKEN")
	if baseURL == "" || username == "" || token == "" {
		return nil, nil, fmt.Errorf(
			"missing credentials: set CONFLUENCE_URL, CONFLUENCE_USERNAME and CONFLUENCE_API_TOKEN")
	}
	client := confluence.New(baseURL, os.Getenv("JIRA_URL"), username, token)

	cfg := buildConfig()
	writer, err := output.New(cfg.OutputDir)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing output writer: %w", err)
	}
	return client, export.New(core.NewCache(client), cfg, writer), nil
}

// resolvePageArg turns a CLI page argument (numeric id or browser URL) into
// a page id.
func resolvePageArg(ctx context.Context, client *confluence.Client, arg string) (int64, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil
	}
	id, err := client.ResolvePageURL(ctx, arg)
	if err != nil {
		return 0, fmt.Errorf("resolving page %q: %w", arg, err)
	}
	return id, nil
}
