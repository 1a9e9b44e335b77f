// Package cmd implements the CLI commands for confmark using Cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/confmark/confmark/core"
)

// Flag variables mapped onto core.Config.
var (
	flagOutputDir           string
	flagPagePath            string
	flagAttachmentPath      string
	flagMarkdownStyle       string
	flagLinkStyle           string
	flagBreadcrumbs         bool
	flagIncludeAttachments  bool
	flagAttachmentExportAll bool
	flagForbiddenChars      string
	flagReplacement         string
	flagEncoding            string
	flagFilenameLength      int
	flagIgnoreMacros        []string
	flagLogLevel            string
)

var rootCmd = &cobra.Command{
	Use:   "confmark",
	Short: "confmark — export Confluence pages as Markdown files",
	Long: `confmark walks Confluence pages, spaces, or a whole site and renders each
page as a Markdown file on disk, rewriting links, images, macros and tables
into local relative references.

Credentials are read from the environment (or a .env file in the working
directory): CONFLUENCE_URL, CONFLUENCE_USERNAME, CONFLUENCE_API_TOKEN, and
optionally JIRA_URL for issue macro resolution.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

func init() {
	defaults := core.DefaultConfig()
	pf := rootCmd.PersistentFlags()

	pf.StringVarP(&flagOutputDir, "output", "o", defaults.OutputDir, "Output directory root")
	pf.StringVar(&flagPagePath, "page-path", defaults.PagePath, "Page export path template")
	pf.StringVar(&flagAttachmentPath, "attachment-path", defaults.AttachmentPath, "Attachment export path template")
	pf.StringVar(&flagMarkdownStyle, "markdown-style", string(defaults.MarkdownStyle), "Markdown style: github or obsidian")
	pf.StringVar(&flagLinkStyle, "link-style", string(defaults.LinkStyle), "Link style: relative or absolute")
	pf.BoolVar(&flagBreadcrumbs, "breadcrumbs", defaults.PageBreadcrumbs, "Emit an ancestor breadcrumb trail (github style only)")
	pf.BoolVar(&flagIncludeAttachments, "attachments", defaults.IncludeAttachments, "Export attachment binaries")
	pf.BoolVar(&flagAttachmentExportAll, "attachments-all", defaults.AttachmentExportAll, "Export all attachments, referenced or not")
	pf.StringVar(&flagForbiddenChars, "filename-forbidden-chars", defaults.FilenameForbiddenChars, "Characters replaced in derived filenames")
	pf.StringVar(&flagReplacement, "filename-replacement", defaults.FilenameReplacement, "Replacement for forbidden filename characters")
	pf.StringVar(&flagEncoding, "filename-encoding", defaults.FilenameEncoding, `Per-character encode map, e.g. '" ":"%20"'`)
	pf.IntVar(&flagFilenameLength, "filename-length", defaults.FilenameLength, "Maximum length of a derived filename segment")
	pf.StringSliceVar(&flagIgnoreMacros, "ignore-macro", defaults.MacrosToIgnore, "Macro names to drop entirely (repeatable)")
	pf.StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

// setup loads .env credentials, configures logging and validates the export
// configuration. Config errors are the only fatal class: nothing has been
// exported yet, so we refuse to start.
func setup(cmd *cobra.Command, args []string) error {
	// A missing .env file is fine; the environment may carry everything.
	_ = godotenv.Load()

	level, err := logrus.ParseLevel(flagLogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", flagLogLevel, err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return buildConfig().Validate()
}

func buildConfig() *core.Config {
	return &core.Config{
		OutputDir:              flagOutputDir,
		PagePath:               flagPagePath,
		AttachmentPath:         flagAttachmentPath,
		MarkdownStyle:          core.MarkdownStyle(flagMarkdownStyle),
		LinkStyle:              core.LinkStyle(flagLinkStyle),
		PageBreadcrumbs:        flagBreadcrumbs,
		IncludeAttachments:     flagIncludeAttachments,
		AttachmentExportAll:    flagAttachmentExportAll,
		FilenameForbiddenChars: flagForbiddenChars,
		FilenameReplacement:    flagReplacement,
		FilenameEncoding:       flagEncoding,
		FilenameLength:         flagFilenameLength,
		MacrosToIgnore:         flagIgnoreMacros,
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
