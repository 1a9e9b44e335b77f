package core

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// MarkdownStyle selects the document wrapping convention. It affects only the
// wrapping (title heading, breadcrumbs), never element-level rewrite rules.
type MarkdownStyle string

const (
	// StyleGitHub prepends an H1 with the page title and, when breadcrumbs
	// are enabled, an ancestor trail below the front matter.
	StyleGitHub MarkdownStyle = "github"
	// StyleObsidian emits front matter plus body only.
	StyleObsidian MarkdownStyle = "obsidian"
)

// LinkStyle selects how cross-references are written into Markdown.
type LinkStyle string

const (
	// LinkRelative emits paths relative to the linking file's directory.
	LinkRelative LinkStyle = "relative"
	// LinkAbsolute emits root-relative paths with a leading slash, useful
	// when the output tree is re-hosted at a known URL root.
	LinkAbsolute LinkStyle = "absolute"
)

// Template variables recognized in page and attachment path templates.
var pageTemplateVars = map[string]bool{
	"space_key":       true,
	"space_name":      true,
	"homepage_id":     true,
	"homepage_title":  true,
	"ancestor_ids":    true,
	"ancestor_titles": true,
	"page_id":         true,
	"page_title":      true,
}

var attachmentTemplateVars = map[string]bool{
	"attachment_id":        true,
	"attachment_title":     true,
	"attachment_file_id":   true,
	"attachment_extension": true,
}

var templateVarPattern = regexp.MustCompile(`\{([^{}]*)\}`)

// Config is the validated export configuration consumed read-only by the
// core. The CLI layer owns assembling and validating it before any export
// work begins.
type Config struct {
	// OutputDir is the root path for all output files.
	OutputDir string
	// PagePath is the export path template for pages.
	PagePath string
	// AttachmentPath is the export path template for attachments.
	AttachmentPath string

	MarkdownStyle MarkdownStyle
	LinkStyle     LinkStyle
	// PageBreadcrumbs toggles the ancestor trail (StyleGitHub only).
	PageBreadcrumbs bool

	IncludeAttachments bool
	// AttachmentExportAll exports every attachment regardless of whether the
	// page body references it.
	AttachmentExportAll bool

	// FilenameForbiddenChars lists characters replaced by
	// FilenameReplacement in every user-derived path segment.
	FilenameForbiddenChars string
	FilenameReplacement    string
	// FilenameEncoding is a JSON object body (without braces) mapping single
	// characters to replacement strings, applied before the forbidden-char
	// replacement. Example: `" ":"%20","?":"%3F"`.
	FilenameEncoding string
	// FilenameLength clamps every sanitized filename segment.
	FilenameLength int

	// MacrosToIgnore suppresses the named macros entirely.
	MacrosToIgnore []string
}

// DefaultConfig returns the configuration used when no overrides are given.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:              ".",
		PagePath:               "{space_name}/{homepage_title}/{ancestor_titles}/{page_title}.md",
		AttachmentPath:         "{space_name}/attachments/{attachment_file_id}{attachment_extension}",
		MarkdownStyle:          StyleGitHub,
		LinkStyle:              LinkRelative,
		PageBreadcrumbs:        true,
		IncludeAttachments:     true,
		FilenameForbiddenChars: `<>:"/\|?*`,
		FilenameReplacement:    "_",
		FilenameLength:         255,
		MacrosToIgnore:         []string{"qc-read-and-understood-signature-box"},
	}
}

// Validate reports configuration errors. These are the only fatal class of
// error: they abort before any export work begins.
func (c *Config) Validate() error {
	switch c.MarkdownStyle {
	case StyleGitHub, StyleObsidian:
	default:
		return fmt.Errorf("invalid markdown style %q (want %q or %q)",
			c.MarkdownStyle, StyleGitHub, StyleObsidian)
	}
	switch c.LinkStyle {
	case LinkRelative, LinkAbsolute:
	default:
		return fmt.Errorf("invalid link style %q (want %q or %q)",
			c.LinkStyle, LinkRelative, LinkAbsolute)
	}
	if c.FilenameLength <= 0 {
		return fmt.Errorf("filename length must be positive, got %d", c.FilenameLength)
	}
	if err := validateTemplate(c.PagePath, pageTemplateVars, nil); err != nil {
		return fmt.Errorf("page path template: %w", err)
	}
	if err := validateTemplate(c.AttachmentPath, pageTemplateVars, attachmentTemplateVars); err != nil {
		return fmt.Errorf("attachment path template: %w", err)
	}
	if _, err := c.EncodeMap(); err != nil {
		return fmt.Errorf("filename encoding: %w", err)
	}
	return nil
}

// EncodeMap parses FilenameEncoding into a character→replacement map.
// An empty setting yields an empty map.
func (c *Config) EncodeMap() (map[string]string, error) {
	if c.FilenameEncoding == "" {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte("{"+c.FilenameEncoding+"}"), &m); err != nil {
		return nil, fmt.Errorf("parsing %q: %w", c.FilenameEncoding, err)
	}
	return m, nil
}

func validateTemplate(tmpl string, varSets ...map[string]bool) error {
	for _, m := range templateVarPattern.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		known := false
		for _, vars := range varSets {
			if vars != nil && vars[name] {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown template variable {%s}", name)
		}
	}
	return nil
}
