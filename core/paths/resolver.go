// Package paths computes export paths for pages and attachments, and the
// references one exported file uses to link to another. Everything here is a
// pure computation over entity fields plus already-cached ancestor titles;
// nothing touches the filesystem.
package paths

import (
	"context"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/confmark/confmark/core"
)

// reservedNames are device names Windows refuses as file stems,
// case-insensitive.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

var templateVar = regexp.MustCompile(`\{([^{}]*)\}`)

// Resolver derives export paths from the configured templates. Ancestor
// titles come from the shared per-run cache.
type Resolver struct {
	cfg       *core.Config
	cache     *core.Cache
	encodeMap map[string]string
}

// New creates a Resolver. The configuration must already be validated.
func New(cfg *core.Config, cache *core.Cache) *Resolver {
	enc, _ := cfg.EncodeMap()
	return &Resolver{cfg: cfg, cache: cache, encodeMap: enc}
}

// PagePath returns the export path of a page, relative to the output root.
func (r *Resolver) PagePath(ctx context.Context, p *core.Page) (string, error) {
	vars, err := r.documentVars(ctx, p.SpaceKey, p.Ancestors)
	if err != nil {
		return "", err
	}
	vars["page_id"] = strconv.FormatInt(p.ID, 10)
	vars["page_title"] = r.Sanitize(p.Title)
	return substitute(r.cfg.PagePath, vars), nil
}

// AttachmentPath returns the export path of an attachment, relative to the
// output root.
func (r *Resolver) AttachmentPath(ctx context.Context, a *core.Attachment) (string, error) {
	vars, err := r.documentVars(ctx, a.SpaceKey, a.Ancestors)
	if err != nil {
		return "", err
	}
	vars["attachment_id"] = a.ID
	vars["attachment_title"] = r.Sanitize(a.Title)
	// The file id is content-addressed and needs no sanitization.
	vars["attachment_file_id"] = a.FileID
	vars["attachment_extension"] = a.Extension()
	return substitute(r.cfg.AttachmentPath, vars), nil
}

// Ref returns the reference to use when linking from the file at fromPath to
// the file at toPath (both output-root-relative). Spaces are percent-encoded
// because Markdown link syntax cannot contain literal spaces.
func (r *Resolver) Ref(fromPath, toPath string) string {
	var ref string
	if r.cfg.LinkStyle == core.LinkAbsolute {
		ref = "/" + strings.TrimLeft(filepath.ToSlash(toPath), "/")
	} else {
		rel, err := filepath.Rel(path.Dir(filepath.ToSlash(fromPath)), toPath)
		if err != nil {
			ref = filepath.ToSlash(toPath)
		} else {
			ref = filepath.ToSlash(rel)
		}
	}
	return strings.ReplaceAll(ref, " ", "%20")
}

// documentVars builds the substitution map shared by pages and attachments:
// space fields plus the resolved ancestor chains. A missing ancestor or
// space substitutes as empty rather than failing the whole path.
func (r *Resolver) documentVars(ctx context.Context, spaceKey string, ancestors []int64) (map[string]string, error) {
	vars := map[string]string{}

	space, err := r.cache.SpaceByKey(ctx, spaceKey)
	if err != nil {
		space = &core.Space{Key: spaceKey}
	}
	vars["space_key"] = r.Sanitize(space.Key)
	vars["space_name"] = r.Sanitize(space.Name)
	vars["homepage_id"] = strconv.FormatInt(space.HomepageID, 10)
	vars["homepage_title"] = r.pageTitle(ctx, space.HomepageID)

	ids := make([]string, len(ancestors))
	titles := make([]string, len(ancestors))
	for i, id := range ancestors {
		ids[i] = strconv.FormatInt(id, 10)
		titles[i] = r.pageTitle(ctx, id)
	}
	vars["ancestor_ids"] = strings.Join(ids, "/")
	vars["ancestor_titles"] = strings.Join(titles, "/")
	return vars, nil
}

func (r *Resolver) pageTitle(ctx context.Context, id int64) string {
	if id == 0 {
		return ""
	}
	p, err := r.cache.PageByID(ctx, id)
	if err != nil {
		return ""
	}
	return r.Sanitize(p.Title)
}

// Sanitize makes a user-controlled string safe as a path segment: encode-map
// replacement, forbidden-character replacement, trailing space/dot trim,
// reserved device name suffixing, and length clamping.
func (r *Resolver) Sanitize(name string) string {
	var b strings.Builder
	for _, ch := range name {
		s := string(ch)
		if repl, ok := r.encodeMap[s]; ok {
			b.WriteString(repl)
			continue
		}
		if strings.ContainsRune(r.cfg.FilenameForbiddenChars, ch) {
			b.WriteString(r.cfg.FilenameReplacement)
			continue
		}
		b.WriteRune(ch)
	}
	sanitized := strings.TrimRight(b.String(), " .")

	stem := strings.TrimSuffix(sanitized, path.Ext(sanitized))
	if reservedNames[strings.ToUpper(stem)] {
		sanitized += "_"
	}

	if runes := []rune(sanitized); len(runes) > r.cfg.FilenameLength {
		sanitized = string(runes[:r.cfg.FilenameLength])
	}
	return sanitized
}

// SanitizeKey converts arbitrary text into a stable lowercase key: used for
// front matter keys (connector "_") and heading anchors (connector "-").
func SanitizeKey(s, connector string) string {
	s = strings.ToLower(s)
	nonKey := regexp.MustCompile("[^a-z0-9" + regexp.QuoteMeta(connector) + "]")
	s = nonKey.ReplaceAllString(s, connector)
	collapse := regexp.MustCompile(regexp.QuoteMeta(connector) + "+")
	s = collapse.ReplaceAllString(s, connector)
	s = strings.Trim(s, connector)
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		s = "key" + connector + s
	}
	return s
}

// substitute replaces every {var} in the template with its value; unresolved
// variables substitute as empty string.
func substitute(tmpl string, vars map[string]string) string {
	return templateVar.ReplaceAllStringFunc(tmpl, func(m string) string {
		return vars[m[1:len(m)-1]]
	})
}
