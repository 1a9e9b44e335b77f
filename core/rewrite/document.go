package rewrite

import (
	"strings"

	"github.com/confmark/confmark/core"
)

// assemble combines front matter, optional breadcrumbs and the converted body
// into the final document.
func (r *Rewriter) assemble(body string) (string, error) {
	r.props.Set("tags", r.labels())

	fm, err := r.props.FrontMatter(frontMatterIndent)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fm)
	sb.WriteString("\n")
	if r.cfg.MarkdownStyle == core.StyleGitHub && r.cfg.PageBreadcrumbs {
		if trail := r.breadcrumbs(); trail != "" {
			sb.WriteString(trail)
			sb.WriteString("\n\n")
		}
	}
	sb.WriteString(body)
	sb.WriteString("\n")
	return sb.String(), nil
}

// labels renders the page's labels as hash-tags for the front matter.
func (r *Rewriter) labels() []string {
	tags := make([]string, 0, len(r.page.Labels))
	for _, l := range r.page.Labels {
		tags = append(tags, "#"+l.Name)
	}
	return tags
}

// breadcrumbs renders a trail of ancestor links, root first. An ancestor that
// cannot be resolved is skipped rather than failing the page.
func (r *Rewriter) breadcrumbs() string {
	var links []string
	for _, id := range r.page.Ancestors {
		link, err := r.pageLink(id)
		if err != nil {
			log.Warnf("breadcrumb ancestor %d unresolved: %v", id, err)
			continue
		}
		links = append(links, link)
	}
	return strings.Join(links, " > ")
}
