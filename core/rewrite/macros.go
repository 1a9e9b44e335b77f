package rewrite

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/dom"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/confmark/confmark/core"
	"github.com/confmark/confmark/core/paths"
)

// alertSeverity maps platform callout macros onto Markdown alert severities.
var alertSeverity = map[string]string{
	"info":    "IMPORTANT",
	"panel":   "NOTE",
	"tip":     "TIP",
	"note":    "WARNING",
	"warning": "CAUTION",
}

var diagramNamePattern = regexp.MustCompile(`\|diagramName=(.+?)\|`)

// renderDiv dispatches block macro containers by macro name, then by class.
// Unknown combinations fall through to generic block conversion.
func (r *Rewriter) renderDiv(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	if name := dom.GetAttributeOr(n, "data-macro-name", ""); name != "" {
		if r.ignore[name] {
			return converter.RenderSuccess
		}
		switch name {
		case "info", "panel", "tip", "note", "warning":
			return r.renderAlert(ctx, w, n, name)
		case "details":
			return r.renderPageProperties(ctx, w, n)
		case "drawio":
			return r.renderDrawio(ctx, w, n)
		case "scroll-ignore":
			return r.renderHiddenContent(ctx, w, n)
		case "toc":
			return r.renderFromExportBody(ctx, w, n, "div.toc-macro", "toc")
		case "jira":
			return r.renderFromExportBody(ctx, w, n, "div.jira-table", "jira table")
		case "attachments":
			return r.renderAttachmentListing(ctx, w, n)
		}
	}

	class := dom.GetAttributeOr(n, "class", "")
	if strings.Contains(class, "expand-container") {
		return r.renderExpand(ctx, w, n)
	}
	if strings.Contains(class, "columnLayout") {
		return r.renderColumnLayout(ctx, w, n)
	}
	return converter.RenderTryNext
}

// renderSpan handles inline macros; everything else renders generically.
func (r *Rewriter) renderSpan(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	if dom.GetAttributeOr(n, "data-macro-name", "") == "jira" {
		return r.renderIssueMacro(ctx, w, n)
	}
	return converter.RenderTryNext
}

// renderAlert renders a callout macro as a block-quote alert.
func (r *Rewriter) renderAlert(ctx converter.Context, w converter.Writer, n *html.Node, macro string) converter.RenderStatus {
	severity, ok := alertSeverity[macro]
	if !ok {
		severity = "NOTE"
	}
	content := strings.TrimSpace(r.renderChildren(ctx, n))

	w.WriteString("\n\n> [!" + severity + "]\n")
	for _, line := range strings.Split(content, "\n") {
		if line == "" {
			w.WriteString(">\n")
			continue
		}
		w.WriteString("> " + line + "\n")
	}
	w.WriteString("\n")
	return converter.RenderSuccess
}

// renderPageProperties parses a details macro as a two-column key/value table
// and merges it into the front matter accumulator. Nothing is emitted inline.
func (r *Rewriter) renderPageProperties(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	doc := goquery.NewDocumentFromNode(n)
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("th, td")
		if cells.Length() != 2 {
			return
		}
		key := strings.TrimSpace(cells.First().Text())
		value := strings.TrimSpace(r.renderRegion(ctx, cells.Get(1)))
		if key == "" {
			return
		}
		r.props.Set(paths.SanitizeKey(key, "_"), value)
	})
	return converter.RenderSuccess
}

// renderFromExportBody re-locates a macro in the page's static export
// rendering, which is authoritative for macros the interactive rendering
// leaves empty. Zero or multiple matches cannot be disambiguated: the macro's
// own content passes through unchanged with a diagnostic.
func (r *Rewriter) renderFromExportBody(ctx converter.Context, w converter.Writer, n *html.Node, selector, what string) converter.RenderStatus {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(r.page.BodyExport))
	if err != nil {
		log.WithError(err).Warnf("parsing export body for %s macro", what)
		w.WriteString(r.renderChildren(ctx, n))
		return converter.RenderSuccess
	}
	matches := doc.Find(selector)
	if matches.Length() != 1 {
		log.WithFields(logrus.Fields{"page": r.page.ID, "matches": matches.Length()}).
			Warnf("cannot resolve %s macro from export rendering", what)
		w.WriteString(r.renderChildren(ctx, n))
		return converter.RenderSuccess
	}
	ctx.RenderNodes(ctx, w, matches.Nodes[0])
	return converter.RenderSuccess
}

// renderHiddenContent turns ignored-content containers into an HTML comment.
func (r *Rewriter) renderHiddenContent(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	content := strings.TrimSpace(r.renderChildren(ctx, n))
	w.WriteString("\n<!-- " + content + " -->\n")
	return converter.RenderSuccess
}

// renderExpand converts an expand/collapse container into a native
// collapsible block.
func (r *Rewriter) renderExpand(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	doc := goquery.NewDocumentFromNode(n)

	summary := strings.TrimSpace(doc.Find("span.expand-control-text").First().Text())
	if summary == "" {
		summary = "Click here to expand..."
	}

	content := ""
	if body := doc.Find("div.expand-content").First(); body.Length() > 0 {
		content = strings.TrimSpace(r.renderRegion(ctx, body.Nodes[0]))
	}

	w.WriteString("\n<details>\n<summary>" + summary + "</summary>\n\n" + content + "\n\n</details>\n\n")
	return converter.RenderSuccess
}

// renderDrawio resolves a diagram macro to its attachment pair: the diagram
// source and the rendered preview, matched by the name / name.png title
// convention. The emitted Markdown is the preview image wrapped in a link to
// the source.
func (r *Rewriter) renderDrawio(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	m := diagramNamePattern.FindStringSubmatch(outerHTML(n))
	if m == nil {
		return converter.RenderSuccess
	}
	name := m[1]

	sources := r.page.AttachmentsByTitle(name)
	previews := r.page.AttachmentsByTitle(name + ".png")
	if len(sources) == 0 || len(previews) == 0 {
		w.WriteString("\n<!-- Drawio diagram `" + name + "` not found -->\n\n")
		return converter.RenderSuccess
	}

	sourceRef, err := r.attachmentRef(sources[0])
	if err != nil {
		w.WriteString("\n<!-- Drawio diagram `" + name + "` not found -->\n\n")
		return converter.RenderSuccess
	}
	previewRef, err := r.attachmentRef(previews[0])
	if err != nil {
		w.WriteString("\n<!-- Drawio diagram `" + name + "` not found -->\n\n")
		return converter.RenderSuccess
	}

	w.WriteString("\n[![" + name + "](" + previewRef + ")](" + sourceRef + ")\n\n")
	return converter.RenderSuccess
}

// renderAttachmentListing renders the attachment-listing macro as a small
// file/modified table built from the page's attachment metadata, not from the
// macro's HTML content.
func (r *Rewriter) renderAttachmentListing(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	doc := goquery.NewDocumentFromNode(n)
	fileHeader := strings.TrimSpace(doc.Find("th.filename-column").First().Text())
	if fileHeader == "" {
		fileHeader = "File"
	}
	modifiedHeader := strings.TrimSpace(doc.Find("th.modified-column").First().Text())
	if modifiedHeader == "" {
		modifiedHeader = "Modified"
	}

	var rows [][]string
	for i := range r.page.Attachments {
		att := &r.page.Attachments[i]
		ref, err := r.attachmentRef(att)
		if err != nil {
			continue
		}
		modified := strings.TrimSpace(att.Version.FriendlyWhen + " by " + cleanUserName(att.Version.By.DisplayName))
		rows = append(rows, []string{"[" + att.Title + "](" + ref + ")", modified})
	}

	w.WriteString("\n\n")
	writePipeTable(w, []string{fileHeader, modifiedHeader}, rows)
	w.WriteString("\n")
	return converter.RenderSuccess
}

// renderColumnLayout converts a multi-column layout container into a
// single-row table, one cell per column.
func (r *Rewriter) renderColumnLayout(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	doc := goquery.NewDocumentFromNode(n)
	cells := doc.Find("div.cell")
	if cells.Length() < 2 {
		return converter.RenderTryNext
	}

	row := make([]string, 0, cells.Length())
	cells.Each(func(_ int, cell *goquery.Selection) {
		row = append(row, cellText(r.renderRegion(ctx, cell.Nodes[0])))
	})

	w.WriteString("\n\n")
	writePipeTable(w, make([]string, len(row)), [][]string{row})
	w.WriteString("\n")
	return converter.RenderSuccess
}

// renderIssueMacro resolves an inline issue-reference macro to a summary
// line, falling back to the bare key and original link when the lookup fails.
func (r *Rewriter) renderIssueMacro(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	key := dom.GetAttributeOr(n, "data-jira-key", "")
	link := goquery.NewDocumentFromNode(n).Find("a.jira-issue-key").First()

	if key == "" {
		if link.Length() > 0 {
			ctx.RenderNodes(ctx, w, link.Nodes[0])
		} else {
			w.WriteString(r.renderChildren(ctx, n))
		}
		return converter.RenderSuccess
	}
	if link.Length() == 0 {
		w.WriteString(r.renderChildren(ctx, n))
		return converter.RenderSuccess
	}

	href, _ := link.Attr("href")
	issue, err := r.cache.IssueByKey(r.ctx, key)
	if err != nil {
		log.WithError(err).Warnf("issue %s lookup failed", key)
		w.WriteString("[[" + key + "]](" + href + ")")
		return converter.RenderSuccess
	}
	w.WriteString("[[" + issue.Key + "] " + issue.Summary + "](" + href + ")")
	return converter.RenderSuccess
}

// attachmentRef resolves the reference from the bound page to an attachment.
func (r *Rewriter) attachmentRef(a *core.Attachment) (string, error) {
	p, err := r.resolver.AttachmentPath(r.ctx, a)
	if err != nil {
		return "", err
	}
	return r.resolver.Ref(r.pagePath, p), nil
}
