// Package rewrite converts a page's platform HTML into portable Markdown.
//
// The engine is html-to-markdown's converter: the base and commonmark plugins
// provide generic rendering, and every platform-specific rule (macros, page
// and attachment links, mentions, merged-cell tables, code blocks, callouts)
// is a custom renderer registered at early priority. The renderer registry is
// the dispatch table; unrecognized elements fall through to the generic
// plugins via RenderTryNext.
package rewrite

import (
	"bytes"
	"context"
	"fmt"
	gohtml "html"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/dom"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/confmark/confmark/core"
	"github.com/confmark/confmark/core/paths"
)

var log = logrus.WithField("component", "rewrite")

// brushPattern extracts the language from a syntax-highlighter parameter
// string like "brush: go; gutter: false".
var brushPattern = regexp.MustCompile(`brush:\s*([^;]+)`)

// Sentinel runes injected into task list items before conversion and
// substituted afterwards, so the checkbox brackets escape the converter's
// Markdown escaping untouched.
const (
	taskCheckedSentinel   = "\uE000"
	taskUncheckedSentinel = "\uE001"
)

// frontMatterIndent is the extra indent applied to list items under root
// keys, required by stricter downstream front matter parsers.
const frontMatterIndent = 2

// Rewriter converts one page. It is bound to that page for the duration of
// the conversion: attachment lookups, secondary-HTML relocation and the front
// matter accumulator all refer to the bound page.
type Rewriter struct {
	page     *core.Page
	cache    *core.Cache
	resolver *paths.Resolver
	cfg      *core.Config

	conv     *converter.Converter
	props    *Properties
	ignore   map[string]bool
	pagePath string

	// ctx carries the per-conversion context for collaborator lookups
	// triggered from inside renderers. Conversion is single-threaded.
	ctx context.Context
}

// New creates a Rewriter bound to the given page. The page's own export path
// is resolved up front since every emitted reference is relative to it.
func New(ctx context.Context, page *core.Page, cache *core.Cache, resolver *paths.Resolver, cfg *core.Config) (*Rewriter, error) {
	pagePath, err := resolver.PagePath(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("resolving page path: %w", err)
	}

	r := &Rewriter{
		page:     page,
		cache:    cache,
		resolver: resolver,
		cfg:      cfg,
		props:    NewProperties(),
		ignore:   map[string]bool{},
		pagePath: pagePath,
	}
	for _, m := range cfg.MacrosToIgnore {
		r.ignore[m] = true
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
	conv.Register.RendererFor("div", converter.TagTypeBlock, r.renderDiv, converter.PriorityEarly)
	conv.Register.RendererFor("span", converter.TagTypeInline, r.renderSpan, converter.PriorityEarly)
	conv.Register.RendererFor("a", converter.TagTypeInline, r.renderAnchor, converter.PriorityEarly)
	conv.Register.RendererFor("img", converter.TagTypeInline, r.renderImage, converter.PriorityEarly)
	conv.Register.RendererFor("table", converter.TagTypeBlock, r.renderTable, converter.PriorityEarly)
	conv.Register.RendererFor("pre", converter.TagTypeBlock, r.renderPre, converter.PriorityEarly)
	conv.Register.RendererFor("sub", converter.TagTypeInline, r.renderSub, converter.PriorityEarly)
	conv.Register.RendererFor("sup", converter.TagTypeInline, r.renderSup, converter.PriorityEarly)
	conv.Register.RendererFor("time", converter.TagTypeInline, r.renderTime, converter.PriorityEarly)
	r.conv = conv

	return r, nil
}

// PagePath returns the bound page's export path, relative to the output root.
func (r *Rewriter) PagePath() string {
	return r.pagePath
}

// Convert produces the full Markdown document: front matter, optional
// breadcrumbs, and the converted body. A single unresolvable reference never
// fails the conversion; renderers degrade to literal fallbacks.
func (r *Rewriter) Convert(ctx context.Context) (string, error) {
	r.ctx = ctx

	source := r.page.Body
	if r.cfg.MarkdownStyle == core.StyleGitHub {
		source = "<h1>" + gohtml.EscapeString(r.page.Title) + "</h1>" + source
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return "", fmt.Errorf("parsing page body: %w", err)
	}
	prepareTaskLists(doc)

	raw, err := r.conv.ConvertNode(doc.Nodes[0])
	if err != nil {
		return "", fmt.Errorf("converting page %d: %w", r.page.ID, err)
	}
	body := string(raw)
	body = strings.ReplaceAll(body, taskCheckedSentinel, "[x] ")
	body = strings.ReplaceAll(body, taskUncheckedSentinel, "[ ] ")
	body = strings.TrimSpace(body)

	return r.assemble(body)
}

// prepareTaskLists splices checkbox sentinels into inline task items so the
// converted bullet reads "- [x] ..." / "- [ ] ...". The checked state comes
// from a class flag on the item.
func prepareTaskLists(doc *goquery.Document) {
	doc.Find("li[data-inline-task-id]").Each(func(_ int, li *goquery.Selection) {
		sentinel := taskUncheckedSentinel
		if li.HasClass("checked") {
			sentinel = taskCheckedSentinel
		}
		node := li.Nodes[0]
		node.InsertBefore(&html.Node{Type: html.TextNode, Data: sentinel}, node.FirstChild)
	})
}

// renderRegion converts the given nodes to Markdown within the current
// conversion, returning the text instead of writing it out.
func (r *Rewriter) renderRegion(ctx converter.Context, nodes ...*html.Node) string {
	var buf bytes.Buffer
	ctx.RenderNodes(ctx, &buf, nodes...)
	return buf.String()
}

// renderChildren converts a node's children to Markdown text.
func (r *Rewriter) renderChildren(ctx converter.Context, n *html.Node) string {
	var buf bytes.Buffer
	ctx.RenderChildNodes(ctx, &buf, n)
	return buf.String()
}

func (r *Rewriter) renderSub(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	// No Markdown equivalent; keep the inline HTML tag.
	w.WriteString("<sub>" + strings.TrimSpace(r.renderChildren(ctx, n)) + "</sub>")
	return converter.RenderSuccess
}

// renderSup maps superscript onto Markdown footnotes: an element with no
// preceding sibling is a footnote definition, any other a reference. The
// document-order heuristic is deliberate and must hold exactly.
func (r *Rewriter) renderSup(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	text := strings.TrimSpace(r.renderChildren(ctx, n))
	if n.PrevSibling == nil {
		w.WriteString("[^" + text + "]:")
	} else {
		w.WriteString("[^" + text + "]")
	}
	return converter.RenderSuccess
}

func (r *Rewriter) renderTime(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	if dt := dom.GetAttributeOr(n, "datetime", ""); dt != "" {
		w.WriteString(dt)
		return converter.RenderSuccess
	}
	return converter.RenderTryNext
}

// renderPre emits a fenced code block, reading the language hint from the
// platform's syntax-highlighter parameter string. Empty blocks are dropped.
func (r *Rewriter) renderPre(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	text := strings.Trim(textContent(n), "\n")
	if strings.TrimSpace(text) == "" {
		return converter.RenderSuccess
	}
	lang := ""
	if params := dom.GetAttributeOr(n, "data-syntaxhighlighter-params", ""); params != "" {
		if m := brushPattern.FindStringSubmatch(params); m != nil {
			lang = strings.TrimSpace(m[1])
		}
	}
	w.WriteString("\n\n```" + lang + "\n" + text + "\n```\n\n")
	return converter.RenderSuccess
}

// textContent returns the concatenated text of a node's subtree.
func textContent(n *html.Node) string {
	return goquery.NewDocumentFromNode(n).Text()
}

// outerHTML serializes a node back to HTML, used for macro parameter scans.
func outerHTML(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}
