package rewrite

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/dom"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/confmark/confmark/core/paths"
)

// pageURLPattern recognizes hrefs that point at another page by URL shape.
var pageURLPattern = regexp.MustCompile(`/wiki/.+?/pages/(\d+)`)

// renderAnchor rewrites platform links. Dispatch order matters: mentions
// first, then create-page placeholders, then explicitly typed page and
// attachment links, then URL-shaped page links, then in-page anchors.
// Anything else falls through to default link rendering.
func (r *Rewriter) renderAnchor(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	text := strings.TrimSpace(r.renderChildren(ctx, n))
	if out, ok := r.anchorMarkdown(ctx, n, text, true); ok {
		w.WriteString(out)
		return converter.RenderSuccess
	}
	return converter.RenderTryNext
}

// anchorMarkdown resolves one anchor element to Markdown. searchEditor guards
// the create-page fallback so the secondary lookup cannot recurse.
func (r *Rewriter) anchorMarkdown(ctx converter.Context, n *html.Node, text string, searchEditor bool) (string, bool) {
	class := dom.GetAttributeOr(n, "class", "")
	href := dom.GetAttributeOr(n, "href", "")

	if strings.Contains(class, "user-mention") {
		return r.userMention(n, text), true
	}

	if strings.Contains(href, "createpage.action") || strings.Contains(class, "createlink") {
		if searchEditor {
			if fallback := r.findEditorAnchor(text); fallback != nil {
				if out, ok := r.anchorMarkdown(ctx, fallback, text, false); ok {
					return out, true
				}
			}
		}
		return "[[" + text + "]]", true
	}

	if strings.Contains(dom.GetAttributeOr(n, "data-linked-resource-type", ""), "page") {
		id := dom.GetAttributeOr(n, "data-linked-resource-id", "")
		if id != "" && id != "null" {
			if pageID, err := strconv.ParseInt(id, 10, 64); err == nil {
				if link, err := r.pageLink(pageID); err == nil {
					return link, true
				}
				log.Warnf("page link target %s unresolved, keeping original href", id)
				return "[" + text + "](" + href + ")", true
			}
		}
	}

	if strings.Contains(dom.GetAttributeOr(n, "data-linked-resource-type", ""), "attachment") {
		return r.attachmentLink(n, text, href), true
	}

	if m := pageURLPattern.FindStringSubmatch(href); m != nil {
		if pageID, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			if link, err := r.pageLink(pageID); err == nil {
				return link, true
			}
			log.Warnf("page link target %s unresolved, keeping original href", m[1])
			return "[" + text + "](" + href + ")", true
		}
	}

	if strings.HasPrefix(href, "#") {
		// In-page heading anchors slug the same way front matter keys do,
		// matching how headings are slugged downstream.
		return "[" + text + "](#" + paths.SanitizeKey(text, "-") + ")", true
	}

	return "", false
}

// findEditorAnchor searches the page's editor-internal representation for an
// anchor with the given visible text. Create-page placeholder links in the
// view rendering carry no usable target; the editor copy sometimes does.
func (r *Rewriter) findEditorAnchor(text string) *html.Node {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(r.page.Editor2))
	if err != nil {
		return nil
	}
	var found *html.Node
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) == text {
			found = a.Nodes[0]
			return false
		}
		return true
	})
	return found
}

// pageLink renders a titled link to another page's export path.
func (r *Rewriter) pageLink(pageID int64) (string, error) {
	page, err := r.cache.PageByID(r.ctx, pageID)
	if err != nil {
		return "", err
	}
	target, err := r.resolver.PagePath(r.ctx, page)
	if err != nil {
		return "", err
	}
	return "[" + page.Title + "](" + r.resolver.Ref(r.pagePath, target) + ")", nil
}

// attachmentLink resolves a link marked as pointing at an attachment,
// degrading to the original href when no attachment matches.
func (r *Rewriter) attachmentLink(n *html.Node, text, href string) string {
	att := r.page.AttachmentByFileID(dom.GetAttributeOr(n, "data-linked-resource-file-id", ""))
	if att == nil {
		att = r.page.AttachmentByFileID(dom.GetAttributeOr(n, "data-media-id", ""))
	}
	if att == nil {
		att = r.page.AttachmentByID(dom.GetAttributeOr(n, "data-linked-resource-id", ""))
	}
	if att == nil {
		return "[" + text + "](" + href + ")"
	}
	ref, err := r.attachmentRef(att)
	if err != nil {
		return "[" + text + "](" + href + ")"
	}
	return "[" + att.Title + "](" + ref + ")"
}

// userMention renders the mentioned display name, looked up by account id
// when available, stripped of license-status suffixes.
func (r *Rewriter) userMention(n *html.Node, text string) string {
	if accountID := dom.GetAttributeOr(n, "data-account-id", ""); accountID != "" {
		user, err := r.cache.UserByAccountID(r.ctx, accountID)
		if err == nil {
			return cleanUserName(user.DisplayName)
		}
		log.Warnf("user %s not found, using link text", accountID)
	}
	return cleanUserName(text)
}

// cleanUserName strips status suffixes appended to deactivated accounts.
func cleanUserName(name string) string {
	name = strings.TrimSuffix(name, "(Unlicensed)")
	name = strings.TrimSuffix(name, "(Deactivated)")
	return strings.TrimSpace(name)
}

// renderImage resolves attachment-backed images to their export paths. Images
// are always rendered visibly; an image whose backing attachment cannot be
// located degrades to a plain link on its original source.
func (r *Rewriter) renderImage(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	mediaID := dom.GetAttributeOr(n, "data-media-id", "")
	if mediaID == "" {
		return converter.RenderTryNext
	}

	alt := dom.GetAttributeOr(n, "alt", "")
	att := r.page.AttachmentByFileID(mediaID)
	if att != nil {
		if ref, err := r.attachmentRef(att); err == nil {
			if alt == "" {
				alt = att.Title
			}
			w.WriteString("![" + alt + "](" + ref + ")")
			return converter.RenderSuccess
		}
	}

	src := dom.GetAttributeOr(n, "src", "")
	if src == "" {
		src = dom.GetAttributeOr(n, "href", "")
	}
	log.Warnf("image attachment %s not found on page %d, keeping original source", mediaID, r.page.ID)
	w.WriteString("[" + alt + "](" + src + ")")
	return converter.RenderSuccess
}
