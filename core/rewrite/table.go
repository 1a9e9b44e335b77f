package rewrite

import (
	"strings"

	"github.com/JohannesKaufmann/dom"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/confmark/confmark/core/tables"
)

// renderTable converts tables through the span normalizer. Tables flagged as
// computed properties reports carry no real rows in the interactive
// rendering and must be re-located in the export rendering by their query
// attribute.
func (r *Rewriter) renderTable(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	if strings.Contains(dom.GetAttributeOr(n, "class", ""), "metadata-summary-macro") {
		return r.renderPropertiesReport(ctx, w, n)
	}
	r.renderGrid(ctx, w, n)
	return converter.RenderSuccess
}

// renderPropertiesReport finds the export-rendering table with the same query
// attribute and converts that instead. No match emits nothing, with a
// diagnostic; the report cannot be reconstructed locally.
func (r *Rewriter) renderPropertiesReport(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	cql := dom.GetAttributeOr(n, "data-cql", "")
	if cql == "" {
		return converter.RenderSuccess
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(r.page.BodyExport))
	if err != nil {
		log.WithError(err).Warn("parsing export body for properties report")
		return converter.RenderSuccess
	}

	var match *html.Node
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if attr, ok := t.Attr("data-cql"); ok && attr == cql {
			match = t.Nodes[0]
			return false
		}
		return true
	})
	if match == nil {
		log.Warnf("properties report table not found in export rendering of page %d", r.page.ID)
		return converter.RenderSuccess
	}
	r.renderGrid(ctx, w, match)
	return converter.RenderSuccess
}

// renderGrid normalizes a table into a rectangular grid and emits it as a
// pipe table.
func (r *Rewriter) renderGrid(ctx converter.Context, w converter.Writer, n *html.Node) {
	grid := tables.Normalize(n)
	if len(grid.Rows) == 0 {
		return
	}

	text := make([][]string, len(grid.Rows))
	for i, row := range grid.Rows {
		text[i] = make([]string, len(row))
		for j, cell := range row {
			if cell.Empty() {
				continue
			}
			text[i][j] = cellText(r.renderChildren(ctx, cell.Node))
		}
	}

	headers := make([]string, len(text[0]))
	body := text
	if grid.HasHeader {
		headers = text[0]
		body = text[1:]
	}

	w.WriteString("\n\n")
	writePipeTable(w, headers, body)
	w.WriteString("\n\n")
}

// cellText flattens converted cell Markdown into one line: Markdown table
// cells cannot contain literal newlines, so embedded breaks become explicit
// line-break markers.
func cellText(md string) string {
	md = strings.TrimSpace(md)
	md = strings.ReplaceAll(md, "\n", "<br/>")
	for strings.Contains(md, "<br/><br/>") {
		md = strings.ReplaceAll(md, "<br/><br/>", "<br/>")
	}
	return md
}

// writePipeTable emits a Markdown pipe table with width-padded columns.
func writePipeTable(w converter.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	measure := func(row []string) {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	writeRow := func(row []string) {
		w.WriteString("|")
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			w.WriteString(" " + cell + strings.Repeat(" ", widths[i]-len(cell)) + " |")
		}
		w.WriteString("\n")
	}

	writeRow(headers)
	w.WriteString("|")
	for i := range widths {
		w.WriteString(" " + strings.Repeat("-", widths[i]) + " |")
	}
	w.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
}
