// Package tables expands row and column spans in HTML tables into a fully
// rectangular grid of cells, so the Markdown table renderer never has to
// reason about merged cells. The stock html-to-markdown table plugin does not
// handle merged cells the way the source platform produces them, hence this
// dedicated normalizer.
package tables

import (
	"strconv"

	"github.com/JohannesKaufmann/dom"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Cell is one grid position. Synthetic cells created by span expansion carry
// a nil Node and render as empty.
type Cell struct {
	// Node is the original th/td element, or nil for a synthetic cell.
	Node *html.Node
	// Header reports whether the original cell was a th.
	Header bool
}

// Empty reports whether the cell is a synthetic placeholder.
func (c Cell) Empty() bool {
	return c.Node == nil
}

// Grid is a normalized, rectangular table.
type Grid struct {
	Rows [][]Cell
	// HasHeader reports whether the first row should render as column
	// headers: true iff every original (pre-padding) cell of the first
	// scanned row was a header cell.
	HasHeader bool
}

type position struct {
	row, col int
}

// Normalize expands the table element into a rectangular grid. A merged
// cell's content appears once, at its top-left position; every other position
// it covers becomes a synthetic empty cell.
func Normalize(table *html.Node) Grid {
	rows := tableRows(table)

	var grid Grid
	occupied := map[position]bool{}
	outRow := 0
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		var cur []Cell
		col := 0
		for _, cellNode := range row {
			// Splice in placeholders registered by spans from earlier rows.
			for occupied[position{outRow, col}] {
				delete(occupied, position{outRow, col})
				cur = append(cur, Cell{})
				col++
			}

			rowspan := spanAttr(cellNode, "rowspan")
			colspan := spanAttr(cellNode, "colspan")

			cur = append(cur, Cell{Node: cellNode, Header: cellNode.Data == "th"})
			for c := 1; c < colspan; c++ {
				cur = append(cur, Cell{})
			}
			// Pre-register every other position the span covers.
			for i := 0; i < rowspan; i++ {
				for j := 0; j < colspan; j++ {
					if i > 0 {
						occupied[position{outRow + i, col + j}] = true
					}
				}
			}
			col += colspan
		}
		for occupied[position{outRow, col}] {
			delete(occupied, position{outRow, col})
			cur = append(cur, Cell{})
			col++
		}

		if outRow == 0 {
			grid.HasHeader = allHeaders(row)
		}
		grid.Rows = append(grid.Rows, cur)
		outRow++
	}

	rectangularize(&grid)
	return grid
}

// tableRows returns the cell elements of each row belonging directly to this
// table, skipping rows of nested tables.
func tableRows(table *html.Node) [][]*html.Node {
	doc := goquery.NewDocumentFromNode(table)
	var rows [][]*html.Node
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if closestTable(tr.Nodes[0]) != table {
			return
		}
		var cells []*html.Node
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, cell.Nodes[0])
		})
		rows = append(rows, cells)
	})
	return rows
}

func closestTable(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "table" {
			return p
		}
	}
	return nil
}

// spanAttr reads a span attribute, coercing missing, non-numeric or
// non-positive values to 1.
func spanAttr(n *html.Node, attr string) int {
	v, err := strconv.Atoi(dom.GetAttributeOr(n, attr, "1"))
	if err != nil || v < 1 {
		return 1
	}
	return v
}

func allHeaders(cells []*html.Node) bool {
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if c.Data != "th" {
			return false
		}
	}
	return true
}

// rectangularize pads short rows so every output row has equal length.
func rectangularize(g *Grid) {
	width := 0
	for _, row := range g.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range g.Rows {
		for len(row) < width {
			row = append(row, Cell{})
		}
		g.Rows[i] = row
	}
}
