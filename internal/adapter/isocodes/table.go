package isocodes

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// parseFirstTable extracts the first <table> in an HTML document as a header
// row plus data rows. Cell text is flattened and whitespace-trimmed.
func parseFirstTable(r io.Reader) (header []string, rows [][]string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, nil, err
	}

	table := findFirst(doc, "table")
	if table == nil {
		return nil, nil, errors.New("no tables found on the page")
	}

	for _, tr := range findAll(table, "tr") {
		var cells []string
		isHeader := false
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "th":
				isHeader = true
				cells = append(cells, cellText(c))
			case "td":
				cells = append(cells, cellText(c))
			}
		}
		if len(cells) == 0 {
			continue
		}
		if isHeader && header == nil {
			header = cells
			continue
		}
		rows = append(rows, cells)
	}

	if header == nil && len(rows) > 0 {
		// Tables without <th> cells use their first row as the header.
		header, rows = rows[0], rows[1:]
	}
	return header, rows, nil
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func cellText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
