package structured

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/crimson-sun/rca/internal/errors"
)

// HTML extracts visible text from HTML documents locally. Block elements
// start new lines; script and style content is dropped.
type HTML struct{}

// NewHTML creates the local HTML extractor.
func NewHTML() *HTML { return &HTML{} }

func (*HTML) Name() string { return "html" }

func (*HTML) Available(context.Context) bool { return true }

func (*HTML) Supports(format string) bool { return format == "html" || format == "htm" }

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Pre: true, atom.Table: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Blockquote: true, atom.Dt: true, atom.Dd: true,
	atom.Title: true,
}

var headingElements = map[atom.Atom]bool{
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

func (h *HTML) Extract(ctx context.Context, _ string, _ string, content []byte) (*Result, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(err, "parse html")
	}

	var (
		lines    []string
		cur      strings.Builder
		title    string
		tables   int
		headings int
		inPre    int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			case atom.Table:
				tables++
			case atom.Title:
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			}
			if headingElements[n.DataAtom] {
				headings++
			}
			if n.DataAtom == atom.Td || n.DataAtom == atom.Th {
				if cur.Len() > 0 {
					cur.WriteString(" | ")
				}
			}
		}
		if n.Type == html.TextNode {
			if inPre > 0 {
				parts := strings.Split(n.Data, "\n")
				for i, p := range parts {
					if i > 0 {
						flush()
					}
					cur.WriteString(p)
				}
			} else if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
				if cur.Len() > 0 && !strings.HasSuffix(cur.String(), " ") {
					cur.WriteByte(' ')
				}
				cur.WriteString(s)
			}
		}

		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			flush()
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Pre {
			inPre++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := ctx.Err(); err != nil {
				return
			}
			walk(c)
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Pre {
			inPre--
		}
		if block {
			flush()
		}
	}
	walk(doc)
	flush()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errors.New("html document has no text content")
	}

	hints := map[string]string{
		"format":   "html",
		"tables":   strconv.Itoa(tables),
		"headings": strconv.Itoa(headings),
	}
	if title != "" {
		hints["title"] = title
	}
	return &Result{Text: strings.Join(lines, "\n"), Hints: hints}, nil
}
