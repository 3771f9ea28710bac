package benefits

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// FilePattern matches the per-category benefit files inside a services dir.
const FilePattern = "*_services.html"

// ErrServicesDir is returned when the services directory cannot be used.
var ErrServicesDir = errors.New("services directory unavailable")

// tierLine matches "Tier: description". \w in Go is ASCII only, so letters
// are matched by Unicode class to accept Hebrew tier names.
var tierLine = regexp.MustCompile(`^([\p{L}\p{N}_]+):\s*(.*)$`)

// Diagnostic records input the loader skipped.
type Diagnostic struct {
	File    string
	HMO     string
	Service string
	Line    string
	Reason  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: hmo=%q service=%q line=%q: %s", d.File, d.HMO, d.Service, d.Line, d.Reason)
}

// LoadDir parses every *_services.html file in dir, in name order, into one
// table. Later files overwrite services of the same name.
func LoadDir(dir string) (*Table, []Diagnostic, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrServicesDir, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s is not a directory", ErrServicesDir, dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, FilePattern))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list services files: %w", err)
	}
	sort.Strings(files)

	table := NewTable(nil)
	var diags []Diagnostic
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		d, err := parseInto(table, f, filepath.Base(path))
		f.Close()
		if err != nil {
			return nil, nil, err
		}
		diags = append(diags, d...)
	}
	return table, diags, nil
}

// Parse reads a single benefits HTML document.
func Parse(r io.Reader, source string) (*Table, []Diagnostic, error) {
	table := NewTable(nil)
	diags, err := parseInto(table, r, source)
	if err != nil {
		return nil, nil, err
	}
	return table, diags, nil
}

func parseInto(table *Table, r io.Reader, source string) ([]Diagnostic, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	tbl := findFirst(doc, atom.Table)
	if tbl == nil {
		return []Diagnostic{{File: source, Reason: "no table found"}}, nil
	}

	// The first header cell labels the service column.
	var hmos []string
	for i, th := range findAll(tbl, atom.Th) {
		if i == 0 {
			continue
		}
		hmos = append(hmos, strings.TrimSpace(cellText(th)))
	}

	var diags []Diagnostic
	for i, tr := range findAll(tbl, atom.Tr) {
		if i == 0 {
			continue
		}
		cells := findAll(tr, atom.Td)
		if len(cells) == 0 {
			continue
		}
		service := strings.TrimSpace(cellText(cells[0]))
		for j, cell := range cells[1:] {
			if j >= len(hmos) {
				diags = append(diags, Diagnostic{
					File:    source,
					Service: service,
					Line:    strings.TrimSpace(cellText(cell)),
					Reason:  "cell has no matching HMO column",
				})
				continue
			}
			hmo := hmos[j]
			for _, line := range strings.Split(cellText(cell), "\n") {
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				m := tierLine.FindStringSubmatch(line)
				if m == nil {
					diags = append(diags, Diagnostic{
						File:    source,
						HMO:     hmo,
						Service: service,
						Line:    line,
						Reason:  "line is not of the form tier: description",
					})
					continue
				}
				desc := strings.TrimSpace(m[2])
				if desc == "" {
					desc = Unavailable
				}
				table.put(hmo, m[1], service, desc)
			}
		}
	}
	return diags, nil
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns matching descendants of n in document order.
func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == a {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// cellText flattens a cell to text, turning <br> and block boundaries into
// newlines.
func cellText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
			return
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteByte('\n')
			return
		}
		block := n.Type == html.ElementNode && isBlock(n.DataAtom)
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return b.String()
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol:
		return true
	}
	return false
}
