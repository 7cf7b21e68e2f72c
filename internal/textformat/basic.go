// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package textformat

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// allowedTags lists the elements basic_html keeps, with their allowed attributes.
var allowedTags = map[atom.Atom][]string{
	atom.A:          {"href", "title"},
	atom.P:          nil,
	atom.Br:         nil,
	atom.Em:         nil,
	atom.Strong:     nil,
	atom.B:          nil,
	atom.I:          nil,
	atom.U:          nil,
	atom.Cite:       nil,
	atom.Blockquote: {"cite"},
	atom.Code:       nil,
	atom.Pre:        nil,
	atom.Ul:         {"type"},
	atom.Ol:         {"start", "type"},
	atom.Li:         nil,
	atom.Dl:         nil,
	atom.Dt:         nil,
	atom.Dd:         nil,
	atom.H2:         {"id"},
	atom.H3:         {"id"},
	atom.H4:         {"id"},
	atom.H5:         {"id"},
	atom.H6:         {"id"},
	atom.Img:        {"src", "alt", "width", "height"},
	atom.Span:       nil,
}

// droppedWithContent lists elements removed together with everything inside them.
var droppedWithContent = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Embed:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// processBasicHTML keeps a small allow-list of tags and attributes. Disallowed
// tags are unwrapped, script-like elements are dropped entirely, and URLs
// with a javascript: or data: scheme are removed.
func processBasicHTML(text string) (template.HTML, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(text), ctx)
	if err != nil {
		return "", fmt.Errorf("parse basic_html: %w", err)
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := writeFiltered(&buf, n); err != nil {
			return "", err
		}
	}
	return template.HTML(buf.String()), nil //nolint:gosec // filtered above
}

func writeFiltered(buf *bytes.Buffer, n *html.Node) error {
	switch n.Type {
	case html.TextNode:
		buf.WriteString(html.EscapeString(n.Data))
		return nil
	case html.ElementNode:
		if droppedWithContent[n.DataAtom] {
			return nil
		}
		attrs, allowed := allowedTags[n.DataAtom]
		if !allowed {
			return writeChildren(buf, n)
		}

		kept := &html.Node{Type: html.ElementNode, Data: n.Data, DataAtom: n.DataAtom}
		for _, a := range n.Attr {
			if a.Namespace != "" || !contains(attrs, a.Key) {
				continue
			}
			if (a.Key == "href" || a.Key == "src" || a.Key == "cite") && unsafeURL(a.Val) {
				continue
			}
			kept.Attr = append(kept.Attr, a)
		}

		if isVoid(n.DataAtom) {
			return html.Render(buf, kept)
		}

		// Render the start tag only, then the filtered children, then the end tag.
		var open bytes.Buffer
		if err := html.Render(&open, kept); err != nil {
			return err
		}
		start := open.String()
		start = strings.TrimSuffix(start, "</"+n.Data+">")
		buf.WriteString(start)
		if err := writeChildren(buf, n); err != nil {
			return err
		}
		buf.WriteString("</" + n.Data + ">")
		return nil
	default:
		// comments, doctypes
		return nil
	}
}

func writeChildren(buf *bytes.Buffer, n *html.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := writeFiltered(buf, c); err != nil {
			return err
		}
	}
	return nil
}

func isVoid(a atom.Atom) bool {
	return a == atom.Br || a == atom.Img
}

func unsafeURL(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == ' ' {
			return -1
		}
		return r
	}, s)
	return strings.HasPrefix(s, "javascript:") || strings.HasPrefix(s, "vbscript:") || strings.HasPrefix(s, "data:")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
