package xmlextract

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

type nodeKind int

const (
	elementNode nodeKind = iota
	textNode
	commentNode
	procInstNode
	directiveNode
)

type node struct {
	kind     nodeKind
	name     string
	attrs    []xml.Attr
	text     string
	children []*node
}

// Format strictly parses a single XML document and re-serializes it with
// two-space indentation. Whitespace-only text is dropped, childless elements
// are self-closed and text-only elements stay on one line. Format is a fixed
// point: formatting its own output returns the same string.
func Format(doc string) (string, error) {
	top, err := parseDocument(doc)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, n := range top {
		writeNode(&b, n, 0)
	}
	return dropBlankLines(b.String()), nil
}

func parseDocument(doc string) ([]*node, error) {
	dec := newDecoder(doc)
	dec.Strict = true

	var top []*node
	var stack []*node
	roots := 0

	appendChild := func(n *node) {
		if len(stack) == 0 {
			top = append(top, n)
			return
		}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, n)
	}

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 {
				roots++
				if roots > 1 {
					return nil, errors.New("more than one root element")
				}
			}
			n := &node{kind: elementNode, name: qualified(t.Name), attrs: append([]xml.Attr(nil), t.Attr...)}
			appendChild(n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected end element </%s>", qualified(t.Name))
			}
			open := stack[len(stack)-1]
			if open.name != qualified(t.Name) {
				return nil, fmt.Errorf("element <%s> closed by </%s>", open.name, qualified(t.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			s := string(t)
			if len(stack) == 0 {
				if strings.TrimSpace(s) != "" {
					return nil, errors.New("text outside root element")
				}
				continue
			}
			parent := stack[len(stack)-1]
			if k := len(parent.children); k > 0 && parent.children[k-1].kind == textNode {
				parent.children[k-1].text += s
				continue
			}
			parent.children = append(parent.children, &node{kind: textNode, text: s})
		case xml.Comment:
			appendChild(&node{kind: commentNode, text: string(t)})
		case xml.ProcInst:
			appendChild(&node{kind: procInstNode, name: t.Target, text: string(t.Inst)})
		case xml.Directive:
			appendChild(&node{kind: directiveNode, text: string(t)})
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("element <%s> not closed", stack[len(stack)-1].name)
	}
	if roots == 0 {
		return nil, errors.New("no root element")
	}
	for _, n := range top {
		trimText(n)
	}
	return top, nil
}

// trimText trims text nodes and drops the ones left empty.
func trimText(n *node) {
	if n.kind != elementNode {
		return
	}
	kept := n.children[:0]
	for _, c := range n.children {
		if c.kind == textNode {
			c.text = strings.TrimSpace(c.text)
			if c.text == "" {
				continue
			}
		}
		trimText(c)
		kept = append(kept, c)
	}
	n.children = kept
}

func writeNode(b *strings.Builder, n *node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	switch n.kind {
	case textNode:
		b.WriteString(textEscaper.Replace(n.text))
	case commentNode:
		b.WriteString("<!--")
		b.WriteString(n.text)
		b.WriteString("-->")
	case procInstNode:
		b.WriteString("<?")
		b.WriteString(n.name)
		if n.text != "" {
			b.WriteString(" ")
			b.WriteString(n.text)
		}
		b.WriteString("?>")
	case directiveNode:
		b.WriteString("<!")
		b.WriteString(n.text)
		b.WriteString(">")
	case elementNode:
		writeStartTag(b, n)
		switch {
		case len(n.children) == 0:
			b.WriteString("/>")
		case len(n.children) == 1 && n.children[0].kind == textNode:
			b.WriteString(">")
			b.WriteString(textEscaper.Replace(n.children[0].text))
			writeEndTag(b, n)
		default:
			b.WriteString(">\n")
			for _, c := range n.children {
				writeNode(b, c, depth+1)
			}
			b.WriteString(strings.Repeat("  ", depth))
			writeEndTag(b, n)
		}
	}
	b.WriteString("\n")
}

func writeStartTag(b *strings.Builder, n *node) {
	b.WriteString("<")
	b.WriteString(n.name)
	for _, a := range n.attrs {
		b.WriteString(" ")
		b.WriteString(qualified(a.Name))
		b.WriteString(`="`)
		b.WriteString(attrEscaper.Replace(a.Value))
		b.WriteString(`"`)
	}
}

func writeEndTag(b *strings.Builder, n *node) {
	b.WriteString("</")
	b.WriteString(n.name)
	b.WriteString(">")
}

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"\n", "&#xA;",
		"\r", "&#xD;",
		"\t", "&#x9;",
	)
)

func dropBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
