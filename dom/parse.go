package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseHTML parses a complete HTML document.
func ParseHTML(markup string) (*Document, error) {
	return ParseHTMLReader(strings.NewReader(markup))
}

// ParseHTMLReader parses a complete HTML document from a reader.
func ParseHTMLReader(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc := NewDocument()
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.DoctypeNode {
			continue
		}
		doc.AsNode().insertBeforeInternal(convertHTMLNode(c, doc), nil)
	}
	return doc, nil
}

// ParseFragment parses markup in the context of a body element and returns
// the resulting top-level nodes, owned by doc but detached.
func ParseFragment(doc *Document, markup string) ([]*Node, error) {
	body := doc.Body()
	if body == nil {
		body = doc.CreateElement("body")
	}
	return parseHTMLFragment(markup, body)
}

// parseHTMLFragment parses an HTML fragment in the context of an element.
func parseHTMLFragment(markup string, context *Element) ([]*Node, error) {
	tagName := context.LocalName()
	contextNode := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Lookup([]byte(tagName)),
		Data:     tagName,
	}

	nodes, err := html.ParseFragment(strings.NewReader(markup), contextNode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML fragment: %w", err)
	}

	doc := context.ownerDoc
	result := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, convertHTMLNode(n, doc))
	}
	return result, nil
}

// convertHTMLNode converts an html.Node to a dom.Node.
func convertHTMLNode(n *html.Node, doc *Document) *Node {
	var node *Node

	switch n.Type {
	case html.ElementNode:
		el := doc.CreateElement(n.Data)
		for _, attr := range n.Attr {
			el.SetAttribute(attr.Key, attr.Val)
		}
		node = el.AsNode()
	case html.CommentNode:
		node = doc.CreateComment(n.Data)
	default:
		node = doc.CreateTextNode(n.Data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		node.insertBeforeInternal(convertHTMLNode(c, doc), nil)
	}
	return node
}
