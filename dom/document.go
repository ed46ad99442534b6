package dom

import (
	"strings"
)

// Document represents an entire HTML document.
type Document Node

// NewDocument creates a new empty HTML Document.
func NewDocument() *Document {
	node := newNode(DocumentNode, "#document", nil)
	node.documentData = &documentData{}
	doc := (*Document)(node)
	node.ownerDoc = doc
	return doc
}

// AsNode returns the underlying Node.
func (d *Document) AsNode() *Node {
	return (*Node)(d)
}

// NodeType returns DocumentNode.
func (d *Document) NodeType() NodeType {
	return DocumentNode
}

// URL returns the document's URL. Defaults to "about:blank".
func (d *Document) URL() string {
	if d.documentData.url == "" {
		return "about:blank"
	}
	return d.documentData.url
}

// SetURL sets the document's URL.
func (d *Document) SetURL(url string) {
	d.documentData.url = url
}

// DocumentElement returns the root element of the document, or nil.
func (d *Document) DocumentElement() *Element {
	for c := d.firstChild; c != nil; c = c.nextSibling {
		if c.nodeType == ElementNode {
			return (*Element)(c)
		}
	}
	return nil
}

// Head returns the head element, or nil.
func (d *Document) Head() *Element {
	return d.rootChild("head")
}

// Body returns the body element, or nil.
func (d *Document) Body() *Element {
	return d.rootChild("body")
}

func (d *Document) rootChild(localName string) *Element {
	root := d.DocumentElement()
	if root == nil {
		return nil
	}
	for _, c := range root.Children() {
		if c.LocalName() == localName {
			return c
		}
	}
	return nil
}

// CreateElement creates a new element with the given tag name.
// The local name is lowercased and the tag name is uppercased.
func (d *Document) CreateElement(tagName string) *Element {
	localName := strings.ToLower(tagName)
	node := newNode(ElementNode, strings.ToUpper(tagName), d)
	node.elementData = &elementData{
		localName: localName,
		tagName:   strings.ToUpper(tagName),
	}
	return (*Element)(node)
}

// CreateTextNode creates a new Text node.
func (d *Document) CreateTextNode(data string) *Node {
	node := newNode(TextNode, "#text", d)
	node.nodeValue = &data
	return node
}

// CreateComment creates a new Comment node.
func (d *Document) CreateComment(data string) *Node {
	node := newNode(CommentNode, "#comment", d)
	node.nodeValue = &data
	return node
}

// CreateDocumentFragment creates a new empty DocumentFragment.
func (d *Document) CreateDocumentFragment() *Node {
	return newNode(DocumentFragmentNode, "#document-fragment", d)
}

// GetElementById returns the first element in tree order with the given id.
func (d *Document) GetElementById(id string) *Element {
	if id == "" {
		return nil
	}
	var found *Element
	Walk(d.AsNode(), func(n *Node) bool {
		if el := n.AsElement(); el != nil && el.Id() == id {
			found = el
			return false
		}
		return true
	})
	return found
}

// Walk visits the descendants of root in tree order, excluding root itself.
// Returning false from fn stops the walk.
func Walk(root *Node, fn func(*Node) bool) bool {
	for c := root.firstChild; c != nil; c = c.nextSibling {
		if !fn(c) {
			return false
		}
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}
