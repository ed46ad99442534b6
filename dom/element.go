package dom

import (
	"strings"
)

// Element represents an element in the DOM tree.
// Element is a conversion of Node and shares its storage.
type Element Node

// Attr is a single name/value attribute of an element.
type Attr struct {
	Name  string
	Value string
}

// AsNode returns the underlying Node.
func (e *Element) AsNode() *Node {
	return (*Node)(e)
}

// NodeType returns ElementNode.
func (e *Element) NodeType() NodeType {
	return ElementNode
}

// TagName returns the tag name of the element in uppercase.
func (e *Element) TagName() string {
	if e.elementData == nil {
		return ""
	}
	return e.elementData.tagName
}

// LocalName returns the local name of the element in lowercase.
func (e *Element) LocalName() string {
	if e.elementData == nil {
		return ""
	}
	return e.elementData.localName
}

// Id returns the value of the id attribute.
func (e *Element) Id() string {
	return e.GetAttribute("id")
}

// SetId sets the value of the id attribute.
func (e *Element) SetId(id string) {
	e.SetAttribute("id", id)
}

// ClassName returns the value of the class attribute.
func (e *Element) ClassName() string {
	return e.GetAttribute("class")
}

// SetClassName sets the value of the class attribute.
func (e *Element) SetClassName(className string) {
	e.SetAttribute("class", className)
}

// ClassList returns the whitespace-separated tokens of the class attribute.
func (e *Element) ClassList() []string {
	return strings.Fields(e.ClassName())
}

// HasClass returns true if the class attribute contains the given token.
func (e *Element) HasClass(name string) bool {
	for _, c := range e.ClassList() {
		if c == name {
			return true
		}
	}
	return false
}

// Attributes returns a copy of the element's attributes in source order.
func (e *Element) Attributes() []Attr {
	if e.elementData == nil {
		return nil
	}
	attrs := make([]Attr, len(e.elementData.attributes))
	copy(attrs, e.elementData.attributes)
	return attrs
}

func (e *Element) attrIndex(name string) int {
	if e.elementData == nil {
		return -1
	}
	name = strings.ToLower(name)
	for i, a := range e.elementData.attributes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// GetAttribute returns the value of the named attribute, or "" if absent.
func (e *Element) GetAttribute(name string) string {
	if i := e.attrIndex(name); i >= 0 {
		return e.elementData.attributes[i].Value
	}
	return ""
}

// HasAttribute returns true if the element has the named attribute.
func (e *Element) HasAttribute(name string) bool {
	return e.attrIndex(name) >= 0
}

// SetAttribute sets the value of the named attribute. Names are lowercased.
func (e *Element) SetAttribute(name, value string) {
	if e.elementData == nil {
		return
	}
	if i := e.attrIndex(name); i >= 0 {
		e.elementData.attributes[i].Value = value
		return
	}
	e.elementData.attributes = append(e.elementData.attributes, Attr{
		Name:  strings.ToLower(name),
		Value: value,
	})
}

// RemoveAttribute removes the named attribute if present.
func (e *Element) RemoveAttribute(name string) {
	if i := e.attrIndex(name); i >= 0 {
		attrs := e.elementData.attributes
		e.elementData.attributes = append(attrs[:i], attrs[i+1:]...)
	}
}

// ParentElement returns the parent element, or nil.
func (e *Element) ParentElement() *Element {
	return e.AsNode().ParentElement()
}

// Children returns the child elements.
func (e *Element) Children() []*Element {
	var children []*Element
	for c := e.firstChild; c != nil; c = c.nextSibling {
		if c.nodeType == ElementNode {
			children = append(children, (*Element)(c))
		}
	}
	return children
}

// FirstElementChild returns the first child element, or nil.
func (e *Element) FirstElementChild() *Element {
	for c := e.firstChild; c != nil; c = c.nextSibling {
		if c.nodeType == ElementNode {
			return (*Element)(c)
		}
	}
	return nil
}

// LastElementChild returns the last child element, or nil.
func (e *Element) LastElementChild() *Element {
	for c := e.lastChild; c != nil; c = c.prevSibling {
		if c.nodeType == ElementNode {
			return (*Element)(c)
		}
	}
	return nil
}

// PreviousElementSibling returns the previous sibling element, or nil.
func (e *Element) PreviousElementSibling() *Element {
	for s := e.prevSibling; s != nil; s = s.prevSibling {
		if s.nodeType == ElementNode {
			return (*Element)(s)
		}
	}
	return nil
}

// NextElementSibling returns the next sibling element, or nil.
func (e *Element) NextElementSibling() *Element {
	for s := e.nextSibling; s != nil; s = s.nextSibling {
		if s.nodeType == ElementNode {
			return (*Element)(s)
		}
	}
	return nil
}

// AppendChild appends a child node to the element.
func (e *Element) AppendChild(child *Node) *Node {
	return e.AsNode().AppendChild(child)
}

// TextContent returns the text content of the element.
func (e *Element) TextContent() string {
	return e.AsNode().TextContent()
}

// SetTextContent replaces the element's children with a text node.
func (e *Element) SetTextContent(text string) {
	e.AsNode().SetTextContent(text)
}

// Remove detaches the element from its parent.
func (e *Element) Remove() {
	e.AsNode().Remove()
}

// InnerHTML returns the serialized children of the element.
func (e *Element) InnerHTML() string {
	var sb strings.Builder
	for c := e.firstChild; c != nil; c = c.nextSibling {
		serializeNode(c, &sb)
	}
	return sb.String()
}

// SetInnerHTML parses the markup as a fragment in the context of this
// element and replaces its children with the result.
func (e *Element) SetInnerHTML(markup string) error {
	nodes, err := parseHTMLFragment(markup, e)
	if err != nil {
		return err
	}
	n := e.AsNode()
	for n.firstChild != nil {
		n.removeChildInternal(n.firstChild)
	}
	for _, child := range nodes {
		n.insertBeforeInternal(child, nil)
	}
	return nil
}

// OuterHTML returns the serialized element including itself.
func (e *Element) OuterHTML() string {
	var sb strings.Builder
	serializeNode(e.AsNode(), &sb)
	return sb.String()
}

func serializeNode(n *Node, sb *strings.Builder) {
	switch n.nodeType {
	case ElementNode:
		el := (*Element)(n)
		sb.WriteByte('<')
		sb.WriteString(el.LocalName())
		for _, a := range el.elementData.attributes {
			sb.WriteByte(' ')
			sb.WriteString(a.Name)
			sb.WriteString(`="`)
			sb.WriteString(escapeAttr(a.Value))
			sb.WriteByte('"')
		}
		sb.WriteByte('>')
		if isVoidElement(el.LocalName()) {
			return
		}
		for c := n.firstChild; c != nil; c = c.nextSibling {
			serializeNode(c, sb)
		}
		sb.WriteString("</")
		sb.WriteString(el.LocalName())
		sb.WriteByte('>')
	case TextNode:
		sb.WriteString(escapeText(n.NodeValue()))
	case CommentNode:
		sb.WriteString("<!--")
		sb.WriteString(n.NodeValue())
		sb.WriteString("-->")
	default:
		for c := n.firstChild; c != nil; c = c.nextSibling {
			serializeNode(c, sb)
		}
	}
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\u00a0", "&nbsp;")
	attrEscaper = strings.NewReplacer("&", "&amp;", `"`, "&quot;", "\u00a0", "&nbsp;")
)

func escapeText(s string) string { return textEscaper.Replace(s) }
func escapeAttr(s string) string { return attrEscaper.Replace(s) }

func isVoidElement(tagName string) bool {
	switch tagName {
	case "area", "base", "br", "col", "embed", "hr", "img", "input",
		"link", "meta", "source", "track", "wbr":
		return true
	}
	return false
}
