package css

import (
	"github.com/chrisuehlinger/vquery/dom"
)

// QuerySelector returns the first descendant of root matching the
// selector, or nil.
func QuerySelector(root *dom.Node, selectorStr string) (*dom.Element, error) {
	selector, err := ParseSelector(selectorStr)
	if err != nil {
		return nil, err
	}
	return selector.First(root), nil
}

// QuerySelectorAll returns all descendants of root matching the selector
// in document order.
func QuerySelectorAll(root *dom.Node, selectorStr string) ([]*dom.Element, error) {
	selector, err := ParseSelector(selectorStr)
	if err != nil {
		return nil, err
	}
	return selector.All(root), nil
}

// Matches reports whether el matches the selector.
func Matches(el *dom.Element, selectorStr string) (bool, error) {
	selector, err := ParseSelector(selectorStr)
	if err != nil {
		return false, err
	}
	return selector.Matches(el), nil
}

// First returns the first descendant of root matching s, or nil.
func (s *CSSSelector) First(root *dom.Node) *dom.Element {
	var found *dom.Element
	walkElements(root, func(el *dom.Element) bool {
		if s.MatchElement(el) {
			found = el
			return false
		}
		return true
	})
	return found
}

// All returns every descendant of root matching s in document order.
func (s *CSSSelector) All(root *dom.Node) []*dom.Element {
	var results []*dom.Element
	walkElements(root, func(el *dom.Element) bool {
		if s.MatchElement(el) {
			results = append(results, el)
		}
		return true
	})
	return results
}

// Matches reports whether el matches s. An element without a parent is
// matched by querying a scratch fragment that holds it for the duration of
// the call, so the result is the same as for a query rooted at a parent.
// The scratch fragment is never shared between calls.
func (s *CSSSelector) Matches(el *dom.Element) bool {
	if el == nil {
		return false
	}
	n := el.AsNode()
	doc := n.OwnerDocument()
	if n.ParentNode() != nil || doc == nil {
		return s.MatchElement(el)
	}

	scratch := doc.CreateDocumentFragment()
	scratch.AppendChild(n)
	defer scratch.RemoveChild(n)

	for _, candidate := range s.All(scratch) {
		if candidate == el {
			return true
		}
	}
	return false
}

// walkElements visits the element descendants of root in document order
// until fn returns false.
func walkElements(root *dom.Node, fn func(*dom.Element) bool) bool {
	for child := root.FirstChild(); child != nil; child = child.NextSibling() {
		if child.NodeType() != dom.ElementNode {
			continue
		}
		if !fn(child.AsElement()) || !walkElements(child, fn) {
			return false
		}
	}
	return true
}
