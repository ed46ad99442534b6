package css

import (
	"strconv"
	"strings"

	"github.com/chrisuehlinger/vquery/dom"
)

// MatchElement tests if a selector matches an element.
func (s *CSSSelector) MatchElement(el *dom.Element) bool {
	for _, cs := range s.ComplexSelectors {
		if cs.MatchElement(el) {
			return true
		}
	}
	return false
}

// MatchElement tests if a complex selector matches an element.
func (cs *ComplexSelector) MatchElement(el *dom.Element) bool {
	if len(cs.Compounds) == 0 {
		return false
	}
	return cs.matchFrom(len(cs.Compounds)-1, el)
}

// matchFrom matches compound i against el and the compounds left of i
// against el's ancestors or siblings. Descendant and subsequent-sibling
// combinators backtrack so that "a b c" finds any valid chain.
func (cs *ComplexSelector) matchFrom(i int, el *dom.Element) bool {
	if !cs.Compounds[i].MatchElement(el) {
		return false
	}
	if i == 0 {
		return true
	}

	switch cs.Compounds[i-1].Combinator {
	case CombinatorDescendant:
		for anc := el.ParentElement(); anc != nil; anc = anc.ParentElement() {
			if cs.matchFrom(i-1, anc) {
				return true
			}
		}
	case CombinatorChild:
		if parent := el.ParentElement(); parent != nil {
			return cs.matchFrom(i-1, parent)
		}
	case CombinatorNextSibling:
		if prev := el.PreviousElementSibling(); prev != nil {
			return cs.matchFrom(i-1, prev)
		}
	case CombinatorSubsequentSibling:
		for prev := el.PreviousElementSibling(); prev != nil; prev = prev.PreviousElementSibling() {
			if cs.matchFrom(i-1, prev) {
				return true
			}
		}
	}
	return false
}

// MatchElement tests if a compound selector matches an element.
func (c *CompoundSelector) MatchElement(el *dom.Element) bool {
	if c.TypeSelector != nil && !matchTypeSelector(c.TypeSelector, el) {
		return false
	}
	for _, id := range c.IDSelectors {
		if el.Id() != id {
			return false
		}
	}
	for _, class := range c.ClassSelectors {
		if !el.HasClass(class) {
			return false
		}
	}
	for _, attr := range c.AttributeMatchers {
		if !matchAttributeSelector(attr, el) {
			return false
		}
	}
	for _, pc := range c.PseudoClasses {
		if !matchPseudoClass(pc, el) {
			return false
		}
	}
	return true
}

func matchTypeSelector(ts *TypeSelector, el *dom.Element) bool {
	if ts.Name == "*" {
		return true
	}
	return strings.EqualFold(el.LocalName(), ts.Name)
}

func matchAttributeSelector(attr *AttributeMatcher, el *dom.Element) bool {
	if !el.HasAttribute(attr.Name) {
		return false
	}
	if attr.Operator == AttrExists {
		return true
	}

	attrValue := el.GetAttribute(attr.Name)
	matchValue := attr.Value
	if attr.CaseInsensitive {
		attrValue = strings.ToLower(attrValue)
		matchValue = strings.ToLower(matchValue)
	}

	switch attr.Operator {
	case AttrEquals:
		return attrValue == matchValue
	case AttrIncludes:
		for _, word := range strings.Fields(attrValue) {
			if word == matchValue {
				return true
			}
		}
		return false
	case AttrDashMatch:
		return attrValue == matchValue || strings.HasPrefix(attrValue, matchValue+"-")
	case AttrPrefix:
		return matchValue != "" && strings.HasPrefix(attrValue, matchValue)
	case AttrSuffix:
		return matchValue != "" && strings.HasSuffix(attrValue, matchValue)
	case AttrSubstring:
		return matchValue != "" && strings.Contains(attrValue, matchValue)
	}
	return false
}

func matchPseudoClass(pc *PseudoClassSelector, el *dom.Element) bool {
	switch pc.Name {
	case "root":
		parent := el.AsNode().ParentNode()
		return parent != nil && parent.NodeType() == dom.DocumentNode

	case "empty":
		for c := el.AsNode().FirstChild(); c != nil; c = c.NextSibling() {
			if c.NodeType() == dom.ElementNode || c.NodeType() == dom.TextNode {
				return false
			}
		}
		return true

	case "first-child":
		return el.PreviousElementSibling() == nil
	case "last-child":
		return el.NextElementSibling() == nil
	case "only-child":
		return el.PreviousElementSibling() == nil && el.NextElementSibling() == nil

	case "first-of-type":
		return siblingsOfType(el, false) == 0
	case "last-of-type":
		return siblingsOfType(el, true) == 0
	case "only-of-type":
		return siblingsOfType(el, false) == 0 && siblingsOfType(el, true) == 0

	case "nth-child":
		return matchNthChild(pc.Argument, el, false, false)
	case "nth-last-child":
		return matchNthChild(pc.Argument, el, true, false)
	case "nth-of-type":
		return matchNthChild(pc.Argument, el, false, true)
	case "nth-last-of-type":
		return matchNthChild(pc.Argument, el, true, true)

	case "not":
		return pc.Selector != nil && !pc.Selector.MatchElement(el)
	case "is", "where":
		return pc.Selector != nil && pc.Selector.MatchElement(el)
	case "has":
		return pc.Selector != nil && hasMatchingDescendant(el, pc.Selector)

	case "enabled":
		return isFormElement(el) && !isDisabled(el)
	case "disabled":
		return isFormElement(el) && isDisabled(el)
	case "checked":
		return isChecked(el)
	case "required":
		return isFormElement(el) && el.HasAttribute("required")
	case "optional":
		return isFormElement(el) && !el.HasAttribute("required")
	case "link":
		switch el.LocalName() {
		case "a", "area":
			return el.HasAttribute("href")
		}
		return false

	case "lang":
		return matchLang(pc.Argument, el)
	}
	return false
}

// siblingsOfType counts the element siblings with el's tag name before it,
// or after it when after is set.
func siblingsOfType(el *dom.Element, after bool) int {
	n := 0
	tagName := el.LocalName()
	next := (*dom.Element).PreviousElementSibling
	if after {
		next = (*dom.Element).NextElementSibling
	}
	for s := next(el); s != nil; s = next(s) {
		if s.LocalName() == tagName {
			n++
		}
	}
	return n
}

// matchNthChild implements :nth-child, :nth-last-child, :nth-of-type, :nth-last-of-type
func matchNthChild(arg string, el *dom.Element, fromLast bool, ofType bool) bool {
	a, b, ok := parseAnPlusB(arg)
	if !ok {
		return false
	}

	var pos int
	if ofType {
		pos = siblingsOfType(el, fromLast) + 1
	} else {
		pos = 1
		if fromLast {
			for s := el.NextElementSibling(); s != nil; s = s.NextElementSibling() {
				pos++
			}
		} else {
			for s := el.PreviousElementSibling(); s != nil; s = s.PreviousElementSibling() {
				pos++
			}
		}
	}

	if a == 0 {
		return pos == b
	}
	// pos = a*n + b for some n >= 0
	diff := pos - b
	if a > 0 {
		return diff >= 0 && diff%a == 0
	}
	return diff <= 0 && diff%a == 0
}

// parseAnPlusB parses an An+B expression, including the keywords odd and even.
func parseAnPlusB(s string) (a, b int, ok bool) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "")
	switch s {
	case "":
		return 0, 0, false
	case "odd":
		return 2, 1, true
	case "even":
		return 2, 0, true
	}

	nIdx := strings.IndexByte(s, 'n')
	if nIdx < 0 {
		n, err := strconv.Atoi(s)
		return 0, n, err == nil
	}

	switch aStr := s[:nIdx]; aStr {
	case "", "+":
		a = 1
	case "-":
		a = -1
	default:
		v, err := strconv.Atoi(aStr)
		if err != nil {
			return 0, 0, false
		}
		a = v
	}

	bStr := s[nIdx+1:]
	if bStr == "" {
		return a, 0, true
	}
	if bStr[0] != '+' && bStr[0] != '-' {
		return 0, 0, false
	}
	v, err := strconv.Atoi(bStr)
	if err != nil {
		return 0, 0, false
	}
	return a, v, true
}

func hasMatchingDescendant(el *dom.Element, sel *CSSSelector) bool {
	for child := el.FirstElementChild(); child != nil; child = child.NextElementSibling() {
		if sel.MatchElement(child) || hasMatchingDescendant(child, sel) {
			return true
		}
	}
	return false
}

func isFormElement(el *dom.Element) bool {
	switch el.LocalName() {
	case "input", "select", "textarea", "button", "option", "optgroup", "fieldset":
		return true
	}
	return false
}

func isDisabled(el *dom.Element) bool {
	if el.HasAttribute("disabled") {
		return true
	}
	for anc := el.ParentElement(); anc != nil; anc = anc.ParentElement() {
		if anc.LocalName() == "fieldset" && anc.HasAttribute("disabled") {
			return true
		}
	}
	return false
}

func isChecked(el *dom.Element) bool {
	switch el.LocalName() {
	case "input":
		t := strings.ToLower(el.GetAttribute("type"))
		return (t == "checkbox" || t == "radio") && el.HasAttribute("checked")
	case "option":
		return el.HasAttribute("selected")
	}
	return false
}

// matchLang matches the nearest lang attribute exactly or as a dash prefix.
func matchLang(lang string, el *dom.Element) bool {
	lang = strings.ToLower(lang)
	for cur := el; cur != nil; cur = cur.ParentElement() {
		if cur.HasAttribute("lang") {
			v := strings.ToLower(cur.GetAttribute("lang"))
			return v == lang || strings.HasPrefix(v, lang+"-")
		}
	}
	return false
}
