// Package css parses CSS selectors and matches them against dom elements.
package css

import (
	"strconv"
	"strings"
)

// CSSSelector represents a parsed CSS selector.
type CSSSelector struct {
	// A selector is a list of complex selectors separated by commas
	ComplexSelectors []*ComplexSelector
}

// ComplexSelector is a chain of compound selectors separated by combinators.
type ComplexSelector struct {
	Compounds []*CompoundSelector
}

// CompoundSelector is a sequence of simple selectors.
type CompoundSelector struct {
	TypeSelector      *TypeSelector
	IDSelectors       []string
	ClassSelectors    []string
	AttributeMatchers []*AttributeMatcher
	PseudoClasses     []*PseudoClassSelector
	Combinator        CombinatorType // Combinator following this compound selector
}

// CombinatorType represents the type of combinator.
type CombinatorType int

const (
	CombinatorNone              CombinatorType = iota
	CombinatorDescendant                       // (whitespace)
	CombinatorChild                            // >
	CombinatorNextSibling                      // +
	CombinatorSubsequentSibling                // ~
)

// TypeSelector represents a type (tag) selector.
type TypeSelector struct {
	Name string // "*" for universal, or lowercase tag name
}

// AttributeMatcher represents an attribute selector.
type AttributeMatcher struct {
	Name            string
	Operator        AttributeOperator
	Value           string
	CaseInsensitive bool
}

// AttributeOperator represents the operator in an attribute selector.
type AttributeOperator int

const (
	AttrExists    AttributeOperator = iota // [attr]
	AttrEquals                             // [attr=value]
	AttrIncludes                           // [attr~=value]
	AttrDashMatch                          // [attr|=value]
	AttrPrefix                             // [attr^=value]
	AttrSuffix                             // [attr$=value]
	AttrSubstring                          // [attr*=value]
)

// PseudoClassSelector represents a pseudo-class.
type PseudoClassSelector struct {
	Name     string
	Argument string       // For functional pseudo-classes like :nth-child(2n+1)
	Selector *CSSSelector // For :not(), :is(), :where(), :has()
}

// pseudoArity tells the parser which pseudo-classes are known and what
// kind of argument each one takes.
type pseudoArity int

const (
	pseudoPlain pseudoArity = iota
	pseudoSelectorArg
	pseudoNthArg
	pseudoIdentArg
)

var knownPseudoClasses = map[string]pseudoArity{
	"root":             pseudoPlain,
	"empty":            pseudoPlain,
	"first-child":      pseudoPlain,
	"last-child":       pseudoPlain,
	"only-child":       pseudoPlain,
	"first-of-type":    pseudoPlain,
	"last-of-type":     pseudoPlain,
	"only-of-type":     pseudoPlain,
	"enabled":          pseudoPlain,
	"disabled":         pseudoPlain,
	"checked":          pseudoPlain,
	"required":         pseudoPlain,
	"optional":         pseudoPlain,
	"link":             pseudoPlain,
	"nth-child":        pseudoNthArg,
	"nth-last-child":   pseudoNthArg,
	"nth-of-type":      pseudoNthArg,
	"nth-last-of-type": pseudoNthArg,
	"not":              pseudoSelectorArg,
	"is":               pseudoSelectorArg,
	"where":            pseudoSelectorArg,
	"has":              pseudoSelectorArg,
	"lang":             pseudoIdentArg,
}

// SelectorParser parses CSS selectors.
type SelectorParser struct {
	input string
	pos   int
}

// ParseSelector parses a CSS selector list such as "ul > li.item, a[href]".
func ParseSelector(input string) (*CSSSelector, error) {
	p := &SelectorParser{input: input}
	sel, err := p.parseSelector(false)
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.input[p.pos])
	}
	return sel, nil
}

func (p *SelectorParser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *SelectorParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *SelectorParser) errorf(reason string, args ...any) error {
	return newSyntaxError(p.input, p.pos, reason, args...)
}

func (p *SelectorParser) skipWhitespace() bool {
	skipped := false
	for !p.eof() && isWhitespace(p.input[p.pos]) {
		p.pos++
		skipped = true
	}
	return skipped
}

// parseSelector parses a selector list. Inside a functional pseudo-class
// the list ends at the closing parenthesis, which is left unconsumed.
func (p *SelectorParser) parseSelector(nested bool) (*CSSSelector, error) {
	selector := &CSSSelector{}
	p.skipWhitespace()

	for {
		complex, err := p.parseComplexSelector()
		if err != nil {
			return nil, err
		}
		selector.ComplexSelectors = append(selector.ComplexSelectors, complex)

		p.skipWhitespace()
		switch {
		case p.eof():
			return selector, nil
		case p.peek() == ',':
			p.pos++
			p.skipWhitespace()
		case nested && p.peek() == ')':
			return selector, nil
		default:
			return nil, p.errorf("unexpected %q", p.peek())
		}
	}
}

// parseComplexSelector parses compound selectors joined by combinators.
func (p *SelectorParser) parseComplexSelector() (*ComplexSelector, error) {
	first, err := p.parseCompoundSelector()
	if err != nil {
		return nil, err
	}
	if first == nil {
		if p.eof() {
			return nil, p.errorf("empty selector")
		}
		return nil, p.errorf("unexpected %q", p.peek())
	}

	cs := &ComplexSelector{Compounds: []*CompoundSelector{first}}
	for {
		hadSpace := p.skipWhitespace()
		var combinator CombinatorType
		switch c := p.peek(); {
		case c == '>':
			combinator = CombinatorChild
		case c == '+':
			combinator = CombinatorNextSibling
		case c == '~':
			combinator = CombinatorSubsequentSibling
		case p.eof() || c == ',' || c == ')':
			return cs, nil
		case hadSpace:
			combinator = CombinatorDescendant
		default:
			return nil, p.errorf("unexpected %q", c)
		}
		if combinator != CombinatorDescendant {
			p.pos++
			p.skipWhitespace()
		}

		next, err := p.parseCompoundSelector()
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, p.errorf("expected selector after combinator")
		}
		cs.Compounds[len(cs.Compounds)-1].Combinator = combinator
		cs.Compounds = append(cs.Compounds, next)
	}
}

// parseCompoundSelector returns nil without error when no simple selector
// starts at the current position.
func (p *SelectorParser) parseCompoundSelector() (*CompoundSelector, error) {
	c := &CompoundSelector{}
	found := false

	if p.peek() == '*' {
		p.pos++
		c.TypeSelector = &TypeSelector{Name: "*"}
		found = true
	} else if isIdentStart(p.peek()) {
		c.TypeSelector = &TypeSelector{Name: strings.ToLower(p.readIdent())}
		found = true
	}

	for !p.eof() {
		switch p.peek() {
		case '#':
			p.pos++
			name := p.readIdent()
			if name == "" {
				return nil, p.errorf("expected identifier after '#'")
			}
			c.IDSelectors = append(c.IDSelectors, name)
		case '.':
			p.pos++
			name := p.readIdent()
			if name == "" {
				return nil, p.errorf("expected identifier after '.'")
			}
			c.ClassSelectors = append(c.ClassSelectors, name)
		case '[':
			attr, err := p.parseAttributeSelector()
			if err != nil {
				return nil, err
			}
			c.AttributeMatchers = append(c.AttributeMatchers, attr)
		case ':':
			pc, err := p.parsePseudoClass()
			if err != nil {
				return nil, err
			}
			c.PseudoClasses = append(c.PseudoClasses, pc)
		default:
			if !found {
				return nil, nil
			}
			return c, nil
		}
		found = true
	}

	if !found {
		return nil, nil
	}
	return c, nil
}

// parseAttributeSelector parses [name], [name=value] and the other operators.
func (p *SelectorParser) parseAttributeSelector() (*AttributeMatcher, error) {
	p.pos++ // '['
	p.skipWhitespace()

	name := p.readIdent()
	if name == "" {
		return nil, p.errorf("expected attribute name")
	}
	attr := &AttributeMatcher{Name: strings.ToLower(name), Operator: AttrExists}
	p.skipWhitespace()

	if p.peek() == ']' {
		p.pos++
		return attr, nil
	}

	switch p.peek() {
	case '=':
		attr.Operator = AttrEquals
		p.pos++
	case '~', '|', '^', '$', '*':
		op := p.peek()
		p.pos++
		if p.peek() != '=' {
			return nil, p.errorf("expected '=' after %q", op)
		}
		p.pos++
		attr.Operator = map[byte]AttributeOperator{
			'~': AttrIncludes,
			'|': AttrDashMatch,
			'^': AttrPrefix,
			'$': AttrSuffix,
			'*': AttrSubstring,
		}[op]
	default:
		return nil, p.errorf("unexpected %q in attribute selector", p.peek())
	}

	p.skipWhitespace()
	if q := p.peek(); q == '"' || q == '\'' {
		value, err := p.readString(q)
		if err != nil {
			return nil, err
		}
		attr.Value = value
	} else {
		attr.Value = p.readIdent()
		if attr.Value == "" {
			return nil, p.errorf("expected attribute value")
		}
	}

	p.skipWhitespace()
	switch p.peek() {
	case 'i', 'I':
		attr.CaseInsensitive = true
		p.pos++
		p.skipWhitespace()
	case 's', 'S':
		p.pos++
		p.skipWhitespace()
	}
	if p.peek() != ']' {
		return nil, p.errorf("expected ']'")
	}
	p.pos++
	return attr, nil
}

// parsePseudoClass parses :name and :name(argument).
func (p *SelectorParser) parsePseudoClass() (*PseudoClassSelector, error) {
	p.pos++ // ':'
	if p.peek() == ':' {
		return nil, p.errorf("pseudo-elements are not supported")
	}
	start := p.pos
	name := strings.ToLower(p.readIdent())
	if name == "" {
		return nil, p.errorf("expected pseudo-class name")
	}
	arity, ok := knownPseudoClasses[name]
	if !ok {
		p.pos = start
		return nil, p.errorf("unknown pseudo-class :%s", name)
	}

	pc := &PseudoClassSelector{Name: name}
	hasArg := p.peek() == '('
	if arity == pseudoPlain {
		if hasArg {
			return nil, p.errorf(":%s does not take an argument", name)
		}
		return pc, nil
	}
	if !hasArg {
		return nil, p.errorf(":%s requires an argument", name)
	}
	p.pos++ // '('
	p.skipWhitespace()

	switch arity {
	case pseudoSelectorArg:
		inner, err := p.parseSelector(true)
		if err != nil {
			return nil, err
		}
		pc.Selector = inner
	case pseudoNthArg:
		end := strings.IndexByte(p.input[p.pos:], ')')
		if end < 0 {
			return nil, p.errorf("expected ')'")
		}
		arg := strings.TrimSpace(p.input[p.pos : p.pos+end])
		if _, _, ok := parseAnPlusB(arg); !ok {
			return nil, p.errorf("invalid argument %q for :%s", arg, name)
		}
		pc.Argument = arg
		p.pos += end
	case pseudoIdentArg:
		pc.Argument = p.readIdent()
		if pc.Argument == "" {
			return nil, p.errorf(":%s requires an identifier", name)
		}
	}

	p.skipWhitespace()
	if p.peek() != ')' {
		return nil, p.errorf("expected ')'")
	}
	p.pos++
	return pc, nil
}

// readIdent reads an identifier, resolving backslash escapes.
func (p *SelectorParser) readIdent() string {
	var sb strings.Builder
	for !p.eof() {
		c := p.input[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.input):
			p.pos++
			sb.WriteString(p.readEscape())
		case isIdentChar(c):
			sb.WriteByte(c)
			p.pos++
		default:
			return sb.String()
		}
	}
	return sb.String()
}

// readEscape reads the part of an escape after the backslash.
func (p *SelectorParser) readEscape() string {
	start := p.pos
	for p.pos < len(p.input) && p.pos-start < 6 && isHex(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		c := p.input[p.pos]
		p.pos++
		return string(c)
	}
	code, _ := strconv.ParseUint(p.input[start:p.pos], 16, 32)
	if !p.eof() && isWhitespace(p.input[p.pos]) {
		p.pos++
	}
	if code == 0 || code > 0x10FFFF {
		code = 0xFFFD
	}
	return string(rune(code))
}

// readString reads a quoted string starting at the opening quote.
func (p *SelectorParser) readString(quote byte) (string, error) {
	p.pos++
	var sb strings.Builder
	for !p.eof() {
		c := p.input[p.pos]
		switch {
		case c == quote:
			p.pos++
			return sb.String(), nil
		case c == '\\' && p.pos+1 < len(p.input):
			p.pos++
			sb.WriteString(p.readEscape())
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '-' || c == '\\' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) && c != '\\' || (c >= '0' && c <= '9')
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
