package css

import "fmt"

// SelectorSyntaxError reports a selector that could not be parsed.
// Offset is the byte offset in Selector where parsing stopped.
type SelectorSyntaxError struct {
	Selector string
	Offset   int
	Reason   string
}

func (e *SelectorSyntaxError) Error() string {
	return fmt.Sprintf("css: invalid selector %q at offset %d: %s", e.Selector, e.Offset, e.Reason)
}

func newSyntaxError(selector string, offset int, reason string, args ...any) *SelectorSyntaxError {
	if len(args) > 0 {
		reason = fmt.Sprintf(reason, args...)
	}
	return &SelectorSyntaxError{Selector: selector, Offset: offset, Reason: reason}
}
