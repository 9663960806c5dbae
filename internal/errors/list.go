package errors

import (
	"fmt"
	"strings"
)

// List accumulates the messages of recoverable errors in the order they
// were reported. The zero value is ready to use. A List is not safe for
// concurrent use; each unit of work owns one and hands it back to its caller.
type List struct {
	messages []string
}

// Add records err. Nil errors are ignored.
func (l *List) Add(err error) {
	if err == nil {
		return
	}
	l.messages = append(l.messages, err.Error())
}

// Addf records a formatted message.
func (l *List) Addf(format string, args ...any) {
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

// Merge appends every message of other.
func (l *List) Merge(other *List) {
	if other == nil {
		return
	}
	l.messages = append(l.messages, other.messages...)
}

// Len returns the number of recorded messages.
func (l *List) Len() int {
	return len(l.messages)
}

// Messages returns a copy of the recorded messages, never nil.
func (l *List) Messages() []string {
	out := make([]string, len(l.messages))
	copy(out, l.messages)
	return out
}

// Prefixed returns the recorded messages with prefix prepended to each.
func (l *List) Prefixed(prefix string) []string {
	out := make([]string, len(l.messages))
	for i, m := range l.messages {
		out[i] = prefix + m
	}
	return out
}

// String joins the messages, one per line.
func (l *List) String() string {
	return strings.Join(l.messages, "\n")
}
