package source

import (
	"strings"
)

// Assembler folds continuation lines into logical lines. A raw line
// continues the current one when the current line ends with a backslash
// (joined directly, backslash removed) or when the raw line begins with a
// space or tab (joined with one space after left-trimming). The decision
// uses only those two markers, never the position of the underlying stream.
type Assembler struct {
	emit    func(string) error
	current string
	active  bool
}

// NewAssembler creates an assembler that passes completed logical lines to
// emit.
func NewAssembler(emit func(string) error) *Assembler {
	return &Assembler{emit: emit}
}

// Feed consumes one raw physical line. The leading whitespace of raw is the
// continuation marker, so callers must pass the line untrimmed.
func (a *Assembler) Feed(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		// A blank line ends any pending logical line
		if a.active {
			return a.flush()
		}
		return nil
	}

	if !a.active {
		a.current = trimmed
		a.active = true
		return nil
	}

	if strings.HasSuffix(a.current, `\`) {
		a.current = strings.TrimSuffix(a.current, `\`) + trimmed
		return nil
	}

	if raw[0] == ' ' || raw[0] == '\t' {
		a.current += " " + trimmed
		return nil
	}

	if err := a.flush(); err != nil {
		return err
	}
	a.current = trimmed
	a.active = true
	return nil
}

// Flush emits the final pending logical line, if any. Call at EOF.
func (a *Assembler) Flush() error {
	if !a.active {
		return nil
	}
	return a.flush()
}

func (a *Assembler) flush() error {
	line := a.current
	a.current = ""
	a.active = false
	return a.emit(line)
}
