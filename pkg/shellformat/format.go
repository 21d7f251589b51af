// Package shellformat renders spawned commands as readable, copy-pasteable
// shell using mvdan.cc/sh/v3/syntax (the shfmt parser and printer).
package shellformat

import (
	"bytes"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Option configures the formatter.
type Option func(*config)

type config struct {
	indent int
}

func defaultConfig() *config {
	return &config{indent: 2}
}

// WithIndent sets the indentation width in spaces (default: 2).
func WithIndent(n int) Option {
	return func(c *config) { c.indent = n }
}

// Command renders an argv as a single shell line with each word quoted as
// needed. Words that cannot be represented in POSIX shell (embedded NUL)
// are kept verbatim; the output is for logs, not re-execution in that case.
func Command(argv []string) string {
	words := make([]string, 0, len(argv))
	for _, arg := range argv {
		quoted, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			quoted = arg
		}
		words = append(words, quoted)
	}
	return strings.Join(words, " ")
}

// Format parses a shell one-liner and reprints it with consistent quoting,
// indentation, and redirect spacing. On parse error, the original input is
// returned unchanged with a nil error: a log line is never worth failing for.
func Format(input string, opts ...Option) (string, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}

	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(true),
	)
	prog, err := parser.Parse(strings.NewReader(input), "")
	if err != nil {
		return input, nil
	}

	printer := syntax.NewPrinter(
		syntax.Indent(uint(cfg.indent)),
		syntax.SpaceRedirects(true),
		syntax.BinaryNextLine(true),
	)
	var buf bytes.Buffer
	if err := printer.Print(&buf, prog); err != nil {
		return input, nil
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
