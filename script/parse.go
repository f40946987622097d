package script

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/roots/core/protocol"
)

// ErrSyntax is wrapped by every SyntaxError.
var ErrSyntax = errors.New("syntax error")

func init() {
	protocol.RegisterErrorTag(ErrSyntax, "SyntaxError")
}

// SyntaxError reports where parsing failed.
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Column, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

type wordKind int

const (
	wordLiteral wordKind = iota
	wordVariable
	wordBlock
)

type word struct {
	kind  wordKind
	text  string
	block *Block
}

type command []word

// Parse turns script text into a Block.
//
// Commands are separated by newlines or ';'. Words are separated by blanks
// and are either bare, "double quoted" with backslash escapes, {braced}
// blocks that may nest, or $variable references. A '#' where a command
// would start comments out the rest of the line.
func Parse(source string) (*Block, error) {
	p := &parser{src: source, line: 1, col: 1}
	commands, err := p.parseCommands(false)
	if err != nil {
		return nil, err
	}
	return &Block{source: source, commands: commands}, nil
}

type parser struct {
	src  string
	pos  int
	line int
	col  int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	return p.src[p.pos]
}

func (p *parser) advance() byte {
	c := p.src[p.pos]
	p.pos++
	if c == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	return c
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.line, Column: p.col, Msg: fmt.Sprintf(format, args...)}
}

// parseCommands reads commands until end of input, or until the closing
// brace when nested.
func (p *parser) parseCommands(nested bool) ([]command, error) {
	var (
		commands []command
		current  command
	)
	flush := func() {
		if len(current) > 0 {
			commands = append(commands, current)
			current = nil
		}
	}

	for !p.eof() {
		c := p.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			p.advance()
		case c == '\n' || c == ';':
			p.advance()
			flush()
		case c == '#' && len(current) == 0:
			for !p.eof() && p.peek() != '\n' {
				p.advance()
			}
		case c == '}':
			if !nested {
				return nil, p.errorf("unexpected '}'")
			}
			p.advance()
			flush()
			return commands, nil
		default:
			w, err := p.parseWord()
			if err != nil {
				return nil, err
			}
			current = append(current, w)
		}
	}

	if nested {
		return nil, p.errorf("missing '}'")
	}
	flush()
	return commands, nil
}

func (p *parser) parseWord() (word, error) {
	switch p.peek() {
	case '"':
		text, err := p.parseQuoted()
		return word{kind: wordLiteral, text: text}, err
	case '{':
		return p.parseBlock()
	case '$':
		p.advance()
		name := p.readWhile(isNameChar)
		if name == "" {
			return word{}, p.errorf("empty variable name")
		}
		return word{kind: wordVariable, text: name}, nil
	default:
		return word{kind: wordLiteral, text: p.readWhile(isBareChar)}, nil
	}
}

func (p *parser) parseQuoted() (string, error) {
	p.advance()

	var b strings.Builder
	for !p.eof() {
		c := p.advance()
		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			if p.eof() {
				return "", p.errorf("unterminated escape")
			}
			switch e := p.advance(); e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *parser) parseBlock() (word, error) {
	p.advance()
	start := p.pos

	commands, err := p.parseCommands(true)
	if err != nil {
		return word{}, err
	}

	source := strings.TrimSpace(p.src[start : p.pos-1])
	return word{
		kind:  wordBlock,
		text:  source,
		block: &Block{source: source, commands: commands},
	}, nil
}

func (p *parser) readWhile(accept func(byte) bool) string {
	start := p.pos
	for !p.eof() && accept(p.peek()) {
		p.advance()
	}
	return p.src[start:p.pos]
}

func isNameChar(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isBareChar(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', ';', '"', '{', '}':
		return false
	}
	return true
}
