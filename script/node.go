package script

import (
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/roots/core/protocol"
)

// ErrUnknownVariable is returned when a $reference names an unset
// variable.
var ErrUnknownVariable = errors.New("unknown variable")

func init() {
	protocol.RegisterErrorTag(ErrUnknownVariable, "UnknownVariable")
}

// Node is a sequence of commands driven by an Evaluator.
type Node interface {
	// Reset rewinds the node to its first command.
	Reset()

	// NextCommand resolves the next command's words against ns. It returns
	// false once the commands are exhausted.
	NextCommand(ns *Namespace) ([]any, bool, error)

	// PostResponse records the result of the command last returned.
	PostResponse(args []any)

	// Result returns the values the node evaluates to.
	Result() []any
}

// Block is a parsed command sequence. It evaluates to the result of its
// last command. A Block carries a cursor, so use Fork to evaluate the same
// program more than once.
type Block struct {
	source   string
	commands []command
	next     int
	last     []any
}

// Fork returns a fresh, rewound copy of the block sharing its program.
func (b *Block) Fork() *Block {
	return &Block{source: b.source, commands: b.commands}
}

// Len returns the number of commands.
func (b *Block) Len() int {
	return len(b.commands)
}

func (b *Block) Reset() {
	b.next = 0
	b.last = nil
}

func (b *Block) NextCommand(ns *Namespace) ([]any, bool, error) {
	if b.next >= len(b.commands) {
		return nil, false, nil
	}
	cmd := b.commands[b.next]
	b.next++

	args := make([]any, len(cmd))
	for i, w := range cmd {
		switch w.kind {
		case wordLiteral:
			args[i] = w.text
		case wordBlock:
			args[i] = w.block
		case wordVariable:
			value, ok := ns.Get(w.text)
			if !ok {
				return nil, false, fmt.Errorf("%w: $%s", ErrUnknownVariable, w.text)
			}
			args[i] = value
		}
	}
	return args, true, nil
}

func (b *Block) PostResponse(args []any) {
	b.last = args
}

func (b *Block) Result() []any {
	return b.last
}

// String returns the block's source text.
func (b *Block) String() string {
	return b.source
}

// Namespace holds script variables. Child namespaces see their parent's
// variables and shadow them on Set.
type Namespace struct {
	vars   map[string]any
	parent *Namespace
}

// NewNamespace creates a namespace whose lookups fall back to parent,
// which may be nil.
func NewNamespace(parent *Namespace) *Namespace {
	return &Namespace{vars: make(map[string]any), parent: parent}
}

func (n *Namespace) Get(name string) (any, bool) {
	for ns := n; ns != nil; ns = ns.parent {
		if value, ok := ns.vars[name]; ok {
			return value, true
		}
	}
	return nil, false
}

func (n *Namespace) Set(name string, value any) {
	n.vars[name] = value
}
