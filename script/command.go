package script

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/stack"
)

// Sentinel errors for the command registry and evaluation.
var (
	ErrCommandExists  = errors.New("command already registered")
	ErrUnknownCommand = errors.New("unknown command")
)

func init() {
	protocol.RegisterErrorTag(ErrUnknownCommand, "UnknownCommand")
}

// Command builds the frame that executes one invocation. args excludes the
// command name.
type Command func(scope *Scope, args []any) (stack.StackFrame, error)

// CommandRegistry maps command names to Commands. It is safe for
// concurrent use.
type CommandRegistry struct {
	commands map[string]Command
	mu       sync.RWMutex
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]Command)}
}

// DefaultCommands returns a registry holding the builtin commands.
func DefaultCommands() *CommandRegistry {
	r := NewCommandRegistry()
	for name, cmd := range builtins() {
		r.commands[name] = cmd
	}
	return r
}

// Register adds cmd under name. Returns ErrCommandExists if taken.
func (r *CommandRegistry) Register(name string, cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("%w: %s", ErrCommandExists, name)
	}
	r.commands[name] = cmd
	return nil
}

func (r *CommandRegistry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns the registered command names in sorted order.
func (r *CommandRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scope is what commands evaluate against: the variables and the commands
// of one evaluation.
type Scope struct {
	Vars     *Namespace
	Commands *CommandRegistry
}

// NewScope creates a scope with an empty namespace.
func NewScope(commands *CommandRegistry) *Scope {
	return &Scope{Vars: NewNamespace(nil), Commands: commands}
}

// Evaluate returns a frame evaluating node in this scope.
func (s *Scope) Evaluate(node Node) *Evaluator {
	return NewEvaluator(node, s)
}
