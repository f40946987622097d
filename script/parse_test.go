package script

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(t *testing.T, b *Block, ns *Namespace) [][]any {
	t.Helper()
	var out [][]any
	for {
		args, ok, err := b.NextCommand(ns)
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, args)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   [][]any
	}{
		{"empty", "", nil},
		{"bare words", "echo hello world", [][]any{{"echo", "hello", "world"}}},
		{"separators", "a; b\nc", [][]any{{"a"}, {"b"}, {"c"}}},
		{"blank lines", "\n\n  a  \n\n", [][]any{{"a"}}},
		{"quoted", `echo "hi there" "a\tb\n" "\"q\""`, [][]any{{"echo", "hi there", "a\tb\n", `"q"`}}},
		{"comment", "# setup\necho x # not a comment", [][]any{{"echo", "x", "#", "not", "a", "comment"}}},
		{"address", "/backend.get key", [][]any{{"/backend.get", "key"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Parse(tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.want, words(t, b, NewNamespace(nil)))
		})
	}
}

func TestParse_Blocks(t *testing.T) {
	b, err := Parse("try { a; b { nested } } catch {c}")
	require.NoError(t, err)
	require.Equal(t, 1, b.Len())

	args, ok, err := b.NextCommand(NewNamespace(nil))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, args, 4)

	body, ok := args[1].(*Block)
	require.True(t, ok)
	assert.Equal(t, "a; b { nested }", body.String())
	assert.Equal(t, 2, body.Len())

	handler, ok := args[3].(*Block)
	require.True(t, ok)
	assert.Equal(t, "c", handler.String())
}

func TestParse_Variables(t *testing.T) {
	b, err := Parse("echo $name-x $n2")
	require.NoError(t, err)

	ns := NewNamespace(nil)
	ns.Set("name-x", "world")
	ns.Set("n2", 2)
	assert.Equal(t, [][]any{{"echo", "world", 2}}, words(t, b, ns))

	b.Reset()
	_, _, err = b.NextCommand(NewNamespace(nil))
	assert.ErrorIs(t, err, ErrUnknownVariable)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		line   int
		column int
	}{
		{"unterminated string", `echo "abc`, 1, 10},
		{"missing brace", "try {\n  a\n", 3, 1},
		{"stray brace", "echo }", 1, 6},
		{"empty variable", "echo $ x", 1, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.source)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSyntax)

			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.line, se.Line)
			assert.Equal(t, tt.column, se.Column)
		})
	}
}

func TestNamespace_Parent(t *testing.T) {
	parent := NewNamespace(nil)
	parent.Set("a", "outer")
	child := NewNamespace(parent)

	v, ok := child.Get("a")
	require.True(t, ok)
	assert.Equal(t, "outer", v)

	child.Set("a", "inner")
	v, _ = child.Get("a")
	assert.Equal(t, "inner", v)
	v, _ = parent.Get("a")
	assert.Equal(t, "outer", v)
}

func TestBlock_Fork(t *testing.T) {
	b, err := Parse("a; b")
	require.NoError(t, err)

	_, _, _ = b.NextCommand(nil)
	fork := b.Fork()
	args, ok, err := fork.NextCommand(nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{"a"}, args)
}
