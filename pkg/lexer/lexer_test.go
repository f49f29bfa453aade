package lexer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xplshn/layoutc/pkg/token"
)

func TestTokens(t *testing.T) {
	src := "#[implicit(warp_memory: WarpMemory)]\nfn f(x: felt252) -> u8 { // widen\n    let y = 0x1F + x; y != 2 }"
	toks, err := NewLexer([]rune(src), 3).All()
	require.NoError(t, err)

	var types []token.Type
	for _, tok := range toks {
		types = append(types, tok.Type)
		require.Equal(t, 3, tok.FileIndex)
	}
	require.Equal(t, []token.Type{
		token.Attribute, token.Fn, token.Ident, token.LParen, token.Ident, token.Colon, token.Ident, token.RParen,
		token.Arrow, token.Ident, token.LBrace,
		token.Let, token.Ident, token.Eq, token.Number, token.Plus, token.Ident, token.Semi,
		token.Ident, token.Neq, token.Number, token.RBrace, token.EOF,
	}, types)

	require.Equal(t, "implicit(warp_memory: WarpMemory)", toks[0].Value)
	require.Equal(t, "0x1F", toks[14].Value)
	require.Equal(t, 3, toks[11].Line)
	require.Equal(t, 5, toks[11].Column)
	require.Equal(t, 3, toks[11].Len)
}

func TestPathSeparator(t *testing.T) {
	toks, err := NewLexer([]rune("WARP_STORAGE::read(a)"), 0).All()
	require.NoError(t, err)
	require.Equal(t, token.PathSep, toks[1].Type)
	require.Equal(t, "read", toks[2].Value)
}

func TestErrors(t *testing.T) {
	for _, src := range []string{"fn f() { a $ b }", "#[unterminated", "a ! b"} {
		_, err := NewLexer([]rune(src), 0).All()
		var lexErr *Error
		require.True(t, errors.As(err, &lexErr), src)
		require.NotEmpty(t, lexErr.Msg)
	}
}
