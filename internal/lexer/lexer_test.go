package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trailql/tql/internal/lexer"
)

func kinds(tokens []lexer.Token) []lexer.Kind {
	out := make([]lexer.Kind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Kind
	}
	return out
}

func TestTokenizeKeywordsAndOperators(t *testing.T) {
	toks, err := lexer.Tokenize(`from links depth 2 where priority >= 3`)
	require.NoError(t, err)
	require.Equal(t, []lexer.Kind{
		lexer.KindKeyword, lexer.KindIdent, lexer.KindKeyword, lexer.KindNumber,
		lexer.KindKeyword, lexer.KindIdent, lexer.KindOperator, lexer.KindNumber, lexer.KindEOF,
	}, kinds(toks))
}

func TestTokenizeDurationLiteral(t *testing.T) {
	toks, err := lexer.Tokenize(`3d`)
	require.NoError(t, err)
	require.Equal(t, lexer.KindDuration, toks[0].Kind)
	require.Equal(t, "3d", toks[0].Text)
}

func TestTokenizeISODate(t *testing.T) {
	toks, err := lexer.Tokenize(`2024-03-15`)
	require.NoError(t, err)
	require.Equal(t, lexer.KindDate, toks[0].Kind)
	require.Equal(t, "2024-03-15", toks[0].Text)
}

func TestTokenizeISODateTime(t *testing.T) {
	toks, err := lexer.Tokenize(`2024-03-15T08:30:00`)
	require.NoError(t, err)
	require.Equal(t, lexer.KindDate, toks[0].Kind)
}

func TestTokenizePlainNumberIsNotConfusedWithDuration(t *testing.T) {
	toks, err := lexer.Tokenize(`3.5`)
	require.NoError(t, err)
	require.Equal(t, lexer.KindNumber, toks[0].Kind)
	require.Equal(t, "3.5", toks[0].Text)
}

func TestTokenizeStringWithEscapes(t *testing.T) {
	toks, err := lexer.Tokenize(`"line1\nline2\"quoted\""`)
	require.NoError(t, err)
	require.Equal(t, lexer.KindString, toks[0].Kind)
	require.Equal(t, "line1\nline2\"quoted\"", toks[0].Text)
}

func TestTokenizeNullSafeOperators(t *testing.T) {
	toks, err := lexer.Tokenize(`a =? b !=? c`)
	require.NoError(t, err)
	require.Equal(t, "=?", toks[1].Text)
	require.Equal(t, "!=?", toks[3].Text)
}

func TestTokenizeRangeOperator(t *testing.T) {
	toks, err := lexer.Tokenize(`1..10`)
	require.NoError(t, err)
	require.Equal(t, lexer.KindNumber, toks[0].Kind)
	require.Equal(t, lexer.KindOperator, toks[1].Kind)
	require.Equal(t, "..", toks[1].Text)
	require.Equal(t, lexer.KindNumber, toks[2].Kind)
}

func TestTokenizeUnexpectedCharacterErrors(t *testing.T) {
	_, err := lexer.Tokenize(`a # b`)
	require.Error(t, err)
	var lexErr *lexer.Error
	require.ErrorAs(t, err, &lexErr)
}

func TestTokenizeUnterminatedStringErrors(t *testing.T) {
	_, err := lexer.Tokenize(`"unterminated`)
	require.Error(t, err)
}
