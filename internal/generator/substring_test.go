package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/newsdesk-cli/internal/model"
)

func testTickers() []model.Ticker {
	return []model.Ticker{
		{ID: 1, Symbol: "GAZP", Name: "Газпром", Aliases: []string{"Gazprom"}},
		{ID: 2, Symbol: "SBER", Name: "Сбербанк", Aliases: []string{"Sberbank", "Сбер"}},
	}
}

func preparedSubstring(t *testing.T) *Substring {
	t.Helper()
	g := NewSubstring()
	require.NoError(t, g.Prepare(context.Background(), testTickers()))
	return g
}

func TestSubstring_SymbolMatch(t *testing.T) {
	g := preparedSubstring(t)

	signals, err := g.Generate(context.Background(), "Газпром (GAZP) объявил о выплате дивидендов")
	require.NoError(t, err)
	require.Contains(t, signals, int64(1))

	sig := signals[1]
	assert.Equal(t, model.MentionTypeSymbol, sig.MentionType)
	assert.Equal(t, "GAZP", sig.MentionText)
	assert.Equal(t, 1.0, sig.RawScore)
	assert.Equal(t, model.MethodSubstring, sig.Method)
}

func TestSubstring_NameMatch(t *testing.T) {
	g := preparedSubstring(t)

	signals, err := g.Generate(context.Background(), "Сбербанк представил отчетность")
	require.NoError(t, err)
	require.Contains(t, signals, int64(2))

	sig := signals[2]
	assert.Equal(t, model.MentionTypeName, sig.MentionType)
	assert.Equal(t, 0.8, sig.RawScore)
}

func TestSubstring_AliasMatch(t *testing.T) {
	g := preparedSubstring(t)

	signals, err := g.Generate(context.Background(), "Gazprom raised its dividend guidance")
	require.NoError(t, err)
	require.Contains(t, signals, int64(1))
	assert.Equal(t, model.MentionTypeAlias, signals[1].MentionType)
	assert.Equal(t, 0.8, signals[1].RawScore)
}

func TestSubstring_CaseInsensitive(t *testing.T) {
	g := preparedSubstring(t)

	signals, err := g.Generate(context.Background(), "shares of gazp rallied")
	require.NoError(t, err)
	require.Contains(t, signals, int64(1))
	assert.Equal(t, 1.0, signals[1].RawScore)
}

func TestSubstring_WholeWordOnly(t *testing.T) {
	g := preparedSubstring(t)

	// "GAZPROMBANK" contains "gazp" as a prefix but not as a whole word.
	signals, err := g.Generate(context.Background(), "GAZPROMBANK issued bonds")
	require.NoError(t, err)
	assert.NotContains(t, signals, int64(1))
}

func TestSubstring_NoMention(t *testing.T) {
	g := preparedSubstring(t)

	signals, err := g.Generate(context.Background(), "Кабинет министров обсудил бюджет")
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestSubstring_SymbolPreferredOverName(t *testing.T) {
	g := preparedSubstring(t)

	signals, err := g.Generate(context.Background(), "Сбербанк (SBER) нарастил прибыль")
	require.NoError(t, err)
	require.Contains(t, signals, int64(2))
	assert.Equal(t, model.MentionTypeSymbol, signals[2].MentionType)
	assert.Equal(t, 1.0, signals[2].RawScore)
}
