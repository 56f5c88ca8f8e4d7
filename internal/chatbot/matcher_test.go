package chatbot

import (
	"testing"
	"time"

	"github.com/expr-lang/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"reset", "password"}, Tokenize("How do I reset my PASSWORD?"))
	assert.Equal(t, []string{"policy", "holiday"}, Tokenize("policies, holidays & policies"))
	assert.Equal(t, []string{"process"}, Tokenize("the process"))
	assert.Empty(t, Tokenize("what is it?"))
}

func TestIsGreeting(t *testing.T) {
	for _, msg := range []string{"hi", "Hello!", "hey there", "Good morning team", "hiya bot"} {
		assert.True(t, IsGreeting(msg), msg)
	}
	for _, msg := range []string{"", "good", "there", "hi where is the canteen", "hello how do I book leave"} {
		assert.False(t, IsGreeting(msg), msg)
	}
}

func TestScore(t *testing.T) {
	faq := &FAQ{Question: "How many days of annual leave do I get?", Keywords: []string{"annual leave", "holiday"}}

	assert.Equal(t, 4, score(faq, tokenSet(Tokenize("how much annual leave do I have"))))
	assert.Equal(t, 2, score(faq, tokenSet(Tokenize("holiday allowance"))))
	assert.Equal(t, 1, score(faq, tokenSet(Tokenize("leave early"))), "one of two keyword words is only overlap")
	assert.Zero(t, score(faq, tokenSet(Tokenize("printer jam"))))
}

func TestRank(t *testing.T) {
	low := &FAQ{Question: "low", Priority: 1}
	high := &FAQ{Question: "high", Priority: 9}
	popular := &FAQ{Question: "popular", Priority: 1, Hits: 40}
	best := &FAQ{Question: "best"}

	cands := []candidate{{low, 3}, {high, 3}, {best, 5}, {popular, 3}}
	rank(cands)
	var order []string
	for _, c := range cands {
		order = append(order, c.faq.Question)
	}
	assert.Equal(t, []string{"best", "high", "popular", "low"}, order)
}

func TestCompileCondition(t *testing.T) {
	valid := []string{
		`hour >= 11 && hour < 14`,
		`weekday in ["saturday", "sunday"]`,
		`"vpn" in tokens`,
		`message contains "urgent"`,
	}
	for _, c := range valid {
		_, err := CompileCondition(c)
		assert.NoError(t, err, c)
	}
	for _, c := range []string{`hour >`, `hour + 1`, `unknown == 1`} {
		_, err := CompileCondition(c)
		assert.Error(t, err, c)
	}
}

func TestConditionEnv(t *testing.T) {
	at := time.Date(2026, 7, 4, 12, 30, 0, 0, time.UTC)
	env := newConditionEnv("Where is LUNCH", Tokenize("Where is LUNCH"), at)

	program, err := CompileCondition(`weekday == "saturday" && hour == 12 && "lunch" in tokens && message contains "lunch"`)
	require.NoError(t, err)
	out, err := expr.Run(program, env)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestProgramCache(t *testing.T) {
	cache := newProgramCache()
	first, err := cache.get("hour > 1")
	require.NoError(t, err)
	second, err := cache.get("hour > 1")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = cache.get("hour >")
	assert.Error(t, err)
}
