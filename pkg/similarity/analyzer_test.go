package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeFewerThanTwoTexts(t *testing.T) {
	a := New()
	assert.Equal(t, Result{}, a.Analyze(nil))
	assert.Equal(t, Result{}, a.Analyze([]string{"only one"}))
}

func TestAnalyzeIdenticalTextsAreStagnant(t *testing.T) {
	a := New()
	text := "func add(a, b int) int {\n\treturn a + b\n}"
	res := a.Analyze([]string{text, text, text})
	assert.Equal(t, 1.0, res.AverageSimilarity)
	assert.True(t, res.IsStagnant)
	require := assert.New(t)
	require.Len(res.RepeatedPatterns, 1)
	require.Equal(text, res.RepeatedPatterns[0])
}

func TestAnalyzeDissimilarTextsNotStagnant(t *testing.T) {
	a := New()
	res := a.Analyze([]string{
		"package foo\nfunc Add(a, b int) int { return a + b }",
		"package bar\ntype Widget struct { Name string; Count int }",
	})
	assert.Less(t, res.AverageSimilarity, 0.95)
	assert.False(t, res.IsStagnant)
}

func TestAnalyzeWhitespaceOnlyDifferenceIsIdentical(t *testing.T) {
	a := New()
	res := a.Analyze([]string{"func add(a, b) { return a+b }", "func   add(a,   b)   {   return a+b }"})
	assert.Equal(t, 1.0, res.AverageSimilarity)
}

func TestAnalyzeRepeatedPatternAcrossMajority(t *testing.T) {
	a := New()
	shared := "	if err != nil { return err }"
	texts := []string{
		shared + "\nfunc one() {}",
		shared + "\nfunc two() {}",
		"totally different content with no shared lines at all",
	}
	res := a.Analyze(texts)
	assert.Contains(t, res.RepeatedPatterns, shared)
}

func TestPairwiseSimilarityBounded(t *testing.T) {
	sim := pairwiseSimilarity("abc", "xyz123456789")
	assert.GreaterOrEqual(t, sim, 0.0)
	assert.LessOrEqual(t, sim, 1.0)
}
