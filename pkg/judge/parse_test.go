package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdictDirect(t *testing.T) {
	raw := []byte(`{"overall": 91, "verdict": "pass", "dimensions": [{"name":"Correctness","score":95}]}`)
	v, err := parseVerdict(raw)
	require.NoError(t, err)
	assert.Equal(t, 91, v.Overall)
	assert.False(t, v.UsedFallback)
}

func TestParseVerdictGreedyFallbackObject(t *testing.T) {
	raw := []byte("Here is my review:\n```json\n{\"overall\": 80, \"verdict\": \"revise\"}\n```\nThanks!")
	v, err := parseVerdict(raw)
	require.NoError(t, err)
	assert.Equal(t, 80, v.Overall)
	assert.True(t, v.UsedFallback)
}

func TestParseVerdictGreedyFallbackNested(t *testing.T) {
	raw := []byte(`noise {"overall": 70, "review": {"summary": "ok {nested}"}, "verdict": "pass"} trailing`)
	v, err := parseVerdict(raw)
	require.NoError(t, err)
	assert.Equal(t, 70, v.Overall)
	assert.Equal(t, "ok {nested}", v.Review.Summary)
}

func TestParseVerdictUnparseable(t *testing.T) {
	_, err := parseVerdict([]byte("not json at all"))
	require.Error(t, err)
}

func TestVerdictNormalizeClamps(t *testing.T) {
	v := Verdict{
		Overall:    150,
		Dimensions: []Dimension{{Name: "X", Score: -5}, {Name: "Y", Score: 200}},
		Verdict:    "maybe",
	}
	v.Normalize()
	assert.Equal(t, 100, v.Overall)
	assert.Equal(t, 0, v.Dimensions[0].Score)
	assert.Equal(t, 100, v.Dimensions[1].Score)
	assert.Equal(t, VerdictRevise, v.Verdict)
}

func TestValidateRequestRejectsEmptyCandidate(t *testing.T) {
	err := validateRequest(Request{Candidate: "", Rubric: StandardRubric()})
	require.Error(t, err)
}

func TestValidateRequestRejectsBadRubricWeights(t *testing.T) {
	req := Request{
		Candidate: "x",
		Rubric:    Rubric{Dimensions: []RubricDimension{{Name: "A", Weight: 0.4}}},
	}
	require.Error(t, validateRequest(req))
}

func TestValidateRequestAcceptsStandardRubric(t *testing.T) {
	req := Request{Candidate: "x", Rubric: StandardRubric()}
	assert.NoError(t, validateRequest(req))
}

func TestIsTransientStderr(t *testing.T) {
	assert.True(t, isTransientStderr("Error: connection refused"))
	assert.True(t, isTransientStderr("dial tcp: i/o timeout"))
	assert.False(t, isTransientStderr("syntax error: unexpected token"))
}
