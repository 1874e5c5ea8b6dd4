package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCandidateFindsFirstCodeBlock(t *testing.T) {
	text := "some reasoning\n```go\nfunc f() {}\n```\nmore text\n```go\nfunc g() {}\n```"
	candidate, ok := extractCandidate(text)
	assert.True(t, ok)
	assert.Equal(t, "func f() {}", candidate)
}

func TestExtractCandidateHandlesUntaggedFence(t *testing.T) {
	candidate, ok := extractCandidate("```\nplain code\n```")
	assert.True(t, ok)
	assert.Equal(t, "plain code", candidate)
}

func TestExtractCandidateReturnsFalseWithoutFence(t *testing.T) {
	_, ok := extractCandidate("just prose, no code here")
	assert.False(t, ok)
}

func TestExtractCandidateSkipsGanConfigFence(t *testing.T) {
	text := "```gan-config\n{\"threshold\": 90}\n```\n```go\nfunc f() {}\n```"
	candidate, ok := extractCandidate(text)
	assert.True(t, ok)
	assert.Equal(t, "func f() {}", candidate)
}

func TestExtractCandidateSkipsJSONConfigFence(t *testing.T) {
	text := "```json\n{\"threshold\": 90}\n```\n```go\nfunc f() {}\n```"
	candidate, ok := extractCandidate(text)
	assert.True(t, ok)
	assert.Equal(t, "func f() {}", candidate)
}

func TestExtractCandidateConfigOnlyThoughtHasNoCode(t *testing.T) {
	for _, text := range []string{
		"```gan-config\n{\"threshold\": 90}\n```",
		"```json\n{\"threshold\": 90}\n```",
	} {
		_, ok := extractCandidate(text)
		assert.False(t, ok, "config-only thought %q", text)
	}
}
