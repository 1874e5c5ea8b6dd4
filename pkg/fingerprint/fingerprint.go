// Package fingerprint computes the deterministic digest used as the Audit
// Cache key and as a similarity witness across the orchestrator.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/codeready-toolchain/ganaudit/pkg/judge"
)

// Input bundles the tuple the digest is computed over.
type Input struct {
	PromptTemplate string
	Candidate      string
	Rubric         judge.Rubric
	// ConfigSubset is the workflow configuration fields that affect the
	// judge's behavior (scope, threshold, maxCycles, candidates, judges,
	// applyFixes) rendered as stable key=value pairs by the caller.
	ConfigSubset map[string]string
}

// normalize strips trailing whitespace per line and collapses line endings
// while preserving semantic content.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// canonicalRubric renders a rubric's dimensions deterministically in their
// slice order; reordering the same dimensions changes the digest.
func canonicalRubric(r judge.Rubric) string {
	var b strings.Builder
	for _, d := range r.Dimensions {
		b.WriteString(d.Name)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(d.Weight, 'f', -1, 64))
		b.WriteByte(';')
	}
	return b.String()
}

func canonicalConfig(cfg map[string]string) string {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(cfg[k])
		b.WriteByte(';')
	}
	return b.String()
}

// Compute returns the hex-encoded SHA-256 digest over the normalized input
// tuple. Always succeeds — a fingerprint is always computable.
func Compute(in Input) string {
	h := sha256.New()
	writeField(h, normalize(in.PromptTemplate))
	writeField(h, normalize(in.Candidate))
	writeField(h, canonicalRubric(in.Rubric))
	writeField(h, canonicalConfig(in.ConfigSubset))
	return hex.EncodeToString(h.Sum(nil))
}

// writeField writes a length-prefixed field so that concatenation of
// adjacent fields can never produce an ambiguous boundary (e.g.
// ("ab","c") vs ("a","bc")).
func writeField(h interface{ Write([]byte) (int, error) }, field string) {
	_, _ = h.Write([]byte(strconv.Itoa(len(field))))
	_, _ = h.Write([]byte{'\n'})
	_, _ = h.Write([]byte(field))
	_, _ = h.Write([]byte{'\n'})
}
