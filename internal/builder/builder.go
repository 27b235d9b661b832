// Package builder defines the external collaborator that actually
// performs a feature's implementation work. Conductor hands it a
// prompt and captures its textual output; the builder itself (an LLM
// agent, a human operator, anything) is out of scope — only the marker
// contract its output must honor is specified.
package builder

import (
	"context"
	"regexp"
)

// Builder executes a prompt for a feature and returns the raw captured
// output for marker parsing, plus token usage for budget accounting.
type Builder interface {
	Build(ctx context.Context, prompt string) (output string, tokensIn, tokensOut int64, err error)
}

// Outcome is the parsed result of scanning a builder's output for a
// terminal marker.
type Outcome struct {
	Kind    OutcomeKind
	FeatureID string
	Reason  string // populated for Blocked
}

// OutcomeKind distinguishes the three terminal markers a builder may
// emit, plus the no-marker case meaning the worker should retry.
type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeFeatureComplete
	OutcomeBlocked
	OutcomeStuck
)

var (
	completeRe = regexp.MustCompile(`<promise>\s*FEATURE_COMPLETE:([^<:]+)\s*</promise>`)
	blockedRe  = regexp.MustCompile(`<promise>\s*BLOCKED:([^<:]+):([^<]*)</promise>`)
	stuckRe    = regexp.MustCompile(`<promise>\s*STUCK:([^<]+)</promise>`)
)

// ParseOutcome scans output for the first terminal marker, in the
// order it appears. Exactly one terminal marker is expected per
// invocation; if more than one is present, the earliest by string
// position wins.
func ParseOutcome(output string) Outcome {
	type hit struct {
		pos int
		out Outcome
	}
	var hits []hit

	if m := completeRe.FindStringSubmatchIndex(output); m != nil {
		hits = append(hits, hit{m[0], Outcome{Kind: OutcomeFeatureComplete, FeatureID: trim(output[m[2]:m[3]])}})
	}
	if m := blockedRe.FindStringSubmatchIndex(output); m != nil {
		hits = append(hits, hit{m[0], Outcome{Kind: OutcomeBlocked, FeatureID: trim(output[m[2]:m[3]]), Reason: trim(output[m[4]:m[5]])}})
	}
	if m := stuckRe.FindStringSubmatchIndex(output); m != nil {
		hits = append(hits, hit{m[0], Outcome{Kind: OutcomeStuck, FeatureID: trim(output[m[2]:m[3]])}})
	}

	if len(hits) == 0 {
		return Outcome{Kind: OutcomeNone}
	}
	best := hits[0]
	for _, h := range hits[1:] {
		if h.pos < best.pos {
			best = h
		}
	}
	return best.out
}

func trim(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}
