// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

package account

import (
	"github.com/nbutton23/zxcvbn-go"
	"github.com/samber/oops"
)

// Strength policy configuration.
const (
	// MinStrengthScore is the default policy threshold: a password is
	// acceptable only if it scores at least this value.
	MinStrengthScore = 3

	// ScoreUnscorable marks an outcome whose password could not be
	// evaluated by the scorer. Always invalid (fail closed).
	ScoreUnscorable = -1
)

// ScoreResult is the raw verdict of a strength scoring oracle.
type ScoreResult struct {
	Score            int // 0 (trivially guessable) to 4 (very strong)
	Warning          string
	Suggestions      []string
	CrackTimeDisplay string
}

// StrengthScorer estimates password strength. Context inputs are known
// account-identifying strings (username, email) so the scorer can penalize
// passwords that embed them.
type StrengthScorer interface {
	Score(password string, contextInputs []string) (ScoreResult, error)
}

// Outcome is the policy decision for one password. It is ephemeral and
// never persisted.
type Outcome struct {
	Valid       bool
	Score       int
	Feedback    string
	Suggestions []string
	Warning     string
	CrackTime   string
}

// feedbackForScore maps a score band to its display feedback.
func feedbackForScore(score int) string {
	switch score {
	case 0:
		return "very weak"
	case 1:
		return "weak"
	case 2:
		return "insufficient"
	case 3:
		return "good"
	case 4:
		return "very good"
	default:
		return "could not be evaluated"
	}
}

// StrengthEvaluator converts raw scorer verdicts into pass/fail policy
// decisions with display feedback.
type StrengthEvaluator struct {
	scorer   StrengthScorer
	minScore int
}

// NewStrengthEvaluator creates a StrengthEvaluator. minScore is the policy
// threshold; pass MinStrengthScore unless a deployment overrides it.
func NewStrengthEvaluator(scorer StrengthScorer, minScore int) (*StrengthEvaluator, error) {
	if scorer == nil {
		return nil, oops.Code("ACCOUNT_INVALID_DEPS").Errorf("strength scorer is required")
	}
	if minScore < 0 || minScore > 4 {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").
			With("min_score", minScore).
			Errorf("minimum strength score must be between 0 and 4")
	}
	return &StrengthEvaluator{scorer: scorer, minScore: minScore}, nil
}

// Evaluate scores a password against the policy. Scorer failures yield an
// invalid, unscorable outcome rather than an error.
func (e *StrengthEvaluator) Evaluate(password string, contextInputs []string) Outcome {
	result, err := e.scorer.Score(password, contextInputs)
	if err != nil || result.Score < 0 || result.Score > 4 {
		return Outcome{
			Valid:    false,
			Score:    ScoreUnscorable,
			Feedback: feedbackForScore(ScoreUnscorable),
		}
	}

	return Outcome{
		Valid:       result.Score >= e.minScore,
		Score:       result.Score,
		Feedback:    feedbackForScore(result.Score),
		Suggestions: result.Suggestions,
		Warning:     result.Warning,
		CrackTime:   result.CrackTimeDisplay,
	}
}

// ZxcvbnScorer implements StrengthScorer using the zxcvbn entropy estimator.
//
// The Go port exposes the score and crack-time estimate but not the upstream
// feedback messages, so Warning and Suggestions are always empty here. The
// Outcome's banded Feedback string is derived from the score by the
// evaluator and is unaffected.
type ZxcvbnScorer struct{}

// NewZxcvbnScorer creates a new ZxcvbnScorer.
func NewZxcvbnScorer() *ZxcvbnScorer {
	return &ZxcvbnScorer{}
}

// Score estimates password strength with zxcvbn.
func (z *ZxcvbnScorer) Score(password string, contextInputs []string) (ScoreResult, error) {
	match := zxcvbn.PasswordStrength(password, contextInputs)
	return ScoreResult{
		Score:            match.Score,
		CrackTimeDisplay: match.CrackTimeDisplay,
	}, nil
}

// Compile-time interface check.
var _ StrengthScorer = (*ZxcvbnScorer)(nil)
