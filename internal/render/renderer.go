package render

import (
	"fmt"

	"flowmic/internal/domain"
)

const (
	Placeholder    = "---"
	dominantPrefix = "Dominant State: "
	noDominant     = "None"
)

// InitialView is the result area before any submission completes.
func InitialView() domain.ResultView {
	return domain.ResultView{
		Transcription: Placeholder,
		Emotion:       Placeholder,
		Dominant:      dominantPrefix + noDominant,
		Matches:       []string{},
	}
}

// Render maps a result onto the display. A nil result leaves prev untouched.
func Render(prev domain.ResultView, result *domain.AnalysisResult) domain.ResultView {
	if result == nil {
		return prev
	}

	matches := make([]string, 0, len(result.MatchedWords))
	for _, m := range result.MatchedWords {
		matches = append(matches, FormatMatch(m))
	}

	return domain.ResultView{
		Transcription: orPlaceholder(result.Transcription, Placeholder),
		Emotion:       orPlaceholder(result.Emotion, Placeholder),
		Dominant:      dominantPrefix + orPlaceholder(result.DominantState, noDominant),
		Matches:       matches,
		Series:        result.StatePercentages.Series(),
	}
}

// FormatMatch renders one matched word as "token → anchor (sim: 0.00)".
func FormatMatch(m domain.MatchedWord) string {
	return fmt.Sprintf("%s → %s (sim: %.2f)", m.Token, m.MatchedAnchor, m.Similarity)
}

func orPlaceholder(value string, placeholder string) string {
	if value == "" {
		return placeholder
	}
	return value
}
