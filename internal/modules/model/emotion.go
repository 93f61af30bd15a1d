package model

import (
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const (
	RiskNone     = 0
	RiskLow      = 1
	RiskModerate = 2
	RiskHigh     = 3
)

// EmotionAnalysisResult is the structured emotion snapshot produced by the
// analyzer. It is stored serialized on diaries and sessions.
type EmotionAnalysisResult struct {
	PrimaryEmotion         string    `json:"primaryEmotion"`
	EmotionScore           int       `json:"emotionScore"`
	IsNegative             bool      `json:"isNegative"`
	RiskLevel              int       `json:"riskLevel"`
	Keywords               []string  `json:"keywords"`
	Suggestion             string    `json:"suggestion"`
	Icon                   string    `json:"icon"`
	Label                  string    `json:"label"`
	RiskDescription        string    `json:"riskDescription"`
	ImprovementSuggestions []string  `json:"improvementSuggestions"`
	Timestamp              time.Time `json:"timestamp"`
}

// DefaultEmotionResult is the neutral snapshot returned whenever analysis
// cannot produce a trustworthy result.
func DefaultEmotionResult() EmotionAnalysisResult {
	return EmotionAnalysisResult{
		PrimaryEmotion:  "Neutral",
		EmotionScore:    50,
		IsNegative:      false,
		RiskLevel:       RiskNone,
		Keywords:        []string{"everyday", "reflection", "calm"},
		Suggestion:      "Thank you for sharing. Take a slow breath and be gentle with yourself today.",
		Icon:            "😐",
		Label:           "Neutral",
		RiskDescription: "No notable emotional risk detected.",
		ImprovementSuggestions: []string{
			"Keep writing down how you feel",
			"Take a short walk outside",
			"Reach out to someone you trust",
		},
		Timestamp: time.Now(),
	}
}

const (
	maxKeywords     = 5
	maxImprovements = 4
)

// Normalize clamps numeric fields into range, trims list fields to their
// limits and fills empty presentation fields from the default snapshot.
func (r *EmotionAnalysisResult) Normalize() {
	def := DefaultEmotionResult()

	r.PrimaryEmotion = strings.TrimSpace(r.PrimaryEmotion)
	r.EmotionScore = clamp(r.EmotionScore, 0, 100)
	r.RiskLevel = clamp(r.RiskLevel, RiskNone, RiskHigh)

	r.Keywords = trimList(r.Keywords, maxKeywords)
	if len(r.Keywords) == 0 {
		r.Keywords = def.Keywords
	}
	r.ImprovementSuggestions = trimList(r.ImprovementSuggestions, maxImprovements)
	if len(r.ImprovementSuggestions) == 0 {
		r.ImprovementSuggestions = def.ImprovementSuggestions
	}
	if r.Suggestion == "" {
		r.Suggestion = def.Suggestion
	}
	if r.Label == "" {
		r.Label = r.PrimaryEmotion
	}
	if r.Icon == "" {
		r.Icon = def.Icon
	}
	if r.RiskDescription == "" {
		r.RiskDescription = def.RiskDescription
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
}

func (r EmotionAnalysisResult) Marshal() (string, error) {
	return sonic.MarshalString(r)
}

// ParseEmotionSnapshot decodes a stored snapshot, falling back to the
// default when the text is empty or unreadable.
func ParseEmotionSnapshot(raw *string) EmotionAnalysisResult {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return DefaultEmotionResult()
	}
	var r EmotionAnalysisResult
	if err := sonic.UnmarshalString(*raw, &r); err != nil {
		return DefaultEmotionResult()
	}
	return r
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func trimList(in []string, limit int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}
