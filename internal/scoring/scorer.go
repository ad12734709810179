package scoring

import (
	"fmt"
	"sync"

	"github.com/norddok/norddok/internal/domain"
)

// PatternType identifies how an approval-derived pattern was obtained.
type PatternType string

const (
	PatternTypeRecommended       PatternType = "recommended_pattern"
	PatternTypeSuccessfulElement PatternType = "successful_element"
)

// Category buckets a confidence score for reporting.
type Category string

const (
	CategoryVeryHigh Category = "very_high"
	CategoryHigh     Category = "high"
	CategoryMedium   Category = "medium"
	CategoryLow      Category = "low"
	CategoryVeryLow  Category = "very_low"
)

// Breakdown records each term of an approval-pattern confidence calculation
// so reviewers can audit how a score came about.
type Breakdown struct {
	Base                float64 `json:"base"`
	MunicipalityBonus   float64 `json:"municipality_bonus"`
	Municipality        string  `json:"municipality"`
	SpeedBonus          float64 `json:"speed_bonus"`
	ApprovalSpeed       string  `json:"approval_speed"`
	TypeBonus           float64 `json:"type_bonus"`
	PatternType         string  `json:"pattern_type"`
	ReplicabilityFactor float64 `json:"replicability_factor"`
	Calculation         string  `json:"calculation"`
}

// Scorer computes confidence scores for knowledge chunks and tracks how often
// individual patterns have been confirmed in use. The confirmation tally lives
// for the lifetime of the owning component.
type Scorer struct {
	mu            sync.Mutex
	confirmations map[string]int
}

// NewScorer creates a Scorer with an empty confirmation tally.
func NewScorer() *Scorer {
	return &Scorer{
		confirmations: make(map[string]int),
	}
}

// InitialConfidence computes the confidence for a freshly ingested chunk.
//
// Base by source kind, multiplied by approval-status and replicability
// factors, then municipality and approval-speed bonuses added on top. A
// rejected chunk always scores 0.0 regardless of the other inputs.
func InitialConfidence(
	kind domain.SourceKind,
	status domain.ApprovalStatus,
	municipality string,
	replicable bool,
	speed domain.ApprovalSpeed,
) float64 {
	var base float64
	switch kind {
	case domain.SourceKindFeedback:
		base = 0.75
	case domain.SourceKindApprovedExample:
		base = 0.65
	case domain.SourceKindRegulation:
		base = 0.85
	case domain.SourceKindDerivedInsight:
		base = 0.70
	default:
		base = 0.50
	}

	var statusMultiplier float64
	switch status {
	case domain.ApprovalStatusApproved:
		statusMultiplier = 1.0
	case domain.ApprovalStatusRejected:
		return 0.0
	default:
		statusMultiplier = 0.6
	}

	municipalityBonus := 0.0
	if municipality != "" {
		municipalityBonus = 0.1
	}

	replicabilityMultiplier := 1.0
	if !replicable {
		replicabilityMultiplier = 0.85
	}

	var speedBonus float64
	switch speed {
	case domain.ApprovalSpeedFast:
		speedBonus = 0.1
	case domain.ApprovalSpeedStandard:
		speedBonus = 0.05
	default:
		speedBonus = 0.0
	}

	confidence := (base*statusMultiplier*replicabilityMultiplier) +
		municipalityBonus + speedBonus

	return clamp(confidence)
}

// UpdatedConfidence re-scores a chunk from accumulated evidence. Confirmations
// boost with diminishing returns (first +0.10, second +0.05, third +0.033,
// and so on), each rejection costs 0.15, and age applies a slow decay that
// bottoms out at 80% of the pre-decay value.
func UpdatedConfidence(current float64, confirmations, rejections, ageDays int) float64 {
	confirmationBoost := 0.0
	for i := 0; i < confirmations; i++ {
		confirmationBoost += 0.1 / float64(i+1)
	}

	rejectionPenalty := float64(rejections) * 0.15

	decayFactor := 1.0 - float64(ageDays)/9000.0
	if decayFactor < 0.8 {
		decayFactor = 0.8
	}

	updated := (current + confirmationBoost - rejectionPenalty) * decayFactor

	return clamp(updated)
}

// ApprovalPatternConfidence scores a pattern extracted from an approval
// outcome. Unlike InitialConfidence this formula is purely additive so the
// individual terms stay legible in the returned Breakdown. A non-replicable
// pattern is scaled by 0.85 after the sum.
func ApprovalPatternConfidence(
	municipality string,
	speed domain.ApprovalSpeed,
	patternType PatternType,
	replicable bool,
) (float64, Breakdown) {
	base := 0.70

	municipalityBonus := 0.0
	municipalityLabel := "none"
	if municipality != "" {
		municipalityBonus = 0.08
		municipalityLabel = municipality
	}

	if speed == "" {
		speed = domain.ApprovalSpeedUnknown
	}
	var speedBonus float64
	switch speed {
	case domain.ApprovalSpeedFast:
		speedBonus = 0.12
	case domain.ApprovalSpeedNormal, domain.ApprovalSpeedStandard:
		speedBonus = 0.06
	case domain.ApprovalSpeedSlow:
		speedBonus = 0.0
	default:
		speedBonus = 0.03
	}

	var typeBonus float64
	var typeLabel string
	switch patternType {
	case PatternTypeRecommended:
		typeBonus = 0.08
		typeLabel = "explicit recommendation"
	case PatternTypeSuccessfulElement:
		typeBonus = 0.04
		typeLabel = "successful element"
	default:
		typeBonus = 0.0
		typeLabel = "generic pattern"
	}

	confidence := base + municipalityBonus + speedBonus + typeBonus

	replicabilityFactor := 1.0
	if !replicable {
		replicabilityFactor = 0.85
		confidence *= replicabilityFactor
	}

	final := clamp(confidence)

	breakdown := Breakdown{
		Base:                base,
		MunicipalityBonus:   municipalityBonus,
		Municipality:        municipalityLabel,
		SpeedBonus:          speedBonus,
		ApprovalSpeed:       string(speed),
		TypeBonus:           typeBonus,
		PatternType:         typeLabel,
		ReplicabilityFactor: replicabilityFactor,
		Calculation: fmt.Sprintf(
			"Base: %.2f + Municipality: %.2f + Speed: %.2f (%s) + Type: %.2f (%s) x Replicability: %.2f = %.2f",
			base, municipalityBonus, speedBonus, speed, typeBonus, typeLabel,
			replicabilityFactor, final,
		),
	}

	return final, breakdown
}

// RejectionPatternConfidence scores a pattern extracted from a rejection
// outcome. Always 0.0 so rejected patterns are never surfaced for drafting;
// severity is tracked in chunk metadata, not in the score.
func RejectionPatternConfidence(severity domain.Severity) float64 {
	_ = severity
	return 0.0
}

// GetCategory buckets a confidence score for reporting.
func GetCategory(confidence float64) Category {
	switch {
	case confidence >= 0.85:
		return CategoryVeryHigh
	case confidence >= 0.75:
		return CategoryHigh
	case confidence >= 0.60:
		return CategoryMedium
	case confidence >= 0.40:
		return CategoryLow
	default:
		return CategoryVeryLow
	}
}

// RecordConfirmation notes that the given pattern was used successfully.
func (s *Scorer) RecordConfirmation(patternID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmations[patternID]++
}

// ConfirmationCount returns how many confirmations a pattern has accumulated.
func (s *Scorer) ConfirmationCount(patternID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmations[patternID]
}

func clamp(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
