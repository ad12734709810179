package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/norddok/norddok/internal/domain"
	"github.com/norddok/norddok/internal/telemetry"
)

// maxApprovedSamples caps how many approved submissions go into one analysis
// prompt; rejections always go in full because they carry the constraints.
const maxApprovedSamples = 5

const insightSystemPrompt = "You are an expert in Danish BR18 building regulations and municipality approval processes."

// InsightAnalyzer runs one analysis prompt against a language model and
// returns its raw text output.
type InsightAnalyzer interface {
	GenerateAnalysis(ctx context.Context, system, user string) (string, error)
}

// LearningInsight is one reviewer-behavior pattern extracted from accumulated
// feedback for a municipality.
type LearningInsight struct {
	ID                 string              `json:"id"`
	Municipality       string              `json:"municipality"`
	DocumentType       domain.DocumentType `json:"document_type"`
	PatternDescription string              `json:"pattern_description"`
	Examples           []string            `json:"examples"`
	ConfidenceScore    float64             `json:"confidence_score"`
	Recommendation     string              `json:"recommendation"`
}

// ExtractInsightsInput scopes one insight-extraction run. Both fields are
// optional; empty values analyze the whole feedback corpus.
type ExtractInsightsInput struct {
	Municipality string
	DocumentType domain.DocumentType
}

// InsightService distills stored municipality feedback into derived-insight
// chunks. Feedback is grouped per municipality, analyzed in one model call
// each, and every extracted pattern is stored back as a chunk so retrieval
// surfaces it alongside the raw feedback.
type InsightService struct {
	repo     ChunkRepositoryInterface
	analyzer InsightAnalyzer
	store    ChunkAdder
	uuidGen  UUIDGenerator
}

// NewInsightService creates a new InsightService instance
func NewInsightService(repo ChunkRepositoryInterface, analyzer InsightAnalyzer, store ChunkAdder) *InsightService {
	return &InsightService{
		repo:     repo,
		analyzer: analyzer,
		store:    store,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// NewInsightServiceWithUUIDGen creates a new InsightService with custom UUID generator (for testing)
func NewInsightServiceWithUUIDGen(repo ChunkRepositoryInterface, analyzer InsightAnalyzer, store ChunkAdder, uuidGen UUIDGenerator) *InsightService {
	return &InsightService{
		repo:     repo,
		analyzer: analyzer,
		store:    store,
		uuidGen:  uuidGen,
	}
}

// ExtractInsights analyzes stored feedback in the given scope and persists one
// derived-insight chunk per extracted pattern. It returns the insights along
// with the storage report. A scope with no feedback yields an empty result,
// not an error.
func (s *InsightService) ExtractInsights(ctx context.Context, input ExtractInsightsInput) ([]LearningInsight, *BatchReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "InsightService.ExtractInsights", telemetry.SpanAttributes{
		Municipality: input.Municipality,
		DocumentType: string(input.DocumentType),
		Operation:    "extract_insights",
	})
	defer span.End()

	feedback, err := s.repo.ListFiltered(ctx, ChunkFilters{
		Municipality: input.Municipality,
		DocumentType: input.DocumentType,
		SourceKind:   domain.SourceKindFeedback,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(feedback) == 0 {
		return []LearningInsight{}, &BatchReport{}, nil
	}

	byMunicipality := make(map[string][]*domain.Chunk)
	var order []string
	for _, c := range feedback {
		if _, seen := byMunicipality[c.Municipality]; !seen {
			order = append(order, c.Municipality)
		}
		byMunicipality[c.Municipality] = append(byMunicipality[c.Municipality], c)
	}

	var insights []LearningInsight
	for _, municipality := range order {
		extracted, err := s.analyzeMunicipality(ctx, municipality, input.DocumentType, byMunicipality[municipality])
		if err != nil {
			return nil, nil, err
		}
		insights = append(insights, extracted...)
	}

	if len(insights) == 0 {
		return []LearningInsight{}, &BatchReport{}, nil
	}

	inputs := make([]AddChunkInput, len(insights))
	for i, insight := range insights {
		inputs[i] = insightToChunkInput(insight)
	}

	_, report, err := s.store.AddChunksBatch(ctx, inputs)
	if err != nil {
		return nil, nil, err
	}

	return insights, report, nil
}

func (s *InsightService) analyzeMunicipality(ctx context.Context, municipality string, documentType domain.DocumentType, feedback []*domain.Chunk) ([]LearningInsight, error) {
	prompt := buildAnalysisPrompt(municipality, documentType, feedback)

	raw, err := s.analyzer.GenerateAnalysis(ctx, insightSystemPrompt, prompt)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeCollaborator, "analyze feedback", err)
	}

	var parsed []LearningInsight
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &parsed); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeCollaborator, "parse feedback analysis", err)
	}

	insights := make([]LearningInsight, 0, len(parsed))
	for _, insight := range parsed {
		if insight.PatternDescription == "" {
			continue
		}
		insight.ID = s.uuidGen.NewString()
		insight.Municipality = municipality
		insight.DocumentType = documentType
		insight.ConfidenceScore = clampConfidence(insight.ConfidenceScore)
		insights = append(insights, insight)
	}
	return insights, nil
}

// buildAnalysisPrompt summarizes a municipality's feedback for the model:
// rejections in full, approvals sampled, plus the extraction instructions and
// the JSON shape the response must take.
func buildAnalysisPrompt(municipality string, documentType domain.DocumentType, feedback []*domain.Chunk) string {
	var approved, rejected []*domain.Chunk
	for _, c := range feedback {
		switch c.ApprovalStatus {
		case domain.ApprovalStatusApproved:
			approved = append(approved, c)
		case domain.ApprovalStatusRejected:
			rejected = append(rejected, c)
		}
	}

	scope := municipality
	if scope == "" {
		scope = "all municipalities"
	}
	docScope := string(documentType)
	if docScope == "" {
		docScope = "all document types"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Municipality: %s\n", scope)
	fmt.Fprintf(&b, "Document Type: %s\n", docScope)
	fmt.Fprintf(&b, "Total Feedback Entries: %d\n", len(feedback))
	fmt.Fprintf(&b, "Approved: %d\n", len(approved))
	fmt.Fprintf(&b, "Rejected: %d\n", len(rejected))

	b.WriteString("\nREJECTED FEEDBACK:\n")
	for i, c := range rejected {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, c.SourceReference, c.Content)
	}

	b.WriteString("\nAPPROVED FEEDBACK (for positive patterns):\n")
	samples := approved
	if len(samples) > maxApprovedSamples {
		samples = samples[:maxApprovedSamples]
	}
	for i, c := range samples {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, c.SourceReference, c.Content)
	}

	b.WriteString(`
Extract specific, actionable learning insights that can improve future document drafting. Focus on:

1. Rejection patterns that appear across multiple entries
2. Municipality-specific requirements or preferences
3. What makes documents get approved by this municipality
4. Specific paragraph references, formatting, or content requirements
5. Preferred Danish terms or phrasing

For each insight, provide a clear pattern description, specific examples from the feedback, a confidence score (0.0-1.0) based on how often the pattern appears, and an actionable recommendation.

Return your analysis as a JSON array of insights:
[
  {
    "pattern_description": "Clear description of the pattern",
    "examples": ["Example 1 from feedback", "Example 2 from feedback"],
    "confidence_score": 0.85,
    "recommendation": "Specific action to take when drafting future documents"
  }
]

Return ONLY the JSON array, no other text.`)

	return b.String()
}

// insightToChunkInput renders an insight as a stored chunk. The confidence the
// model assigned is pinned; the insight's own ID becomes the source reference
// so the chunk stays traceable to the extraction that produced it.
func insightToChunkInput(insight LearningInsight) AddChunkInput {
	var b strings.Builder
	fmt.Fprintf(&b, "Municipality: %s\n", insight.Municipality)
	fmt.Fprintf(&b, "Document Type: %s\n", insight.DocumentType)
	fmt.Fprintf(&b, "Requirement Pattern (Confidence: %.0f%%):\n\n", insight.ConfidenceScore*100)
	b.WriteString(insight.PatternDescription)
	b.WriteString("\n\nExamples from approved/rejected documents:\n")
	for _, example := range insight.Examples {
		fmt.Fprintf(&b, "- %s\n", example)
	}
	if insight.Recommendation != "" {
		fmt.Fprintf(&b, "\nRecommendation: %s\n", insight.Recommendation)
	}

	confidence := insight.ConfidenceScore
	return AddChunkInput{
		Content:         b.String(),
		SourceKind:      domain.SourceKindDerivedInsight,
		SourceReference: insight.ID,
		Municipality:    insight.Municipality,
		DocumentType:    insight.DocumentType,
		ConfidenceScore: &confidence,
		Metadata: map[string]any{
			"confidence_score":    insight.ConfidenceScore,
			"pattern_description": insight.PatternDescription,
			"recommendation":      insight.Recommendation,
		},
	}
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func clampConfidence(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
