// Package insights turns engine results into narrative text: performance
// summaries for the report view and a shareable email draft. All generation
// is grounded in a rendered snapshot of the engine output so the model never
// invents numbers.
package insights

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/contentpulse/backend/internal/analysis"
	"github.com/contentpulse/backend/internal/llm"
	"github.com/contentpulse/backend/pkg/logger"
)

const keywordLimit = 12

// Completer is the completion surface the generator needs from the LLM
// client.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

type Generator struct {
	completer Completer
	model     string
}

func NewGenerator(completer Completer, model string) *Generator {
	return &Generator{completer: completer, model: model}
}

// Model reports which model generated the text, for storage alongside it.
func (g *Generator) Model() string {
	return g.model
}

// GenerateNarrative produces the written analysis shown with a report:
// what performed, what shows potential, and what to do about it.
func (g *Generator) GenerateNarrative(ctx context.Context, reportName string, res analysis.Result) (string, error) {
	systemPrompt := `You are a content strategy analyst. Write a performance narrative for a content report.

Structure:
1. One-paragraph overview of the dataset
2. What is working: the top-tier themes and entities, with their numbers
3. Hidden potential: potential-tier groups worth more coverage
4. Three concrete, prioritized recommendations

Rules:
- Use ONLY numbers from the report data
- Name tiers explicitly (top, potential, standard)
- Plain prose, no markdown headings
- At most 400 words`

	resp, err := g.completer.Complete(ctx, llm.CompletionRequest{
		Operation:    "narrative",
		SystemPrompt: systemPrompt,
		UserPrompt:   g.userPrompt(reportName, res),
		Temperature:  0.4,
		MaxTokens:    1024,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate narrative: %w", err)
	}

	narrative := strings.TrimSpace(resp.Content)
	logger.Info("Narrative generated",
		zap.String("report", reportName),
		zap.Int("length", len(narrative)),
	)

	return narrative, nil
}

// DraftEmail produces a ready-to-send summary email for stakeholders, subject
// line included.
func (g *Generator) DraftEmail(ctx context.Context, reportName string, res analysis.Result) (string, error) {
	systemPrompt := `You are a content strategy analyst drafting an email to editorial stakeholders.

Format:
Subject: <one line>

<greeting>
<two short paragraphs: headline findings with numbers, then what deserves attention next>
<bulleted list of the top themes with clicks>
<sign-off as "The Content Team">

Rules:
- Use ONLY numbers from the report data
- Friendly but direct tone
- At most 250 words`

	resp, err := g.completer.Complete(ctx, llm.CompletionRequest{
		Operation:    "email_draft",
		SystemPrompt: systemPrompt,
		UserPrompt:   g.userPrompt(reportName, res),
		Temperature:  0.5,
		MaxTokens:    768,
	})
	if err != nil {
		return "", fmt.Errorf("failed to draft email: %w", err)
	}

	draft := strings.TrimSpace(resp.Content)
	logger.Info("Email draft generated",
		zap.String("report", reportName),
		zap.Int("length", len(draft)),
	)

	return draft, nil
}

func (g *Generator) userPrompt(reportName string, res analysis.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report: %s\n\n%s", reportName, RenderContext(res))

	var titles []string
	for _, row := range res.Rows {
		if row.Title != "" {
			titles = append(titles, row.Title)
		}
	}
	if keywords := TitleKeywords(titles, keywordLimit); len(keywords) > 0 {
		fmt.Fprintf(&b, "\nRecurring title keywords: %s\n", strings.Join(keywords, ", "))
	}

	return b.String()
}
