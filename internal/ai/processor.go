package ai

import (
	"context"
	"fmt"

	"github.com/matthewjhunter/newsquiz/internal/storage"
)

// Processor turns pipeline inputs into prompts and model text into typed,
// validated results. It does not rate limit; callers acquire a token first.
type Processor struct {
	completer Completer
	prompts   *PromptLoader
}

func NewProcessor(completer Completer, prompts *PromptLoader) *Processor {
	return &Processor{completer: completer, prompts: prompts}
}

func (p *Processor) run(ctx context.Context, promptType PromptType, data any, out any) error {
	prompt, err := p.prompts.Render(promptType, data)
	if err != nil {
		return err
	}
	raw, err := p.completer.Complete(ctx, prompt, p.prompts.GetTemperature(promptType))
	if err != nil {
		return fmt.Errorf("%s completion: %w", promptType, err)
	}
	if err := decodeResponse(raw, out); err != nil {
		return fmt.Errorf("%s response: %w", promptType, err)
	}
	return nil
}

// KeywordRequest is the context the keyword planner gives the model.
type KeywordRequest struct {
	Today    string
	Excluded []string
	Recent   []storage.KeywordRecord
	Static   []string
}

type KeywordSuggestion struct {
	Keyword string              `json:"keyword" validate:"required"`
	Type    storage.KeywordType `json:"keywordType" validate:"omitempty,oneof=BREAKING ONGOING GENERAL SEASONAL"`
}

// KeywordResult must carry exactly two keywords for every category.
type KeywordResult struct {
	Society  []KeywordSuggestion `json:"society" validate:"len=2,dive"`
	Economy  []KeywordSuggestion `json:"economy" validate:"len=2,dive"`
	Politics []KeywordSuggestion `json:"politics" validate:"len=2,dive"`
	Culture  []KeywordSuggestion `json:"culture" validate:"len=2,dive"`
	IT       []KeywordSuggestion `json:"it" validate:"len=2,dive"`
}

// ByCategory flattens the result in category order.
func (r *KeywordResult) ByCategory() map[storage.Category][]KeywordSuggestion {
	return map[storage.Category][]KeywordSuggestion{
		storage.CategorySociety:  r.Society,
		storage.CategoryEconomy:  r.Economy,
		storage.CategoryPolitics: r.Politics,
		storage.CategoryCulture:  r.Culture,
		storage.CategoryIT:       r.IT,
	}
}

// GenerateKeywords asks the model for today's keywords.
func (p *Processor) GenerateKeywords(ctx context.Context, req KeywordRequest) (*KeywordResult, error) {
	var result KeywordResult
	if err := p.run(ctx, PromptTypeKeywords, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnalysisInput is one article of a scoring batch. ID is only meaningful
// within the batch and is echoed back by the model.
type AnalysisInput struct {
	ID    int
	Title string
	Body  string
}

type Analysis struct {
	ID       int              `json:"id" validate:"min=0"`
	Score    int              `json:"score" validate:"min=0,max=100"`
	Category storage.Category `json:"category" validate:"oneof=SOCIETY ECONOMY POLITICS CULTURE IT NOT_FILTERED"`
}

type analysisResponse struct {
	Results []Analysis `json:"results" validate:"dive"`
}

// AnalyzeBatch scores and categorizes a batch of articles.
func (p *Processor) AnalyzeBatch(ctx context.Context, batch []AnalysisInput) ([]Analysis, error) {
	articles := make([]AnalysisInput, len(batch))
	for i, in := range batch {
		articles[i] = AnalysisInput{ID: in.ID, Title: in.Title, Body: truncateText(in.Body, 3000)}
	}
	var resp analysisResponse
	if err := p.run(ctx, PromptTypeAnalysis, map[string]any{"Articles": articles}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

type SyntheticRequest struct {
	Title     string
	Body      string
	MinLength int
	MaxLength int
}

type SyntheticResult struct {
	Content string `json:"content" validate:"required"`
}

// GenerateSynthetic writes a fabricated counterpart of an article.
func (p *Processor) GenerateSynthetic(ctx context.Context, req SyntheticRequest) (*SyntheticResult, error) {
	var result SyntheticResult
	if err := p.run(ctx, PromptTypeSynthetic, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type QuizCandidate struct {
	Question      string `json:"question" validate:"required"`
	Option1       string `json:"option1" validate:"required"`
	Option2       string `json:"option2" validate:"required"`
	Option3       string `json:"option3" validate:"required"`
	CorrectOption string `json:"correctOption" validate:"oneof=OPTION1 OPTION2 OPTION3"`
}

type quizResponse struct {
	Quizzes []QuizCandidate `json:"quizzes" validate:"len=3,dive"`
}

// GenerateQuizzes writes three multiple-choice questions about an article.
func (p *Processor) GenerateQuizzes(ctx context.Context, title, body string) ([]QuizCandidate, error) {
	var resp quizResponse
	data := map[string]any{"Title": title, "Body": truncateText(body, 4000)}
	if err := p.run(ctx, PromptTypeQuiz, data, &resp); err != nil {
		return nil, err
	}
	return resp.Quizzes, nil
}
