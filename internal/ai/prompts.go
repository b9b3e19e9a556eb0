package ai

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/matthewjhunter/newsquiz/internal/storage"
)

// Embedded default prompts
//
//go:embed prompts/keywords.txt
var defaultKeywordsPrompt string

//go:embed prompts/analysis.txt
var defaultAnalysisPrompt string

//go:embed prompts/synthetic.txt
var defaultSyntheticPrompt string

//go:embed prompts/quiz.txt
var defaultQuizPrompt string

// PromptType represents the type of AI prompt
type PromptType string

const (
	PromptTypeKeywords  PromptType = "keywords"
	PromptTypeAnalysis  PromptType = "analysis"
	PromptTypeSynthetic PromptType = "synthetic"
	PromptTypeQuiz      PromptType = "quiz"
)

// PromptLoader resolves prompt templates and temperatures with a 2-tier
// fallback: config file -> embedded default. Parsed templates are cached.
type PromptLoader struct {
	config *storage.Config

	mu    sync.Mutex
	cache map[PromptType]*template.Template
}

// NewPromptLoader creates a new prompt loader. config may be nil.
func NewPromptLoader(config *storage.Config) *PromptLoader {
	return &PromptLoader{
		config: config,
		cache:  make(map[PromptType]*template.Template),
	}
}

// GetPrompt returns the raw template text for promptType.
func (pl *PromptLoader) GetPrompt(promptType PromptType) (string, error) {
	if pl.config != nil {
		var configPrompt string
		switch promptType {
		case PromptTypeKeywords:
			configPrompt = pl.config.Prompts.Keywords
		case PromptTypeAnalysis:
			configPrompt = pl.config.Prompts.Analysis
		case PromptTypeSynthetic:
			configPrompt = pl.config.Prompts.Synthetic
		case PromptTypeQuiz:
			configPrompt = pl.config.Prompts.Quiz
		}
		if configPrompt != "" {
			return configPrompt, nil
		}
	}

	switch promptType {
	case PromptTypeKeywords:
		return defaultKeywordsPrompt, nil
	case PromptTypeAnalysis:
		return defaultAnalysisPrompt, nil
	case PromptTypeSynthetic:
		return defaultSyntheticPrompt, nil
	case PromptTypeQuiz:
		return defaultQuizPrompt, nil
	}
	return "", fmt.Errorf("unknown prompt type: %s", promptType)
}

// GetTemperature gets the temperature for a prompt type with fallback
// Priority: config file -> default
func (pl *PromptLoader) GetTemperature(promptType PromptType) float64 {
	if pl.config != nil {
		var configTemp float64
		switch promptType {
		case PromptTypeKeywords:
			configTemp = pl.config.Temperatures.Keywords
		case PromptTypeAnalysis:
			configTemp = pl.config.Temperatures.Analysis
		case PromptTypeSynthetic:
			configTemp = pl.config.Temperatures.Synthetic
		case PromptTypeQuiz:
			configTemp = pl.config.Temperatures.Quiz
		}
		if configTemp > 0 {
			return configTemp
		}
	}

	switch promptType {
	case PromptTypeKeywords:
		return 0.7
	case PromptTypeAnalysis:
		return 0.3
	case PromptTypeSynthetic:
		return 0.8
	default:
		return 0.5
	}
}

// Render executes the template for promptType with data.
func (pl *PromptLoader) Render(promptType PromptType, data any) (string, error) {
	pl.mu.Lock()
	tmpl, ok := pl.cache[promptType]
	pl.mu.Unlock()

	if !ok {
		text, err := pl.GetPrompt(promptType)
		if err != nil {
			return "", err
		}
		tmpl, err = parsePrompt(string(promptType), text)
		if err != nil {
			return "", err
		}
		pl.mu.Lock()
		pl.cache[promptType] = tmpl
		pl.mu.Unlock()
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s prompt: %w", promptType, err)
	}
	return buf.String(), nil
}

var promptFuncs = template.FuncMap{
	"join": strings.Join,
}

func parsePrompt(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(promptFuncs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s prompt template: %w", name, err)
	}
	return tmpl, nil
}

// ExecutePrompt renders a prompt template with the given data
func ExecutePrompt(promptTemplate string, data interface{}) (string, error) {
	tmpl, err := parsePrompt("prompt", promptTemplate)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return buf.String(), nil
}
