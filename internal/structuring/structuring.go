// Package structuring runs the second pipeline stage: turning raw menu text
// into a structured dish list.
package structuring

import (
	"context"
	"log/slog"
	"strings"

	"menuvision/internal/logging"
	"menuvision/internal/menu"
	"menuvision/internal/services"
	"menuvision/internal/services/llm"
)

// Completer is the slice of the LLM client the stage needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Result holds the structured output of the stage.
type Result struct {
	SourceLanguage string
	Dishes         []menu.Dish
}

// Stage structures extracted menu text into dishes.
type Stage struct {
	completer Completer
	logger    *slog.Logger
}

// NewStage builds the structuring stage.
func NewStage(completer Completer, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{completer: completer, logger: logger}
}

// Run structures menuText into dishes. A failed call or an unparseable
// response is retried once with a fresh call; a second failure is fatal to
// the job. An empty dish list is a valid result.
func (s *Stage) Run(ctx context.Context, menuText string) (*Result, error) {
	ctx = services.WithStage(ctx, "structuring")

	result, err := s.attempt(ctx, menuText)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	logging.WithContext(ctx, s.logger).Warn("structuring attempt failed, retrying",
		logging.Error(err))

	result, retryErr := s.attempt(ctx, menuText)
	if retryErr != nil {
		return nil, services.Wrap(services.ErrStructuring, "structuring", "structure menu", "structuring failed after retry", retryErr)
	}
	return result, nil
}

func (s *Stage) attempt(ctx context.Context, menuText string) (*Result, error) {
	content, err := s.completer.CompleteJSON(ctx, systemPrompt, menuText)
	if err != nil {
		return nil, err
	}
	return parsePayload(content)
}

type payload struct {
	SourceLanguage string         `json:"source_language"`
	Dishes         []payloadEntry `json:"dishes"`
}

type payloadEntry struct {
	OriginalName   string   `json:"original_name"`
	TranslatedName *string  `json:"translated_name"`
	Description    *string  `json:"description"`
	Ingredients    []string `json:"ingredients"`
	Price          *string  `json:"price"`
}

func parsePayload(content string) (*Result, error) {
	var parsed payload
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return nil, services.Wrap(services.ErrStructuring, "structuring", "parse payload", "invalid JSON", err)
	}

	dishes := make([]menu.Dish, 0, len(parsed.Dishes))
	for _, entry := range parsed.Dishes {
		name := strings.TrimSpace(entry.OriginalName)
		if name == "" {
			// Entries the model emitted without a usable name carry no
			// information worth keeping.
			continue
		}
		dish := menu.Dish{
			OriginalName:   name,
			TranslatedName: normalizeOptional(entry.TranslatedName),
			Description:    normalizeOptional(entry.Description),
			Price:          normalizeOptional(entry.Price),
		}
		for _, ingredient := range entry.Ingredients {
			if trimmed := strings.TrimSpace(ingredient); trimmed != "" {
				dish.Ingredients = append(dish.Ingredients, trimmed)
			}
		}
		dishes = append(dishes, dish)
	}

	return &Result{
		SourceLanguage: strings.TrimSpace(parsed.SourceLanguage),
		Dishes:         dishes,
	}, nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	return menu.OptionalString(*value)
}
