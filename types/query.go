package types

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// required alone accepts "   "
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

type ChatParams struct {
	SessionID  string `json:"session_id,omitempty" validate:"omitempty,max=128"`
	UserInput  string `json:"user_input" validate:"required,notblank"`
	DataSource string `json:"data_source" validate:"required,notblank"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *ChatParams) Validate() map[string]string {
	if err := validate.Struct(params); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"request": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[jsonName(e.Field())] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func jsonName(field string) string {
	switch field {
	case "SessionID":
		return "session_id"
	case "UserInput":
		return "user_input"
	case "DataSource":
		return "data_source"
	}
	return field
}

type ChatResponse struct {
	Response  AnswerResponse `json:"response"`
	SessionID string         `json:"session_id"`
}

type AnswerResponse struct {
	Answer           string  `json:"answer"`
	Question         string  `json:"question"`
	TotalTokensUsed  int     `json:"total_tokens_used"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalCost        float64 `json:"total_cost"`
	// ChatHistory holds the prior [question, answer] pairs.
	ChatHistory [][2]string `json:"chat_history"`
	Sources     []Source    `json:"sources"`
}

type Source struct {
	DocID     string  `json:"doc_id"`
	Page      int     `json:"page,omitempty"`
	ChunkText string  `json:"chunk_text"`
	Index     int     `json:"index"`
	Score     float64 `json:"score"`
}

type UploadResponse struct {
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
}

func NewChatResponse(sessionID string, a *Answer) ChatResponse {
	sources := make([]Source, len(a.Sources))
	for i, s := range a.Sources {
		sources[i] = Source{
			DocID:     s.Chunk.Source,
			Page:      s.Chunk.Page,
			ChunkText: s.Chunk.Content,
			Index:     s.Chunk.Index,
			Score:     s.Score,
		}
	}
	history := make([][2]string, len(a.History))
	for i, t := range a.History {
		history[i] = [2]string{t.Question, t.Answer}
	}
	return ChatResponse{
		Response: AnswerResponse{
			Answer:           a.Answer,
			Question:         a.Question,
			TotalTokensUsed:  a.Usage.TotalTokens,
			PromptTokens:     a.Usage.PromptTokens,
			CompletionTokens: a.Usage.CompletionTokens,
			TotalCost:        a.Usage.TotalCost,
			ChatHistory:      history,
			Sources:          sources,
		},
		SessionID: sessionID,
	}
}
