package types

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Segment is a piece of extracted document text with its origin.
type Segment struct {
	Text   string
	Source string // storage key of the document
	Page   int    // 1-based page for PDF, 0 when the format has no pages
}

type Chunk struct {
	Source  string
	Page    int
	Index   int
	Content string
}

type ScoredChunk struct {
	Chunk
	Score float64
}

// Turn is one question/answer exchange of a session.
type Turn struct {
	Question string
	Answer   string
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	TotalCost        float64
}

func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
		TotalCost:        u.TotalCost + o.TotalCost,
	}
}

type Answer struct {
	Answer   string
	Question string
	// History is the conversation the answer was conditioned on, oldest first.
	History []Turn
	Sources []ScoredChunk
	Usage   Usage
}

// FlattenTurns encodes turns as the persisted alternating question/answer list.
func FlattenTurns(turns []Turn) []string {
	flat := make([]string, 0, len(turns)*2)
	for _, t := range turns {
		flat = append(flat, t.Question, t.Answer)
	}
	return flat
}

// PairTurns decodes a persisted alternating list. A trailing question
// without an answer is dropped.
func PairTurns(flat []string) []Turn {
	turns := make([]Turn, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		turns = append(turns, Turn{Question: flat[i], Answer: flat[i+1]})
	}
	return turns
}
