package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docqa/internal/index"
	"docqa/internal/openai"
)

// NoAnswerMessage is returned verbatim when retrieval finds nothing relevant.
const NoAnswerMessage = "I couldn't find relevant information in the documents to answer your question."

const systemPrompt = `You are a helpful assistant that answers questions based on the provided document excerpts. ` +
	`Use only the information in the excerpts. If the excerpts do not contain the answer, say so plainly instead of guessing.`

// noInfoPhrases mark model replies that admit the context had no answer.
// When one appears, the cited sources are dropped since they did not
// actually support an answer.
var noInfoPhrases = []string{
	"couldn't find",
	"does not contain",
	"not mentioned",
	"no information",
	"unable to find",
	"context does not provide",
}

const previewLength = 200

// Source identifies a document that contributed to an answer.
type Source struct {
	Filename string `json:"filename"`
	Year     int    `json:"year"`
	Preview  string `json:"preview"`
}

// QueryResult is a complete answer with its citations.
type QueryResult struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	YearFilter *int     `json:"year_filter,omitempty"`
}

// Retriever finds the chunks most relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string, topK int, year *int) ([]index.SearchResult, error)
}

// ChatClient generates a completion from chat messages.
type ChatClient interface {
	Chat(ctx context.Context, messages []openai.Message, opts openai.ChatOptions) (string, error)
}

// Answerer answers questions over the indexed documents with citations.
type Answerer struct {
	retriever Retriever
	chat      ChatClient
	topK      int
	opts      openai.ChatOptions
	logger    *slog.Logger
}

func New(retriever Retriever, chat ChatClient, topK int, opts openai.ChatOptions, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		retriever: retriever,
		chat:      chat,
		topK:      topK,
		opts:      opts,
		logger:    logger,
	}
}

// Answer retrieves context for the question, asks the chat model, and returns
// the reply with deduplicated source citations. When retrieval finds nothing,
// the model is not called and NoAnswerMessage is returned with no sources.
func (a *Answerer) Answer(ctx context.Context, question string, yearFilter *int) (QueryResult, error) {
	result := QueryResult{Question: question, YearFilter: yearFilter}

	hits, err := a.retriever.Search(ctx, question, a.topK, yearFilter)
	if err != nil {
		return QueryResult{}, fmt.Errorf("retrieving context: %w", err)
	}
	if len(hits) == 0 {
		a.logger.Info("no relevant chunks found", "question", question)
		result.Answer = NoAnswerMessage
		result.Sources = []Source{}
		return result, nil
	}

	reply, err := a.chat.Chat(ctx, []openai.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildPrompt(question, hits)},
	}, a.opts)
	if err != nil {
		return QueryResult{}, fmt.Errorf("generating answer: %w", err)
	}

	result.Answer = strings.TrimSpace(reply)
	if admitsNoAnswer(result.Answer) {
		result.Sources = []Source{}
	} else {
		result.Sources = collectSources(hits)
	}
	return result, nil
}

// buildPrompt assembles the user message: retrieved chunk contents joined
// with blank lines, then the question.
func buildPrompt(question string, hits []index.SearchResult) string {
	contents := make([]string, len(hits))
	for i, h := range hits {
		contents[i] = h.Content
	}
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(contents, "\n\n"), question)
}

// admitsNoAnswer reports whether the reply concedes the context lacked the answer.
func admitsNoAnswer(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range noInfoPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// collectSources deduplicates hits by filename, keeping first-seen order.
func collectSources(hits []index.SearchResult) []Source {
	seen := make(map[string]bool, len(hits))
	sources := make([]Source, 0, len(hits))
	for _, h := range hits {
		if seen[h.Filename] {
			continue
		}
		seen[h.Filename] = true
		sources = append(sources, Source{
			Filename: h.Filename,
			Year:     h.Year,
			Preview:  preview(h.Content),
		})
	}
	return sources
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}
