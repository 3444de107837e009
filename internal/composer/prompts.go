// Package composer assembles prompts from retrieved chunks and request
// input, keeping injected context within a token budget.
package composer

import (
	"fmt"
	"strings"

	"github.com/solenko/tutord/internal/index"
)

const (
	defaultMaxContextTokens = 4000
	chunkSeparator          = "\n\n---\n\n"
)

// System instructions for each generation flow.
const (
	TutorAnswerSystem   = "You are a helpful tutor. Use only the provided context to answer."
	ExamSystem          = "You are an exam generator. Create exam-style questions from the context."
	FlashcardSystem     = "You are a flashcard generator. Always respond ONLY with valid JSON."
	WorksheetSystem     = "You are an exam/worksheet generator. Respond with JSON."
	StudyPlanSystem     = "You are a study planner. Always respond ONLY with valid JSON."
	ChatTutorSystem     = "You are an interactive learning chatbot. Ask questions, give quizzes, evaluate answers, and act as a teacher. Generate study timetables, provide notes, and grade responses. Always stay helpful and engaging."
	TopicClassifySystem = "You classify study questions into a single short topic name. Respond with the topic only."
)

// Composer builds prompts, dropping lowest-ranked chunks first when the
// injected context would exceed the token budget.
type Composer struct {
	MaxContextTokens int
}

// New creates a Composer. maxContextTokens <= 0 uses the default budget.
func New(maxContextTokens int) *Composer {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &Composer{MaxContextTokens: maxContextTokens}
}

// Context joins chunk texts into one context block, best-ranked first,
// trimming from the tail to honor the token budget. The input order is the
// retriever's ranking and is preserved.
func (c *Composer) Context(chunks []index.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}

	remaining := c.MaxContextTokens
	var parts []string
	for _, ch := range chunks {
		cost := EstimateTokens(ch.Text) + EstimateTokens(chunkSeparator)
		if cost > remaining {
			continue
		}
		parts = append(parts, ch.Text)
		remaining -= cost
	}
	return strings.Join(parts, chunkSeparator)
}

// Answer builds the user prompt for question answering over context.
func (c *Composer) Answer(question string, chunks []index.Chunk) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", c.Context(chunks), question)
}

// ExamQuestions builds the user prompt for exam-question generation.
func (c *Composer) ExamQuestions(count int, chunks []index.Chunk) string {
	return fmt.Sprintf("Context:\n%s\n\nTask: Generate %d exam-style questions.", c.Context(chunks), count)
}

// Flashcards builds the user prompt for flashcard generation from a content
// snippet. The snippet is capped to keep the prompt bounded.
func Flashcards(count int, text string) string {
	return fmt.Sprintf(`Create %d concise Q&A flashcards from the following content. Return a JSON array:
[{"question":"Q1", "answer":"A1"}, ...]
Content snippet:
%q`, count, Snippet(text, 2000))
}

// Worksheet builds the user prompt for worksheet-question generation.
func Worksheet(count int, text string) string {
	return fmt.Sprintf(`Generate %d exam-style questions (mix of MCQ/short-answer) from the content below.
Return a JSON list of strings (questions).
Content snippet:
%q`, count, Snippet(text, 2000))
}

// StudyPlan builds the user prompt for study-plan generation.
func StudyPlan(duration, text string) string {
	return fmt.Sprintf(`Create a day-by-day study plan covering the curriculum below over %s.
Return a JSON object mapping day labels to lists of topics, e.g. {"Day 1": ["topic A"], ...}.
Curriculum snippet:
%q`, duration, Snippet(text, 2000))
}

// ClassifyTopic builds the user prompt for topic classification.
func ClassifyTopic(question string) string {
	return "Classify this question into a topic: " + question
}

// Snippet truncates text to at most n runes, cutting back to the previous
// space when possible so words stay whole.
func Snippet(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	cut := n
	for i := n; i > n/2; i-- {
		if runes[i-1] == ' ' {
			cut = i - 1
			break
		}
	}
	return string(runes[:cut])
}

// EstimateTokens gives a rough token count using the 4-chars-per-token
// heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
