package quiz

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// CorrectMessage is the feedback shown for a correct game answer.
const CorrectMessage = "إجابة صحيحة!"

// WrongMessage formats the feedback for a wrong game answer.
func WrongMessage(correct string) string {
	return fmt.Sprintf("خطأ! الإجابة الصحيحة هي %s", correct)
}

var (
	// ErrFinished is returned when answering a quiz that has no questions
	// left.
	ErrFinished = errors.New("quiz: no questions left")

	// ErrNoQuestion is returned when a game answer arrives with no open
	// question.
	ErrNoQuestion = errors.New("quiz: no open question")

	// ErrNotStarted is returned when a game is used before Start.
	ErrNotStarted = errors.New("quiz: game not started")
)

// Result is the outcome of one answered quiz question.
type Result struct {
	Question Question `json:"question"`
	Answer   string   `json:"answer"`
	Correct  bool     `json:"correct"`
}

// Session is one quiz run over a fixed list of questions. It is safe for
// concurrent use.
type Session struct {
	mu        sync.Mutex
	questions []Question
	answers   []string
}

// NewSession starts a run over questions.
func NewSession(questions []Question) *Session {
	return &Session{questions: slices.Clone(questions)}
}

// Total is the number of questions in the run.
func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions)
}

// Current returns the question awaiting an answer.
func (s *Session) Current() (Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.answers) >= len(s.questions) {
		return Question{}, false
	}
	return s.questions[len(s.answers)], true
}

// Answer records answer for the current question. done is true once the
// last question has been answered.
func (s *Session) Answer(answer string) (res Result, done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.answers)
	if i >= len(s.questions) {
		return Result{}, true, ErrFinished
	}
	s.answers = append(s.answers, answer)
	q := s.questions[i]
	return Result{Question: q, Answer: answer, Correct: answer == q.CorrectAnswer},
		len(s.answers) == len(s.questions), nil
}

// Finished reports whether every question has been answered.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers) >= len(s.questions)
}

// Score counts correct answers so far.
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i, a := range s.answers {
		if a == s.questions[i].CorrectAnswer {
			n++
		}
	}
	return n
}

// Results returns the outcome of every answered question in order.
func (s *Session) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.answers))
	for i, a := range s.answers {
		q := s.questions[i]
		out[i] = Result{Question: q, Answer: a, Correct: a == q.CorrectAnswer}
	}
	return out
}

// Reset discards all answers and restarts the same questions.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = nil
}
