package quiz

import (
	"sync"

	"github.com/MrWong99/periodix/pkg/element"
)

// Feedback is the outcome of one game answer.
type Feedback struct {
	Correct       bool   `json:"correct"`
	Message       string `json:"message"`
	CorrectAnswer string `json:"correctAnswer"`
	Score         int    `json:"score"`
	Asked         int    `json:"asked"`
}

// Game is an endless run of questions at a fixed difficulty. Answers may be
// typed; they are resolved against the options through an [AnswerMatcher].
// It is safe for concurrent use.
type Game struct {
	gen     *Generator
	matcher *AnswerMatcher
	aliases map[string][]string

	mu       sync.Mutex
	options  int
	score    int
	asked    int
	current  *Question
	answered bool
}

// NewGame creates a game drawing questions from gen. pool supplies the
// English names and symbols accepted as typed answers.
func NewGame(gen *Generator, matcher *AnswerMatcher, pool []element.Element) *Game {
	if matcher == nil {
		matcher = NewAnswerMatcher()
	}
	return &Game{gen: gen, matcher: matcher, aliases: Aliases(pool)}
}

// Aliases maps each element name to the alternative spellings accepted for
// it.
func Aliases(pool []element.Element) map[string][]string {
	out := make(map[string][]string, len(pool))
	for _, e := range pool {
		var a []string
		if e.NameEn != "" {
			a = append(a, e.NameEn)
		}
		if e.Symbol != "" {
			a = append(a, e.Symbol)
		}
		out[e.Name] = a
	}
	return out
}

// Start resets the score and sets the difficulty.
func (g *Game) Start(options int) error {
	if err := ValidateDifficulty(options); err != nil {
		return err
	}
	if err := g.gen.checkPool(1, options); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.options = options
	g.score = 0
	g.asked = 0
	g.current = nil
	g.answered = false
	return nil
}

// Options returns the difficulty, or zero before Start.
func (g *Game) Options() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.options
}

// Next draws the next question, replacing any open one.
func (g *Game) Next() (Question, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.options == 0 {
		return Question{}, ErrNotStarted
	}
	q, err := g.gen.Next(g.options)
	if err != nil {
		return Question{}, err
	}
	g.current = &q
	g.answered = false
	g.asked++
	return q, nil
}

// Answer scores answer against the open question. Each question can be
// answered once.
func (g *Game) Answer(answer string) (Feedback, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil || g.answered {
		return Feedback{}, ErrNoQuestion
	}
	g.answered = true
	q := g.current

	resolved, _, _ := g.matcher.Resolve(answer, q.Options, g.aliases)
	fb := Feedback{CorrectAnswer: q.CorrectAnswer, Asked: g.asked}
	if resolved == q.CorrectAnswer {
		g.score++
		fb.Correct = true
		fb.Message = CorrectMessage
	} else {
		fb.Message = WrongMessage(q.CorrectAnswer)
	}
	fb.Score = g.score
	return fb, nil
}

// Score returns the number of correct answers since Start.
func (g *Game) Score() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.score
}

// Asked returns the number of questions drawn since Start.
func (g *Game) Asked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.asked
}
