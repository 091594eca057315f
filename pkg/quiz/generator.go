// Package quiz turns the element dataset into multiple-choice questions.
//
// A [Generator] samples elements without replacement, picks a question
// template per element and builds a shuffled option list containing the
// correct element name exactly once. [Session] and [Game] keep score for a
// fixed quiz run and an endless game respectively; neither persists anything.
package quiz

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/MrWong99/periodix/pkg/element"
)

const (
	// DefaultQuizQuestions is the length of a quiz run.
	DefaultQuizQuestions = 10

	// DefaultQuizOptions is the number of options per quiz question.
	DefaultQuizOptions = 4
)

// Difficulties lists the option counts a game may be played with.
var Difficulties = []int{2, 4, 6}

var (
	// ErrInsufficientPool means the dataset is too small for the requested
	// number of questions or options.
	ErrInsufficientPool = errors.New("quiz: not enough elements")

	// ErrInvalidOptions means fewer than two options were requested.
	ErrInvalidOptions = errors.New("quiz: at least two options are required")

	// ErrInvalidDifficulty means a game option count outside [Difficulties].
	ErrInvalidDifficulty = errors.New("quiz: difficulty must be 2, 4 or 6 options")

	// ErrInvalidCount means a non-positive question count.
	ErrInvalidCount = errors.New("quiz: question count must be positive")
)

// Rand is the randomness a [Generator] consumes. *rand.Rand from
// math/rand/v2 satisfies it; tests pass a seeded one.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// globalRand draws from the unseeded top-level math/rand/v2 source.
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// Mode selects the template family and option rules.
type Mode int

const (
	// ModeQuiz is the fixed-length quiz.
	ModeQuiz Mode = iota
	// ModeGame is the endless game with selectable difficulty.
	ModeGame
)

func (m Mode) String() string {
	switch m {
	case ModeQuiz:
		return "quiz"
	case ModeGame:
		return "game"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Question is one multiple-choice question.
type Question struct {
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	ElementSymbol string   `json:"elementSymbol"`
	AtomicNumber  int      `json:"atomicNumber"`
	Template      Template `json:"template"`
}

// Option configures a [Generator].
type Option func(*Generator)

// WithRand sets the randomness source.
func WithRand(r Rand) Option {
	return func(g *Generator) {
		if r != nil {
			g.rnd = r
		}
	}
}

// WithQuizShape sets the question and option count used by [Generator.Quiz].
func WithQuizShape(questions, options int) Option {
	return func(g *Generator) {
		if questions > 0 {
			g.quizQuestions = questions
		}
		if options > 0 {
			g.quizOptions = options
		}
	}
}

// WithObserver registers fn to be called with the mode and number of
// questions after every successful generation.
func WithObserver(fn func(mode Mode, n int)) Option {
	return func(g *Generator) {
		g.observe = fn
	}
}

// Generator builds questions from a fixed element pool. It holds no mutable
// state besides its [Rand]; when that is the default global source the
// generator is safe for concurrent use.
type Generator struct {
	pool          []element.Element
	rnd           Rand
	quizQuestions int
	quizOptions   int
	observe       func(Mode, int)
}

// New creates a generator over pool. The slice is copied.
func New(pool []element.Element, opts ...Option) *Generator {
	g := &Generator{
		pool:          slices.Clone(pool),
		rnd:           globalRand{},
		quizQuestions: DefaultQuizQuestions,
		quizOptions:   DefaultQuizOptions,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// PoolSize returns the number of elements questions are drawn from.
func (g *Generator) PoolSize() int { return len(g.pool) }

// Quiz returns a fresh quiz run.
func (g *Generator) Quiz() ([]Question, error) {
	return g.Generate(ModeQuiz, g.quizQuestions, g.quizOptions)
}

// Next returns one game question with the given number of options. The
// element is drawn from the whole pool every call, so repeats across calls
// are possible.
func (g *Generator) Next(options int) (Question, error) {
	if err := ValidateDifficulty(options); err != nil {
		return Question{}, err
	}
	if err := g.checkPool(1, options); err != nil {
		return Question{}, err
	}
	q, err := g.question(ModeGame, g.rnd.IntN(len(g.pool)), options)
	if err != nil {
		return Question{}, err
	}
	g.notify(ModeGame, 1)
	return q, nil
}

// Generate returns count questions about count distinct elements, each with
// exactly options choices.
func (g *Generator) Generate(mode Mode, count, options int) ([]Question, error) {
	if count <= 0 {
		return nil, ErrInvalidCount
	}
	if mode == ModeGame {
		if err := ValidateDifficulty(options); err != nil {
			return nil, err
		}
	}
	if err := g.checkPool(count, options); err != nil {
		return nil, err
	}

	picks := sample(g.rnd, len(g.pool), count)
	out := make([]Question, 0, count)
	for _, idx := range picks {
		q, err := g.question(mode, idx, options)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	g.notify(mode, len(out))
	return out, nil
}

// ValidateDifficulty reports whether options is an allowed game difficulty.
func ValidateDifficulty(options int) error {
	if !slices.Contains(Difficulties, options) {
		return fmt.Errorf("%w: got %d", ErrInvalidDifficulty, options)
	}
	return nil
}

func (g *Generator) checkPool(count, options int) error {
	if options < 2 {
		return fmt.Errorf("%w: got %d", ErrInvalidOptions, options)
	}
	if len(g.pool) < options {
		return fmt.Errorf("%w: %d options requested from %d elements", ErrInsufficientPool, options, len(g.pool))
	}
	if len(g.pool) < count {
		return fmt.Errorf("%w: %d questions requested from %d elements", ErrInsufficientPool, count, len(g.pool))
	}
	return nil
}

func (g *Generator) question(mode Mode, idx, options int) (Question, error) {
	el := g.pool[idx]
	templates := mode.templates()
	tmpl := templates[g.rnd.IntN(len(templates))]

	// Distractors come from distinct names other than the correct one.
	var others []string
	for i, e := range g.pool {
		if i == idx || e.Name == el.Name || slices.Contains(others, e.Name) {
			continue
		}
		others = append(others, e.Name)
	}
	if len(others) < options-1 {
		return Question{}, fmt.Errorf("%w: only %d distinct distractors for %q", ErrInsufficientPool, len(others), el.Symbol)
	}

	opts := make([]string, 0, options)
	for _, i := range sample(g.rnd, len(others), options-1) {
		opts = append(opts, others[i])
	}
	opts = append(opts, el.Name)
	g.rnd.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })

	return Question{
		Prompt:        tmpl.prompt(mode, el),
		Options:       opts,
		CorrectAnswer: el.Name,
		ElementSymbol: el.Symbol,
		AtomicNumber:  el.Number,
		Template:      tmpl,
	}, nil
}

func (g *Generator) notify(mode Mode, n int) {
	if g.observe != nil {
		g.observe(mode, n)
	}
}

// sample returns k distinct indices from [0, n) in random order using a
// partial Fisher-Yates shuffle.
func sample(r Rand, n, k int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := range k {
		j := i + r.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}
