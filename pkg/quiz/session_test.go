package quiz_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/periodix/pkg/element"
	"github.com/MrWong99/periodix/pkg/quiz"
)

func TestSession(t *testing.T) {
	g := quiz.New(pool(12), quiz.WithRand(seeded(2)))
	qs, err := g.Quiz()
	if err != nil {
		t.Fatalf("Quiz: %v", err)
	}
	s := quiz.NewSession(qs)

	for i := range qs {
		q, ok := s.Current()
		if !ok {
			t.Fatalf("question %d: no current question", i)
		}
		answer := q.CorrectAnswer
		if i%2 == 1 {
			answer = "wrong"
		}
		res, done, err := s.Answer(answer)
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if res.Correct != (i%2 == 0) {
			t.Errorf("question %d correct = %v", i, res.Correct)
		}
		if done != (i == len(qs)-1) {
			t.Errorf("question %d done = %v", i, done)
		}
	}

	if got := s.Score(); got != 5 {
		t.Errorf("Score = %d, want 5", got)
	}
	if !s.Finished() {
		t.Error("expected finished")
	}
	if _, _, err := s.Answer("late"); !errors.Is(err, quiz.ErrFinished) {
		t.Errorf("late answer err = %v, want ErrFinished", err)
	}
	if len(s.Results()) != 10 {
		t.Errorf("Results = %d, want 10", len(s.Results()))
	}

	s.Reset()
	if s.Score() != 0 || s.Finished() {
		t.Error("Reset did not clear answers")
	}
	q, _ := s.Current()
	if q.Prompt != qs[0].Prompt {
		t.Error("Reset should restart the same questions")
	}
}

func TestGame(t *testing.T) {
	p := []element.Element{
		{Number: 1, Symbol: "H", Name: "هيدروجين", NameEn: "Hydrogen"},
		{Number: 8, Symbol: "O", Name: "أكسجين", NameEn: "Oxygen"},
	}
	g := quiz.NewGame(quiz.New(p, quiz.WithRand(seeded(4))), nil, p)

	if _, err := g.Next(); !errors.Is(err, quiz.ErrNotStarted) {
		t.Fatalf("Next before Start err = %v, want ErrNotStarted", err)
	}
	if err := g.Start(3); !errors.Is(err, quiz.ErrInvalidDifficulty) {
		t.Fatalf("Start(3) err = %v, want ErrInvalidDifficulty", err)
	}
	if err := g.Start(4); !errors.Is(err, quiz.ErrInsufficientPool) {
		t.Fatalf("Start(4) err = %v, want ErrInsufficientPool", err)
	}
	if err := g.Start(2); err != nil {
		t.Fatalf("Start(2): %v", err)
	}

	q, err := g.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	checkQuestion(t, q, 2)

	fb, err := g.Answer(q.CorrectAnswer)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !fb.Correct || fb.Message != quiz.CorrectMessage || fb.Score != 1 {
		t.Errorf("feedback = %+v", fb)
	}
	if _, err := g.Answer(q.CorrectAnswer); !errors.Is(err, quiz.ErrNoQuestion) {
		t.Errorf("second answer err = %v, want ErrNoQuestion", err)
	}

	q, _ = g.Next()
	var wrong string
	for _, o := range q.Options {
		if o != q.CorrectAnswer {
			wrong = o
		}
	}
	fb, _ = g.Answer(wrong)
	if fb.Correct || fb.Message != quiz.WrongMessage(q.CorrectAnswer) || fb.Score != 1 {
		t.Errorf("feedback = %+v", fb)
	}
	if g.Asked() != 2 || g.Score() != 1 {
		t.Errorf("asked=%d score=%d, want 2 and 1", g.Asked(), g.Score())
	}
}

func TestGame_TypedAnswers(t *testing.T) {
	p := []element.Element{
		{Number: 1, Symbol: "H", Name: "هيدروجين", NameEn: "Hydrogen"},
		{Number: 8, Symbol: "O", Name: "أكسجين", NameEn: "Oxygen"},
	}
	g := quiz.NewGame(quiz.New(p, quiz.WithRand(seeded(8))), nil, p)
	if err := g.Start(2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	q, _ := g.Next()

	typed := map[string]string{"هيدروجين": "hydrogin", "أكسجين": "oxigen"}[q.CorrectAnswer]
	fb, err := g.Answer(typed)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !fb.Correct {
		t.Errorf("typed answer %q for %q not accepted: %+v", typed, q.CorrectAnswer, fb)
	}
}
