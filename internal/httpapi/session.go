package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/periodix/internal/bohr"
	"github.com/MrWong99/periodix/internal/observe"
	"github.com/MrWong99/periodix/pkg/audio"
	"github.com/MrWong99/periodix/pkg/audio/player"
	"github.com/MrWong99/periodix/pkg/element"
	"github.com/MrWong99/periodix/pkg/narration"
	"github.com/MrWong99/periodix/pkg/quiz"
)

// Binary session frames start with one of these tags followed by PCM in
// the client's format.
const (
	TagDescription   byte = 1
	TagConfiguration byte = 2
)

// Channel names used in commands and status events.
const (
	ChannelDescription   = "description"
	ChannelConfiguration = "configuration"
)

// Command is a client request on the session socket.
type Command struct {
	Op      string `json:"op"`
	Element int    `json:"element,omitempty"`
	Channel string `json:"channel,omitempty"`
	Answer  string `json:"answer,omitempty"`
	Options int    `json:"options,omitempty"`
}

// Event is a server message on the session socket.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// StatusEvent reports a narration channel's playback state.
type StatusEvent struct {
	Channel    string `json:"channel"`
	State      string `json:"state"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// ElectronEvent reveals one electron of the Bohr model.
type ElectronEvent struct {
	Element  int           `json:"element"`
	Total    int           `json:"total"`
	Electron bohr.Electron `json:"electron"`
}

// QuestionEvent carries the next quiz or game question.
type QuestionEvent struct {
	Mode     string        `json:"mode"`
	Index    int           `json:"index"`
	Total    int           `json:"total,omitempty"`
	Question quiz.Question `json:"question"`
}

// ResultEvent is the outcome of a quiz answer.
type ResultEvent struct {
	Result quiz.Result `json:"result"`
	Score  int         `json:"score"`
	Total  int         `json:"total"`
	Done   bool        `json:"done"`
}

// ErrorEvent reports a failed command.
type ErrorEvent struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

var (
	errUnknownOp      = errors.New("unknown command")
	errNoQuiz         = errors.New("no quiz in progress")
	errNoGame         = errors.New("no game in progress")
	errUnknownChannel = errors.New("unknown channel")
)

// Client sample rates accepted by parseFormat.
const (
	minClientRate = 8000
	maxClientRate = 48000
)

// parseFormat reads the client's PCM format from ?rate= and ?channels=,
// defaulting to the narration format.
func parseFormat(q url.Values) (audio.Format, error) {
	f := audio.NarrationFormat
	if raw := q.Get("rate"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("rate %q is not a number", raw)
		}
		f.SampleRate = n
	}
	if raw := q.Get("channels"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("channels %q is not a number", raw)
		}
		f.Channels = n
	}
	if !f.Valid() {
		return f, fmt.Errorf("unsupported audio format %s", f)
	}
	if f.SampleRate < minClientRate || f.SampleRate > maxClientRate {
		return f, fmt.Errorf("rate %d outside %d..%d Hz", f.SampleRate, minClientRate, maxClientRate)
	}
	return f, nil
}

func (r *Router) handleSession(w http.ResponseWriter, req *http.Request) {
	format, err := parseFormat(req.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		OriginPatterns: r.cfg.OriginPatterns,
	})
	if err != nil {
		r.log.Warn("session: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := req.Context()
	r.metrics.ActiveSessions.Add(ctx, 1)
	defer r.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	s := r.newSession(ctx, conn, format)
	err = s.run()
	s.close()

	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		s.log.Debug("session: closed by client")
	case errors.Is(err, context.Canceled):
		s.log.Debug("session: cancelled")
	default:
		s.log.Info("session: ended", "err", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// session is one browser connection: a detail view with two narration
// channels, a Bohr reveal, and at most one quiz and one game.
type session struct {
	r      *Router
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
	detail *narration.Detail
	wg     sync.WaitGroup

	mu        sync.Mutex
	reveal    context.CancelFunc
	quiz      *quiz.Session
	game      *quiz.Game
	gameGen   uint64
	nextTimer *time.Timer
}

func (r *Router) newSession(ctx context.Context, conn *websocket.Conn, format audio.Format) *session {
	ctx, cancel := context.WithCancel(ctx)
	s := &session{
		r:      r,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		log:    observe.Logger(ctx).With("format", format.String()),
	}
	desc := s.newChannel(ChannelDescription, TagDescription, format)
	conf := s.newChannel(ChannelConfiguration, TagConfiguration, format)
	s.detail = narration.NewDetail(desc, conf)
	return s
}

func (s *session) newChannel(name string, tag byte, format audio.Format) *narration.Channel {
	// parseFormat already validated format.
	conv, _ := audio.NewConverter(format)
	p := player.New(&socketOutput{s: s, tag: tag, conv: conv},
		player.WithFrameDuration(s.r.cfg.FrameDuration),
		player.WithRealtime(s.r.cfg.Realtime),
		player.WithLogger(s.log.With("channel", name)),
	)
	p.OnStatus(func(st player.Status) { s.sendStatus(name, st) })
	return narration.NewChannel(name, p, s.r.fetch)
}

// Event types.
const (
	EventStatus   = "status"
	EventElectron = "electron"
	EventQuestion = "question"
	EventResult   = "result"
	EventFeedback = "feedback"
	EventError    = "error"
)

func (s *session) send(typ string, data any) {
	if err := wsjson.Write(s.ctx, s.conn, Event{Type: typ, Data: data}); err != nil && s.ctx.Err() == nil {
		s.log.Debug("session: write event failed", "type", typ, "err", err)
	}
}

func (s *session) fail(op string, err error) {
	s.send(EventError, ErrorEvent{Op: op, Message: err.Error()})
}

// run reads commands until the connection ends.
func (s *session) run() error {
	for {
		typ, data, err := s.conn.Read(s.ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			s.fail("", errors.New("binary messages are not accepted"))
			continue
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.fail("", fmt.Errorf("malformed command: %w", err))
			continue
		}
		s.handle(cmd)
	}
}

func (s *session) handle(cmd Command) {
	switch cmd.Op {
	case "open":
		e, ok := s.element(cmd)
		if !ok {
			return
		}
		s.sendLoading(ChannelDescription)
		s.goRun(func() { s.narrationResult(cmd.Op, s.detail.Description(), s.detail.Open(s.ctx, e)) })

	case "toggle":
		s.toggle(cmd)

	case "stop":
		s.stopReveal()
		s.detail.Close()

	case "reveal":
		if e, ok := s.element(cmd); ok {
			s.startReveal(e)
		}

	case "quiz.start":
		s.startQuiz()

	case "quiz.answer":
		s.answerQuiz(cmd.Answer)

	case "game.start":
		s.startGame(cmd.Options)

	case "game.answer":
		s.answerGame(cmd.Answer)

	default:
		s.fail(cmd.Op, errUnknownOp)
	}
}

func (s *session) element(cmd Command) (element.Element, bool) {
	e, ok := s.r.data.ByNumber(cmd.Element)
	if !ok {
		s.fail(cmd.Op, fmt.Errorf("unknown element %d", cmd.Element))
	}
	return e, ok
}

func (s *session) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *session) sendLoading(channel string) {
	s.send(EventStatus, StatusEvent{Channel: channel, State: player.StateLoading.String()})
}

// narrationResult reports a failed load on ch and re-sends its real status
// to replace the loading hint. Superseded loads are silent, and decode
// failures already surfaced through the channel's status.
func (s *session) narrationResult(op string, ch *narration.Channel, err error) {
	switch {
	case err == nil, errors.Is(err, narration.ErrStale), errors.Is(err, player.ErrDecode):
		return
	case s.ctx.Err() != nil:
		return
	case errors.Is(err, narration.ErrNoElement), errors.Is(err, player.ErrClosed):
		s.fail(op, err)
	default:
		s.fail(op, narration.ErrSpeechUnavailable)
	}
	s.sendStatus(ch.Name(), ch.Status())
}

func (s *session) sendStatus(channel string, st player.Status) {
	s.send(EventStatus, StatusEvent{
		Channel:    channel,
		State:      st.State.String(),
		Message:    st.Message,
		DurationMs: st.Duration.Milliseconds(),
	})
}

func (s *session) toggle(cmd Command) {
	switch cmd.Channel {
	case ChannelDescription:
		if _, err := s.detail.ToggleDescription(); err != nil {
			s.fail(cmd.Op, err)
		}
	case ChannelConfiguration:
		if !s.detail.Configuration().Ready() {
			if _, ok := s.detail.Element(); ok {
				s.sendLoading(ChannelConfiguration)
			}
		}
		s.goRun(func() {
			_, err := s.detail.ToggleConfiguration(s.ctx)
			s.narrationResult(cmd.Op, s.detail.Configuration(), err)
		})
	default:
		s.fail(cmd.Op, fmt.Errorf("%w %q", errUnknownChannel, cmd.Channel))
	}
}

func (s *session) startReveal(e element.Element) {
	electrons := bohr.Layout(e.Electrons)
	ctx, cancel := context.WithCancel(s.ctx)

	s.mu.Lock()
	if s.reveal != nil {
		s.reveal()
	}
	s.reveal = cancel
	s.mu.Unlock()

	s.goRun(func() {
		defer cancel()
		bohr.Reveal(ctx, electrons, s.r.cfg.RevealInterval, func(el bohr.Electron) {
			s.send(EventElectron, ElectronEvent{Element: e.Number, Total: len(electrons), Electron: el})
		})
	})
}

func (s *session) stopReveal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reveal != nil {
		s.reveal()
		s.reveal = nil
	}
}

func (s *session) startQuiz() {
	qs, err := s.r.gen.Quiz()
	if err != nil {
		s.fail("quiz.start", err)
		return
	}
	qz := quiz.NewSession(qs)
	s.mu.Lock()
	s.quiz = qz
	s.mu.Unlock()
	s.sendQuizQuestion(qz, 0)
}

func (s *session) sendQuizQuestion(qz *quiz.Session, index int) {
	if q, ok := qz.Current(); ok {
		s.send(EventQuestion, QuestionEvent{Mode: quiz.ModeQuiz.String(), Index: index, Total: qz.Total(), Question: q})
	}
}

func (s *session) answerQuiz(answer string) {
	s.mu.Lock()
	qz := s.quiz
	s.mu.Unlock()
	if qz == nil {
		s.fail("quiz.answer", errNoQuiz)
		return
	}
	res, done, err := qz.Answer(answer)
	if err != nil {
		s.fail("quiz.answer", err)
		return
	}
	answered := len(qz.Results())
	s.send(EventResult, ResultEvent{Result: res, Score: qz.Score(), Total: qz.Total(), Done: done})
	if !done {
		s.sendQuizQuestion(qz, answered)
	}
}

func (s *session) startGame(options int) {
	if options == 0 {
		options = s.r.cfg.GameOptions
	}
	g := quiz.NewGame(s.r.gen, s.r.matcher, s.r.data.All())
	if err := g.Start(options); err != nil {
		s.fail("game.start", err)
		return
	}
	s.mu.Lock()
	s.game = g
	s.gameGen++
	gen := s.gameGen
	s.stopTimerLocked()
	s.mu.Unlock()
	s.nextGameQuestion(g, gen)
}

func (s *session) nextGameQuestion(g *quiz.Game, gen uint64) {
	s.mu.Lock()
	current := gen == s.gameGen
	s.mu.Unlock()
	if !current || s.ctx.Err() != nil {
		return
	}
	q, err := g.Next()
	if err != nil {
		s.fail("game.start", err)
		return
	}
	s.send(EventQuestion, QuestionEvent{Mode: quiz.ModeGame.String(), Index: g.Asked() - 1, Question: q})
}

func (s *session) answerGame(answer string) {
	s.mu.Lock()
	g, gen := s.game, s.gameGen
	s.mu.Unlock()
	if g == nil {
		s.fail("game.answer", errNoGame)
		return
	}
	fb, err := g.Answer(answer)
	if err != nil {
		s.fail("game.answer", err)
		return
	}
	s.send(EventFeedback, fb)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gameGen {
		return
	}
	s.wg.Add(1)
	s.nextTimer = time.AfterFunc(s.r.cfg.NextDelay, func() {
		defer s.wg.Done()
		s.nextGameQuestion(g, gen)
	})
}

// stopTimerLocked cancels a pending game question. A timer stopped before
// firing never runs its deferred wg.Done.
func (s *session) stopTimerLocked() {
	if s.nextTimer != nil && s.nextTimer.Stop() {
		s.wg.Done()
	}
	s.nextTimer = nil
}

// close stops every background task and releases the players.
func (s *session) close() {
	s.cancel()
	s.stopReveal()

	s.mu.Lock()
	s.gameGen++
	s.stopTimerLocked()
	s.mu.Unlock()

	s.detail.Close()
	s.wg.Wait()
	_ = s.detail.Description().Player().Close()
	_ = s.detail.Configuration().Player().Close()
}

// socketOutput streams one channel's PCM to the client as tagged binary
// frames.
type socketOutput struct {
	s    *session
	tag  byte
	conv *audio.Converter
}

var _ audio.Output = (*socketOutput)(nil)

// WriteFrame converts frame and sends it. coder/websocket closes the
// connection when a write's context is cancelled mid-message, so the frame
// is written under the session context after checking ctx.
func (o *socketOutput) WriteFrame(ctx context.Context, frame audio.AudioFrame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := o.conv.Convert(frame)
	if err != nil {
		return err
	}
	msg := make([]byte, 1+len(f.Data))
	msg[0] = o.tag
	copy(msg[1:], f.Data)
	return o.s.conn.Write(o.s.ctx, websocket.MessageBinary, msg)
}

// Close is a no-op; the session owns the connection.
func (o *socketOutput) Close() error { return nil }
