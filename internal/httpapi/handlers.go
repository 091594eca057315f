package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrWong99/periodix/internal/bohr"
	"github.com/MrWong99/periodix/internal/observe"
	"github.com/MrWong99/periodix/pkg/element"
	"github.com/MrWong99/periodix/pkg/quiz"
)

// Client-facing narration errors.
const (
	msgBodyMissing    = "Request body is missing"
	msgPromptRequired = "Prompt is required"
	msgNotConfigured  = "API key is not configured on the server."
	msgInvalidJSON    = "Request body is not valid JSON"
)

const maxBodyBytes = 1 << 20

type narrationRequest struct {
	Prompt string `json:"prompt"`
}

type narrationResponse struct {
	AudioData string `json:"audioData"`
}

func (r *Router) handleNarration(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, msgBodyMissing)
		return
	}
	var in narrationRequest
	if err := json.Unmarshal(body, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if in.Prompt == "" {
		writeError(w, http.StatusBadRequest, msgPromptRequired)
		return
	}
	if !r.narr.Configured() {
		observe.Logger(req.Context()).Error("narration requested but no speech provider is configured")
		writeError(w, http.StatusInternalServerError, msgNotConfigured)
		return
	}

	data, err := r.narr.Narrate(req.Context(), in.Prompt)
	if err != nil {
		observe.Logger(req.Context()).Error("narration failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, narrationResponse{AudioData: data})
}

func (r *Router) handleElements(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, r.data.All())
}

// lookup resolves the {key} path value as an atomic number or a symbol.
func (r *Router) lookup(w http.ResponseWriter, req *http.Request) (element.Element, bool) {
	key := req.PathValue("key")
	var (
		e  element.Element
		ok bool
	)
	if n, err := strconv.Atoi(key); err == nil {
		e, ok = r.data.ByNumber(n)
	} else {
		e, ok = r.data.BySymbol(key)
	}
	if !ok {
		writeError(w, http.StatusNotFound, "unknown element "+strconv.Quote(key))
	}
	return e, ok
}

func (r *Router) handleElement(w http.ResponseWriter, req *http.Request) {
	if e, ok := r.lookup(w, req); ok {
		writeJSON(w, http.StatusOK, e)
	}
}

func (r *Router) handleElectrons(w http.ResponseWriter, req *http.Request) {
	if e, ok := r.lookup(w, req); ok {
		writeJSON(w, http.StatusOK, bohr.Layout(e.Electrons))
	}
}

type quizResponse struct {
	Questions []quiz.Question `json:"questions"`
}

func (r *Router) handleQuiz(w http.ResponseWriter, req *http.Request) {
	qs, err := r.gen.Quiz()
	if err != nil {
		observe.Logger(req.Context()).Error("quiz generation failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, quizResponse{Questions: qs})
}

func (r *Router) handleGameQuestion(w http.ResponseWriter, req *http.Request) {
	options := r.cfg.GameOptions
	if raw := req.URL.Query().Get("options"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "options must be a number")
			return
		}
		options = n
	}
	if err := quiz.ValidateDifficulty(options); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := r.gen.Next(options)
	if err != nil {
		observe.Logger(req.Context()).Error("game question failed", "err", err, "options", options)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type checkRequest struct {
	Answer        string   `json:"answer"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

type checkResponse struct {
	Matched string  `json:"matched,omitempty"`
	Score   float64 `json:"score"`
	Correct bool    `json:"correct"`
	Message string  `json:"message"`
}

func (r *Router) handleCheckAnswer(w http.ResponseWriter, req *http.Request) {
	var in checkRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, msgBodyMissing)
			return
		}
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if len(in.Options) == 0 || in.CorrectAnswer == "" {
		writeError(w, http.StatusBadRequest, "options and correctAnswer are required")
		return
	}

	matched, score, ok := r.matcher.Resolve(strings.TrimSpace(in.Answer), in.Options, r.aliases)
	out := checkResponse{Score: score}
	if ok {
		out.Matched = matched
	}
	if ok && matched == in.CorrectAnswer {
		out.Correct = true
		out.Message = quiz.CorrectMessage
	} else {
		out.Message = quiz.WrongMessage(in.CorrectAnswer)
	}
	writeJSON(w, http.StatusOK, out)
}
