// ABOUTME: HTTP API handlers for the conversation request surface.
// ABOUTME: Append/read/clear plus the chat and transcribe orchestration endpoints.

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/2389/parley-gateway/internal/history"
	"github.com/2389/parley-gateway/internal/llm"
	"github.com/2389/parley-gateway/internal/session"
)

// defaultSystemPrompt is used when the config does not set one. It is
// supplied to the inference call only, never appended to history.
const defaultSystemPrompt = "You are a friendly, concise voice assistant. Answer in a few sentences."

// apologyReply is returned (and recorded) when the inference service
// responds with nothing usable. Soft failure, not an error.
const apologyReply = "Sorry, I had trouble coming up with a response. Please try again."

// maxAudioBytes caps transcription uploads, matching the upstream API's
// 25 MB limit.
const maxAudioBytes = 25 << 20

// AppendMessageRequest is the JSON request body for POST .../messages.
type AppendMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AppendMessageResponse is the JSON response for POST .../messages.
type AppendMessageResponse struct {
	Conversation string          `json:"conversation"`
	Message      history.Message `json:"message"`
}

// HistoryResponse is the JSON response for GET .../messages.
type HistoryResponse struct {
	Conversation string            `json:"conversation"`
	Messages     []history.Message `json:"messages"`
}

// ChatRequest is the JSON request body for POST .../chat.
type ChatRequest struct {
	Content string `json:"content"`
}

// ChatResponse is the JSON response for POST .../chat.
type ChatResponse struct {
	Conversation string          `json:"conversation"`
	Reply        history.Message `json:"reply"`
}

// TranscribeResponse is the JSON response for POST .../transcribe.
type TranscribeResponse struct {
	Text string `json:"text"`
}

// completer is the inference boundary. Narrowed to an interface so tests
// can inject a mock service.
type completer interface {
	Complete(ctx context.Context, messages []history.Message) (string, error)
}

// transcriber is the speech-to-text boundary.
type transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// handleConversationRoutes dispatches /api/conversations/{key}/{op} to the
// operation handlers. The key is opaque and caller-supplied; only
// emptiness is rejected.
func (g *Gateway) handleConversationRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		g.sendJSONError(w, http.StatusNotFound, "not found")
		return
	}
	key, op := parts[0], parts[1]

	actor, err := g.router.Resolve(key)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch op {
	case "messages":
		switch r.Method {
		case http.MethodPost:
			g.handleAppendMessage(w, r, actor)
		case http.MethodGet:
			g.handleGetHistory(w, r, actor)
		case http.MethodDelete:
			g.handleClearHistory(w, r, actor)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "chat":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.handleChat(w, r, actor)
	case "transcribe":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.handleTranscribe(w, r, actor)
	case "ws":
		g.handleUpgrade(w, r, actor)
	case "transcript":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.handleTranscript(w, r, actor)
	default:
		g.sendJSONError(w, http.StatusNotFound, "not found")
	}
}

// handleAppendMessage handles POST /api/conversations/{key}/messages.
// The role must be user, assistant, or system; content may be empty.
func (g *Gateway) handleAppendMessage(w http.ResponseWriter, r *http.Request, actor *session.Actor) {
	var req AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Role == "" {
		g.sendJSONError(w, http.StatusBadRequest, "role is required")
		return
	}

	msg, err := actor.Append(history.Role(req.Role), req.Content)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	g.writeJSON(w, http.StatusCreated, AppendMessageResponse{
		Conversation: actor.Key,
		Message:      msg,
	})
}

// handleGetHistory handles GET /api/conversations/{key}/messages.
// Returns every retained message; display-side filtering (for example of
// system entries) is the caller's concern.
func (g *Gateway) handleGetHistory(w http.ResponseWriter, r *http.Request, actor *session.Actor) {
	g.writeJSON(w, http.StatusOK, HistoryResponse{
		Conversation: actor.Key,
		Messages:     actor.History(),
	})
}

// handleClearHistory handles DELETE /api/conversations/{key}/messages.
// Live connections are untouched.
func (g *Gateway) handleClearHistory(w http.ResponseWriter, r *http.Request, actor *session.Actor) {
	actor.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handleChat handles POST /api/conversations/{key}/chat.
//
// This is the orchestration layer above the actor: append the user
// message, snapshot history, call inference with the system prompt
// prepended, then append the reply as a separate actor call. The three
// steps are deliberately not atomic; a concurrent append between snapshot
// and reply is absorbed by the history bound.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request, actor *session.Actor) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Content == "" {
		g.sendJSONError(w, http.StatusBadRequest, "content is required")
		return
	}

	if _, err := actor.Append(history.RoleUser, req.Content); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot := actor.History()
	messages := make([]history.Message, 0, len(snapshot)+1)
	messages = append(messages, history.Message{
		Role:    history.RoleSystem,
		Content: g.systemPrompt(),
	})
	messages = append(messages, snapshot...)

	ctx, cancel := context.WithTimeout(r.Context(), g.config.Inference.RequestTimeout)
	defer cancel()

	text, err := g.completer.Complete(ctx, messages)
	if err != nil {
		if !errors.Is(err, llm.ErrEmptyCompletion) {
			g.logger.Error("inference failed",
				"conversation", actor.Key,
				"error", err)
			g.sendJSONError(w, http.StatusBadGateway, "inference failed")
			return
		}
		// Soft failure: substitute the apology so the user sees something
		g.logger.Warn("inference returned nothing usable, substituting apology",
			"conversation", actor.Key)
		text = apologyReply
	}

	reply, err := actor.Append(history.RoleAssistant, text)
	if err != nil {
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.writeJSON(w, http.StatusOK, ChatResponse{
		Conversation: actor.Key,
		Reply:        reply,
	})
}

// handleTranscribe handles POST /api/conversations/{key}/transcribe.
// Accepts a multipart form with an "audio" file field. Failure surfaces
// to the caller; history is never mutated here.
func (g *Gateway) handleTranscribe(w http.ResponseWriter, r *http.Request, actor *session.Actor) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "multipart form with an audio field is required")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "audio field is required")
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), g.config.Inference.RequestTimeout)
	defer cancel()

	text, err := g.transcriber.Transcribe(ctx, header.Filename, file)
	if err != nil {
		g.logger.Error("transcription failed",
			"conversation", actor.Key,
			"filename", header.Filename,
			"error", err)
		g.sendJSONError(w, http.StatusBadGateway, "transcription failed")
		return
	}

	g.writeJSON(w, http.StatusOK, TranscribeResponse{Text: text})
}

// systemPrompt returns the configured system prompt or the default.
func (g *Gateway) systemPrompt() string {
	if g.config.Inference.SystemPrompt != "" {
		return g.config.Inference.SystemPrompt
	}
	return defaultSystemPrompt
}

// writeJSON writes a JSON response body with the given status.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error body with the given status.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
