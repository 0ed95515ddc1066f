// ABOUTME: HTTP-level tests for the conversation API surface.
// ABOUTME: Inference and transcription are mocked; routing, codes, and CORS are real.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/parley-gateway/internal/config"
	"github.com/2389/parley-gateway/internal/history"
	"github.com/2389/parley-gateway/internal/llm"
)

// mockCompleter records the message list it was called with and returns a
// canned reply or error.
type mockCompleter struct {
	mu       sync.Mutex
	messages []history.Message
	reply    string
	err      error
}

func (m *mockCompleter) Complete(ctx context.Context, messages []history.Message) (string, error) {
	m.mu.Lock()
	m.messages = append([]history.Message(nil), messages...)
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

type mockTranscriber struct {
	text string
	err  error
}

func (m *mockTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			HTTPAddr: "localhost:0",
		},
		Inference: config.InferenceConfig{
			APIKey:         "test-key",
			SystemPrompt:   "Be brief.",
			RequestTimeout: 5 * time.Second,
		},
	}
}

// newTestGateway builds a gateway with mocked inference and an httptest
// server in front of the real handler chain.
func newTestGateway(t *testing.T, comp *mockCompleter, trans *mockTranscriber) (*Gateway, *httptest.Server) {
	t.Helper()
	gw, err := New(testConfig(), nil)
	require.NoError(t, err)
	if comp != nil {
		gw.completer = comp
	}
	if trans != nil {
		gw.transcriber = trans
	}
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)
	return gw, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAppendGetClearFlow(t *testing.T) {
	_, srv := newTestGateway(t, nil, nil)
	base := srv.URL + "/api/conversations/conv-1/messages"

	resp := postJSON(t, base, AppendMessageRequest{Role: "user", Content: "hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appended := decodeJSON[AppendMessageResponse](t, resp)
	assert.Equal(t, "conv-1", appended.Conversation)
	assert.Equal(t, history.RoleUser, appended.Message.Role)

	resp = postJSON(t, base, AppendMessageRequest{Role: "assistant", Content: "hi"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	getResp, err := http.Get(base)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	hist := decodeJSON[HistoryResponse](t, getResp)
	require.Len(t, hist.Messages, 2)
	assert.Equal(t, "hello", hist.Messages[0].Content)
	assert.Equal(t, "hi", hist.Messages[1].Content)

	req, err := http.NewRequest(http.MethodDelete, base, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusNoContent, delResp.StatusCode)

	getResp, err = http.Get(base)
	require.NoError(t, err)
	hist = decodeJSON[HistoryResponse](t, getResp)
	assert.Empty(t, hist.Messages)
}

func TestAppendRejectsInvalidRole(t *testing.T) {
	_, srv := newTestGateway(t, nil, nil)
	base := srv.URL + "/api/conversations/conv-1/messages"

	resp := postJSON(t, base, AppendMessageRequest{Role: "moderator", Content: "x"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2 := postJSON(t, base, AppendMessageRequest{Content: "no role"})
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestAppendAcceptsEmptyContent(t *testing.T) {
	_, srv := newTestGateway(t, nil, nil)
	base := srv.URL + "/api/conversations/conv-1/messages"

	resp := postJSON(t, base, AppendMessageRequest{Role: "user"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestConversationIsolation(t *testing.T) {
	_, srv := newTestGateway(t, nil, nil)

	resp := postJSON(t, srv.URL+"/api/conversations/a/messages", AppendMessageRequest{Role: "user", Content: "only in a"})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	getResp, err := http.Get(srv.URL + "/api/conversations/b/messages")
	require.NoError(t, err)
	hist := decodeJSON[HistoryResponse](t, getResp)
	assert.Empty(t, hist.Messages)
}

func TestUnknownRoutes(t *testing.T) {
	_, srv := newTestGateway(t, nil, nil)

	for _, path := range []string{
		"/api/conversations/conv-1/unknown",
		"/api/conversations/conv-1",
		"/api/conversations/",
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "path %s", path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, srv := newTestGateway(t, nil, nil)

	resp, err := http.Get(srv.URL + "/api/conversations/conv-1/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/conversations/conv-1/messages", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestChatSuccess(t *testing.T) {
	comp := &mockCompleter{reply: "Nice to meet you."}
	_, srv := newTestGateway(t, comp, nil)

	resp := postJSON(t, srv.URL+"/api/conversations/conv-1/chat", ChatRequest{Content: "Hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	chat := decodeJSON[ChatResponse](t, resp)
	assert.Equal(t, history.RoleAssistant, chat.Reply.Role)
	assert.Equal(t, "Nice to meet you.", chat.Reply.Content)

	// The model saw the system prompt first, then the user turn.
	require.Len(t, comp.messages, 2)
	assert.Equal(t, history.RoleSystem, comp.messages[0].Role)
	assert.Equal(t, "Be brief.", comp.messages[0].Content)
	assert.Equal(t, history.RoleUser, comp.messages[1].Role)

	// Both turns recorded; the system prompt never enters history.
	getResp, err := http.Get(srv.URL + "/api/conversations/conv-1/messages")
	require.NoError(t, err)
	hist := decodeJSON[HistoryResponse](t, getResp)
	require.Len(t, hist.Messages, 2)
	assert.Equal(t, history.RoleUser, hist.Messages[0].Role)
	assert.Equal(t, history.RoleAssistant, hist.Messages[1].Role)
}

func TestChatSoftFailureSubstitutesApology(t *testing.T) {
	comp := &mockCompleter{err: llm.ErrEmptyCompletion}
	_, srv := newTestGateway(t, comp, nil)

	resp := postJSON(t, srv.URL+"/api/conversations/conv-1/chat", ChatRequest{Content: "Hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	chat := decodeJSON[ChatResponse](t, resp)
	assert.Equal(t, apologyReply, chat.Reply.Content)

	// The apology is recorded as a real assistant turn.
	getResp, err := http.Get(srv.URL + "/api/conversations/conv-1/messages")
	require.NoError(t, err)
	hist := decodeJSON[HistoryResponse](t, getResp)
	require.Len(t, hist.Messages, 2)
	assert.Equal(t, apologyReply, hist.Messages[1].Content)
}

func TestChatHardFailureKeepsUserTurn(t *testing.T) {
	comp := &mockCompleter{err: assert.AnError}
	_, srv := newTestGateway(t, comp, nil)

	resp := postJSON(t, srv.URL+"/api/conversations/conv-1/chat", ChatRequest{Content: "Hi"})
	resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	// The user turn survives so a retry has full context.
	getResp, err := http.Get(srv.URL + "/api/conversations/conv-1/messages")
	require.NoError(t, err)
	hist := decodeJSON[HistoryResponse](t, getResp)
	require.Len(t, hist.Messages, 1)
	assert.Equal(t, history.RoleUser, hist.Messages[0].Role)
	assert.Equal(t, "Hi", hist.Messages[0].Content)
}

func TestChatRequiresContent(t *testing.T) {
	_, srv := newTestGateway(t, nil, nil)

	resp := postJSON(t, srv.URL+"/api/conversations/conv-1/chat", ChatRequest{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func postAudio(t *testing.T, url, field, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.Copy(fw, strings.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func TestTranscribeSuccess(t *testing.T) {
	trans := &mockTranscriber{text: "hello world"}
	_, srv := newTestGateway(t, nil, trans)
	url := srv.URL + "/api/conversations/conv-1/transcribe"

	resp := postAudio(t, url, "audio", "clip.wav", "fake-audio")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON[TranscribeResponse](t, resp)
	assert.Equal(t, "hello world", body.Text)

	// Transcription never touches history.
	getResp, err := http.Get(srv.URL + "/api/conversations/conv-1/messages")
	require.NoError(t, err)
	hist := decodeJSON[HistoryResponse](t, getResp)
	assert.Empty(t, hist.Messages)
}

func TestTranscribeFailure(t *testing.T) {
	trans := &mockTranscriber{err: assert.AnError}
	_, srv := newTestGateway(t, nil, trans)

	resp := postAudio(t, srv.URL+"/api/conversations/conv-1/transcribe", "audio", "clip.wav", "fake-audio")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestTranscribeMissingAudioField(t *testing.T) {
	_, srv := newTestGateway(t, nil, nil)

	resp := postAudio(t, srv.URL+"/api/conversations/conv-1/transcribe", "wrong-field", "clip.wav", "fake-audio")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTranscribeRejectsNonMultipart(t *testing.T) {
	_, srv := newTestGateway(t, nil, nil)

	resp := postJSON(t, srv.URL+"/api/conversations/conv-1/transcribe", map[string]string{"audio": "nope"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSHeaders(t *testing.T) {
	_, srv := newTestGateway(t, nil, nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://anywhere.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	// No allowlist configured, so any origin is permitted.
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	_, srv := newTestGateway(t, nil, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/conversations/conv-1/messages", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://anywhere.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORSAllowlist(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AllowedOrigins = []string{"https://app.example.com"}
	gw, err := New(cfg, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthEndpoints(t *testing.T) {
	_, srv := newTestGateway(t, nil, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	// Touch a conversation so the ready count is nonzero.
	post := postJSON(t, srv.URL+"/api/conversations/conv-1/messages", AppendMessageRequest{Role: "user", Content: "x"})
	post.Body.Close()

	resp, err = http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "1 conversations")
}

func TestTranscriptView(t *testing.T) {
	_, srv := newTestGateway(t, nil, nil)
	base := srv.URL + "/api/conversations/conv-1"

	for _, m := range []AppendMessageRequest{
		{Role: "system", Content: "hidden instructions"},
		{Role: "user", Content: "show me **bold**"},
		{Role: "assistant", Content: "here is **bold** text"},
	} {
		resp := postJSON(t, base+"/messages", m)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, err := http.Get(base + "/transcript")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	html := string(body)
	// System entries are filtered from display.
	assert.NotContains(t, html, "hidden instructions")
	// Assistant markdown is rendered; user text is not.
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.Contains(t, html, "show me **bold**")
}
