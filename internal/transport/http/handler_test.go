package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trivia-bot-service/internal/app"
	"trivia-bot-service/internal/domain"
	"trivia-bot-service/internal/infra/memory"
)

type staticSource struct{}

func (staticSource) Generate(_ context.Context, topicHint string) domain.QuestionPayload {
	topic := topicHint
	if topic == "" {
		topic = "Operating Systems"
	}
	return domain.QuestionPayload{
		Topic:    topic,
		Question: "Which scheduler is preemptive?",
		Options: map[string]string{
			"A": "FCFS",
			"B": "Round Robin",
			"C": "SJF",
			"D": "Priority",
		},
		Answer:      "B",
		Explanation: "Time slices force context switches.",
		Difficulty:  "Easy",
		ModelName:   "model-x",
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *app.QuizService) {
	t.Helper()
	service := app.NewQuizService(memory.NewStore(10), memory.NewActiveIndex(), nil, staticSource{}, app.Options{})
	server := httptest.NewServer(NewHandler(service, nil).Routes())
	t.Cleanup(server.Close)
	return server, service
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestPublishAndFetchActiveQuestion(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/questions", map[string]any{"channelId": 42})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	published := decode[map[string]any](t, resp)
	if _, ok := published["correctAnswer"]; ok {
		t.Fatalf("correct answer leaked in publish response: %v", published)
	}
	if published["prompt"] != "Which scheduler is preemptive?" {
		t.Fatalf("expected clean prompt, got %v", published["prompt"])
	}
	if published["difficulty"] != "Easy" || published["modelName"] != "model-x" {
		t.Fatalf("expected provenance meta, got %v", published)
	}

	resp, err := http.Get(server.URL + "/channels/42/question")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	active := decode[map[string]any](t, resp)
	if active["id"] != published["id"] {
		t.Fatalf("expected same question, got %v vs %v", active["id"], published["id"])
	}

	resp, err = http.Get(server.URL + "/channels/999/question")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for idle channel, got %d", resp.StatusCode)
	}
}

func TestPublishRequiresChannel(t *testing.T) {
	server, _ := newTestServer(t)
	resp := postJSON(t, server.URL+"/questions", map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSubmitAnswerFlow(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/questions", map[string]any{"channelId": 42})
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/answers", map[string]any{
		"userId": 1, "userName": "alice", "choice": "Option B", "channelId": 42,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	outcome := decode[domain.Outcome](t, resp)
	if outcome.Status != domain.OutcomeCorrect {
		t.Fatalf("expected correct, got %s", outcome.Status)
	}

	resp = postJSON(t, server.URL+"/answers", map[string]any{
		"userId": 2, "userName": "bob", "choice": "B", "channelId": 42,
	})
	outcome = decode[domain.Outcome](t, resp)
	if outcome.Status != domain.OutcomeAlreadySolved || outcome.SolverID != 1 {
		t.Fatalf("expected already solved by 1, got %+v", outcome)
	}
}

func TestLeaderboardAndUserEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/questions", map[string]any{"channelId": 42})
	resp.Body.Close()
	resp = postJSON(t, server.URL+"/answers", map[string]any{
		"userId": 1, "userName": "alice", "choice": "B", "channelId": 42,
	})
	resp.Body.Close()

	resp, err := http.Get(server.URL + "/leaderboard")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	board := decode[[]domain.User](t, resp)
	if len(board) != 1 || board[0].Score != 10 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}

	resp, err = http.Get(server.URL + "/users/1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	user := decode[domain.User](t, resp)
	if user.Name != "alice" || user.Correct != 1 {
		t.Fatalf("unexpected user %+v", user)
	}

	resp, err = http.Get(server.URL + "/users/404")
	if err != nil {
		t.Fatalf("get missing user: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/users/1/history")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	history := decode[[]domain.HistoryEntry](t, resp)
	if len(history) != 1 || !history[0].IsCorrect {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestAnswerSheetEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/questions", map[string]any{"channelId": 42})
	resp.Body.Close()

	resp, err := http.Get(server.URL + "/channels/42/answer-sheet")
	if err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	sheet := decode[domain.AnswerSheet](t, resp)
	if sheet.CorrectLetter != "B" || sheet.CorrectText != "Round Robin" {
		t.Fatalf("unexpected sheet %+v", sheet)
	}
	if sheet.WinnerID != nil {
		t.Fatalf("unsolved question must have no winner")
	}
}

func TestGuildConfigEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/guilds/900/config")
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	cfg := decode[domain.GuildConfig](t, resp)
	if cfg.GuildID != 900 || cfg.DailyChannelID != nil {
		t.Fatalf("unexpected config %+v", cfg)
	}

	patch, err := json.Marshal(map[string]any{"dailyChannelId": 42})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPatch, server.URL+"/guilds/900/config", bytes.NewReader(patch))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	cfg = decode[domain.GuildConfig](t, resp)
	if cfg.DailyChannelID == nil || *cfg.DailyChannelID != 42 {
		t.Fatalf("patch not applied: %+v", cfg)
	}
}

func TestResetScoresEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/questions", map[string]any{"channelId": 42})
	resp.Body.Close()
	resp = postJSON(t, server.URL+"/answers", map[string]any{
		"userId": 1, "userName": "alice", "choice": "B", "channelId": 42,
	})
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/admin/reset-scores", map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp, err := http.Get(server.URL + "/users/1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	user := decode[domain.User](t, resp)
	if user.Score != 0 || user.Correct != 0 {
		t.Fatalf("expected zeroed counters, got %+v", user)
	}
}

func TestDispatchEndpointWiresTrigger(t *testing.T) {
	service := app.NewQuizService(memory.NewStore(10), memory.NewActiveIndex(), nil, staticSource{}, app.Options{})
	handler := NewHandler(service, nil)

	fired := make(chan struct{}, 1)
	handler.SetDailyTrigger(func(context.Context) { fired <- struct{}{} })

	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	resp := postJSON(t, server.URL+"/admin/dispatch", map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("trigger not invoked")
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
