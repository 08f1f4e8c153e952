package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trivia-bot-service/internal/app"
	"trivia-bot-service/internal/domain"
	"trivia-bot-service/internal/infra/memory"
)

func TestWebSocketAnswerFlow(t *testing.T) {
	service := app.NewQuizService(memory.NewStore(10), memory.NewActiveIndex(), nil, staticSource{}, app.Options{})
	if _, err := service.Publish(context.Background(), 42, ""); err != nil {
		t.Fatalf("publish: %v", err)
	}

	server := httptest.NewServer(NewHandler(service, nil).Routes())
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?channelId=42&userId=1&name=Alice"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The active question is pushed on connect, with the answer withheld.
	_, raw := readNext(conn, t, "question")
	var question map[string]any
	if err := json.Unmarshal(raw, &question); err != nil {
		t.Fatalf("unmarshal question: %v", err)
	}
	if _, ok := question["correctAnswer"]; ok {
		t.Fatalf("correct answer leaked over ws: %v", question)
	}

	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"choice": "b"},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	outcomeSeen := false
	leaderboardSeen := false
	for i := 0; i < 3; i++ {
		typ, raw := readNext(conn, t, "")
		switch typ {
		case "outcome":
			outcomeSeen = true
			var outcome domain.Outcome
			if err := json.Unmarshal(raw, &outcome); err != nil {
				t.Fatalf("unmarshal outcome: %v", err)
			}
			if outcome.Status != domain.OutcomeCorrect {
				t.Fatalf("expected correct outcome, got %s", outcome.Status)
			}
		case "leaderboard":
			leaderboardSeen = true
			var board []domain.User
			if err := json.Unmarshal(raw, &board); err != nil {
				t.Fatalf("unmarshal leaderboard: %v", err)
			}
			if len(board) != 1 || board[0].Score != 10 {
				t.Fatalf("unexpected leaderboard %+v", board)
			}
		}
		if outcomeSeen && leaderboardSeen {
			break
		}
	}
	if !outcomeSeen || !leaderboardSeen {
		t.Fatalf("expected outcome and leaderboard, got outcome=%v leaderboard=%v", outcomeSeen, leaderboardSeen)
	}
}

func TestWebSocketRejectsMissingParams(t *testing.T) {
	service := app.NewQuizService(memory.NewStore(10), memory.NewActiveIndex(), nil, staticSource{}, app.Options{})
	server := httptest.NewServer(NewHandler(service, nil).Routes())
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?channelId=42"
	if _, _, err := websocket.DefaultDialer.Dial(u, nil); err == nil {
		t.Fatalf("expected dial to fail without userId and name")
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
