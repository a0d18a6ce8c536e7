package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/spf13/viper"

	"partygame/internal/logging"
	"partygame/internal/models"
	"partygame/internal/repository"
	"partygame/internal/service"
	"partygame/pkg/config"
)

func setupRouter(t *testing.T) (*gin.Engine, *service.Services) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v := viper.New()
	config.SetDefaults(v)
	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatal(err)
	}

	services := service.NewServices(&cfg, repository.NewMemoryStore(), nil, logging.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		services.Close(ctx)
	})

	r := gin.New()
	SetupRoutes(r, services, cfg.Server)
	return r, services
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	w := do(r, http.MethodPost, "/api/session/create", `{"host":"quizmaster"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Code) != 6 {
		t.Fatalf("Expected 6 character code, got %q", resp.Code)
	}
	return resp.Code
}

func TestHealthAndNoRoute(t *testing.T) {
	r, _ := setupRouter(t)

	if w := do(r, http.MethodGet, "/api/health", ""); w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/nothing", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	r, _ := setupRouter(t)
	code := createSession(t, r)

	w := do(r, http.MethodGet, "/api/session/"+code, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var snap service.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Code != code || snap.HostName != "quizmaster" || snap.Round != nil {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	if w := do(r, http.MethodGet, "/api/session/NOPE99", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown session, got %d", w.Code)
	}

	question := `{"text":"2+2?","type":"single","options":["3","4"],"correct":"4","time_limit":0}`
	w = do(r, http.MethodPost, "/api/session/"+code+"/question", question)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "correct") {
		t.Errorf("response leaked the correct answer: %s", w.Body.String())
	}

	w = do(r, http.MethodPost, "/api/session/"+code+"/question", question)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 while a round is active, got %d", w.Code)
	}

	w = do(r, http.MethodPost, "/api/session/"+code+"/question", `{"text":""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a malformed question, got %d", w.Code)
	}
}

func TestExportResults(t *testing.T) {
	r, services := setupRouter(t)
	code := createSession(t, r)

	ctx := context.Background()
	if _, err := services.Registry.JoinParticipant(ctx, code, "c1", "ann"); err != nil {
		t.Fatal(err)
	}
	if _, err := services.Registry.JoinParticipant(ctx, code, "c2", "bob"); err != nil {
		t.Fatal(err)
	}
	services.Registry.RemoveConnection(ctx, "c2")

	flushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := services.Mirror.Flush(flushCtx); err != nil {
		t.Fatal(err)
	}

	w := do(r, http.MethodGet, "/api/session/"+code+"/export/results", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Expected CSV content type, got %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, code+"-results.csv") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	want := "name,score\nann,0\nbob,0\n"
	if w.Body.String() != want {
		t.Errorf("Expected body %q, got %q", want, w.Body.String())
	}

	if w := do(r, http.MethodGet, "/api/session/NOPE99/export/results", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	r, services := setupRouter(t)
	code := createSession(t, r)
	if _, err := services.Registry.JoinParticipant(context.Background(), code, "c1", "ann"); err != nil {
		t.Fatal(err)
	}

	w := do(r, http.MethodGet, "/api/session/"+code+"/leaderboard", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp struct {
		Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Leaderboard) != 1 || resp.Leaderboard[0].Name != "ann" {
		t.Errorf("unexpected leaderboard %+v", resp.Leaderboard)
	}
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	msg, err := models.NewMessage(event, payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON(%s) error = %v", event, err)
	}
}

// readUntil 略過其他事件，直到收到指定事件
func readUntil(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg models.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if msg.Event == event {
			return msg.Data
		}
	}
}

func TestWebSocketRoundEndToEnd(t *testing.T) {
	r, _ := setupRouter(t)
	server := httptest.NewServer(r)
	defer server.Close()

	code := createSession(t, r)

	host := dial(t, server)
	emit(t, host, service.EventHostJoin, map[string]string{"code": code})
	readUntil(t, host, service.EventHostJoined)

	player := dial(t, server)
	emit(t, player, service.EventParticipantJoin, map[string]string{"code": code, "name": "ann"})
	readUntil(t, host, service.EventParticipantsUpdate)

	emit(t, host, service.EventHostStartQuestion, map[string]any{
		"code": code,
		"question": map[string]any{
			"text": "2+2?", "kind": "single", "options": []string{"3", "4", "5"},
			"time_limit": 0, "points": 100, "correct": "4",
		},
	})

	var pushed service.Question
	if err := json.Unmarshal(readUntil(t, player, service.EventQuestionPush), &pushed); err != nil {
		t.Fatal(err)
	}
	emit(t, player, service.EventParticipantAnswer, map[string]string{"qid": pushed.ID, "answer": "4"})
	readUntil(t, player, service.EventAnswerAck)

	emit(t, host, service.EventHostEndRound, map[string]string{"code": code})

	var results service.QuestionResultsPayload
	if err := json.Unmarshal(readUntil(t, player, service.EventQuestionResults), &results); err != nil {
		t.Fatal(err)
	}
	if len(results.Results) != 1 || results.Results[0].Name != "ann" || results.Results[0].Awarded != 100 {
		t.Errorf("unexpected results %+v", results)
	}

	var board []models.LeaderboardEntry
	if err := json.Unmarshal(readUntil(t, host, service.EventLeaderboardUpdate), &board); err != nil {
		t.Fatal(err)
	}
	if len(board) != 1 || board[0].Score != 100 {
		t.Errorf("unexpected leaderboard %+v", board)
	}

	// 錯誤只會回給送出的連線
	emit(t, player, service.EventParticipantAnswer, map[string]string{"qid": pushed.ID, "answer": "4"})
	var errPayload service.ErrorPayload
	if err := json.Unmarshal(readUntil(t, player, service.EventError), &errPayload); err != nil {
		t.Fatal(err)
	}
	if errPayload.Code != "round_not_active" {
		t.Errorf("Expected round_not_active, got %+v", errPayload)
	}
}

func TestWebSocketRejectsGarbage(t *testing.T) {
	r, _ := setupRouter(t)
	server := httptest.NewServer(r)
	defer server.Close()

	conn := dial(t, server)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	var payload service.ErrorPayload
	if err := json.Unmarshal(readUntil(t, conn, service.EventError), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Code != "malformed_payload" {
		t.Errorf("Expected malformed_payload, got %+v", payload)
	}
}
