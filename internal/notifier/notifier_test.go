package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"signalist/internal/model"

	"github.com/shopspring/decimal"
)

var at = time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC)

func triggered(method model.NotificationMethod) model.TriggeredAlert {
	return model.TriggeredAlert{
		Alert: model.AlertRecord{
			ID:          "0d4c9a2e-aaaa-bbbb-cccc-000000000001",
			UserID:      "u1",
			Symbol:      "AAPL",
			Company:     "Apple Inc.",
			Direction:   model.Above,
			TargetPrice: decimal.NewFromInt(200),
			Method:      method,
		},
		Price: decimal.RequireFromString("201.5"),
		At:    at,
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []model.Recipient
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, to model.Recipient, _ model.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, to)
	return r.err
}

func TestRouter_UsesAlertMethod(t *testing.T) {
	tests := []struct {
		method      model.NotificationMethod
		email, push int
	}{
		{model.MethodEmail, 1, 0},
		{model.MethodPush, 0, 1},
		{model.MethodBoth, 1, 1},
	}
	for _, tt := range tests {
		email, push := &recordingNotifier{}, &recordingNotifier{}
		r := &Router{Email: email, Push: push}
		// The recipient's own preference must not override the alert's method.
		to := model.Recipient{UserID: "u1", Method: model.MethodPush}
		if err := r.Notify(context.Background(), to, triggered(tt.method)); err != nil {
			t.Fatalf("%s: Notify: %v", tt.method, err)
		}
		if len(email.calls) != tt.email || len(push.calls) != tt.push {
			t.Errorf("%s: expected email=%d push=%d, got %d/%d", tt.method, tt.email, tt.push, len(email.calls), len(push.calls))
		}
	}
}

func TestRouter_PatternBatchUsesRecipientMethod(t *testing.T) {
	email, push := &recordingNotifier{}, &recordingNotifier{}
	r := &Router{Email: email, Push: push}
	to := model.Recipient{UserID: "u1", Method: model.MethodPush}
	if err := r.Notify(context.Background(), to, model.PatternBatch{At: at}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(email.calls) != 0 || len(push.calls) != 1 {
		t.Errorf("expected push only, got email=%d push=%d", len(email.calls), len(push.calls))
	}
}

func TestRouter_MissingChannelAndErrors(t *testing.T) {
	push := &recordingNotifier{err: errors.New("down")}
	r := &Router{Push: push}
	err := r.Notify(context.Background(), model.Recipient{UserID: "u1"}, triggered(model.MethodBoth))
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected push error, got %v", err)
	}
	if err := r.Notify(context.Background(), model.Recipient{UserID: "u1"}, triggered(model.MethodEmail)); err != nil {
		t.Errorf("unconfigured channel should be skipped, got %v", err)
	}
}

func TestTelegramNotify_RecipientChat(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "default", "")
	tg.BaseURL = srv.URL
	err := tg.Notify(context.Background(), model.Recipient{UserID: "u1", TelegramChatID: "42"}, triggered(model.MethodPush))
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got["chat_id"] != "42" {
		t.Errorf("expected chat 42, got %q", got["chat_id"])
	}
	if !strings.Contains(got["text"], "AAPL") || got["parse_mode"] != "HTML" {
		t.Errorf("unexpected message %+v", got)
	}
}

func TestTelegramSendWithRetry_GivesUp(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "1", "")
	tg.BaseURL = srv.URL
	if err := tg.SendWithRetry(context.Background(), "1", "hi", 0); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestEmailNotify(t *testing.T) {
	e := NewEmailNotifier("smtp.example.com", 587, "bot", "secret", "alerts@example.com")
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	e.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}
	to := model.Recipient{UserID: "u1", Email: "jo@example.com"}
	if err := e.Notify(context.Background(), to, triggered(model.MethodEmail)); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("unexpected addr %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "jo@example.com" {
		t.Errorf("unexpected recipients %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Price Alert: AAPL above 200.00") {
		t.Errorf("missing subject in %q", gotMsg)
	}
	if !strings.Contains(gotMsg, "Content-Type: text/html") {
		t.Error("expected html content type")
	}

	if err := e.Notify(context.Background(), model.Recipient{UserID: "u2"}, triggered(model.MethodEmail)); err == nil {
		t.Error("expected error for recipient without email")
	}
}

func TestFormatPatternBatch_Sections(t *testing.T) {
	batch := model.PatternBatch{
		At: at,
		Findings: []model.SymbolFinding{
			{Symbol: "TSLA", Match: model.PatternMatch{Name: "Evening Star", Direction: model.Bearish, Confidence: 0.9, Action: model.ActionSell}},
			{Symbol: "AAPL", Match: model.PatternMatch{Name: "Hammer", Direction: model.Bullish, Confidence: 0.8, Action: model.ActionBuy}},
		},
	}
	out := FormatPatternBatch(batch)
	bull := strings.Index(out, "Bullish patterns")
	bear := strings.Index(out, "Bearish patterns")
	if bull < 0 || bear < 0 || bull > bear {
		t.Fatalf("expected bullish section before bearish:\n%s", out)
	}
	if !strings.Contains(out, "AAPL Hammer (80%, buy)") || !strings.Contains(out, "TSLA Evening Star (90%, sell)") {
		t.Errorf("missing findings:\n%s", out)
	}
	if strings.Contains(FormatPatternBatch(model.PatternBatch{At: at, Realtime: true}), "Bullish") {
		t.Error("empty sections should be omitted")
	}
}

func TestFormatTriggeredAlert(t *testing.T) {
	out := FormatTriggeredAlert(triggered(model.MethodEmail))
	for _, want := range []string{"AAPL", "Apple Inc.", "$201.50", "above $200.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatAlertList(t *testing.T) {
	if FormatAlertList(nil) != "No price alerts." {
		t.Error("unexpected empty list text")
	}
	out := FormatAlertList([]model.AlertRecord{triggered(model.MethodEmail).Alert})
	if !strings.Contains(out, "0d4c9a2e AAPL above $200.00") {
		t.Errorf("unexpected list:\n%s", out)
	}
}
