package watchlist

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"signalist/internal/model"
)

const sample = `
symbols: [aapl, MSFT, " tsla "]
priority: [NVDA]
users:
  - id: u1
    name: Jo
    email: jo@example.com
    method: both
    symbols: [AMD, aapl]
  - id: u2
    telegram_chat_id: "42"
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	d, err := Load(writeFile(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"AAPL", "AMD", "MSFT", "TSLA"}
	if got := d.AllSymbols(); !slices.Equal(got, want) {
		t.Errorf("AllSymbols: expected %v, got %v", want, got)
	}
	if got := d.PrioritySymbols(); !slices.Equal(got, []string{"NVDA"}) {
		t.Errorf("PrioritySymbols: got %v", got)
	}

	r, ok := d.Recipient("u1")
	if !ok {
		t.Fatal("u1 not found")
	}
	if r.Method != model.MethodBoth || !r.Watches("AMD") || r.Watches("MSFT") {
		t.Errorf("unexpected recipient %+v", r)
	}
	r2, _ := d.Recipient("u2")
	if r2.Method != model.MethodEmail {
		t.Errorf("expected default method email, got %s", r2.Method)
	}
	if !r2.Watches("ANY") {
		t.Error("recipient without symbols should watch everything")
	}
	if byChat, ok := d.RecipientByChat("42"); !ok || byChat.UserID != "u2" {
		t.Errorf("RecipientByChat: got %+v, %v", byChat, ok)
	}
	if len(d.Recipients()) != 2 {
		t.Errorf("expected 2 recipients")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(d.AllSymbols()) != len(DefaultSymbols) {
		t.Errorf("expected default symbols, got %v", d.AllSymbols())
	}
	if !slices.Equal(d.PrioritySymbols(), DefaultPriority) {
		t.Errorf("expected default priority, got %v", d.PrioritySymbols())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing id":   "users:\n  - name: x\n",
		"duplicate id": "users:\n  - id: a\n  - id: a\n",
		"bad method":   "users:\n  - id: a\n    method: sms\n",
		"bad yaml":     "users: [",
	}
	for name, content := range tests {
		if _, err := Load(writeFile(t, content)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestAddRemoveSymbol_Persists(t *testing.T) {
	path := writeFile(t, sample)
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	added, err := d.AddSymbol("u1", "nflx")
	if err != nil || !added {
		t.Fatalf("AddSymbol: added=%v err=%v", added, err)
	}
	if added, _ := d.AddSymbol("u1", "NFLX"); added {
		t.Error("duplicate add should report false")
	}
	if err := d.RemoveSymbol("u1", "amd"); err != nil {
		t.Fatalf("RemoveSymbol: %v", err)
	}
	if _, err := d.AddSymbol("ghost", "X"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	r, _ := reloaded.Recipient("u1")
	if !slices.Equal(r.Symbols, []string{"AAPL", "NFLX"}) {
		t.Errorf("expected persisted symbols [AAPL NFLX], got %v", r.Symbols)
	}
}

func TestAddRemoveSymbol_RollsBackOnWriteFailure(t *testing.T) {
	d, err := New(File{Users: []User{{ID: "u1", Symbols: []string{"AAPL", "AMD"}}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// A directory cannot be written as a file.
	d.filePath = t.TempDir()

	if added, err := d.AddSymbol("u1", "NFLX"); err == nil || added {
		t.Fatalf("expected write error, got added=%v err=%v", added, err)
	}
	if err := d.RemoveSymbol("u1", "AMD"); err == nil {
		t.Fatal("expected write error on remove")
	}
	r, _ := d.Recipient("u1")
	if !slices.Equal(r.Symbols, []string{"AAPL", "AMD"}) {
		t.Errorf("failed writes must leave symbols unchanged, got %v", r.Symbols)
	}
}
