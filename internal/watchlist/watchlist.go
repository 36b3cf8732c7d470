package watchlist

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"signalist/internal/model"

	"gopkg.in/yaml.v3"
)

// DefaultSymbols is the scan set used when the file names none.
var DefaultSymbols = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "JPM", "BAC", "WMT"}

// DefaultPriority is the realtime set used when the file names none.
var DefaultPriority = []string{"AAPL", "MSFT", "GOOGL", "TSLA", "NVDA"}

// File is the on-disk YAML layout.
type File struct {
	Symbols  []string `yaml:"symbols"`
	Priority []string `yaml:"priority"`
	Users    []User   `yaml:"users"`
}

// User is one recipient entry.
type User struct {
	ID             string                   `yaml:"id"`
	Name           string                   `yaml:"name"`
	Email          string                   `yaml:"email"`
	TelegramChatID string                   `yaml:"telegram_chat_id"`
	Method         model.NotificationMethod `yaml:"method"`
	Symbols        []string                 `yaml:"symbols"`
}

// Directory is the user and symbol directory, safe for concurrent use.
// Mutations are written back to the file.
type Directory struct {
	mu       sync.RWMutex
	file     File
	filePath string
}

// Load reads the directory. A missing file yields the default symbol sets and no users.
func Load(filePath string) (*Directory, error) {
	d := &Directory{filePath: filePath}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read watchlist: %w", err)
		}
		log.Printf("[WARN] watchlist %s not found, using default symbols", filePath)
	} else if err := yaml.Unmarshal(data, &d.file); err != nil {
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}
	if err := d.normalize(); err != nil {
		return nil, err
	}
	return d, nil
}

// New builds an in-memory directory that is never persisted.
func New(f File) (*Directory, error) {
	d := &Directory{file: f}
	if err := d.normalize(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Directory) normalize() error {
	if len(d.file.Symbols) == 0 {
		d.file.Symbols = slices.Clone(DefaultSymbols)
	}
	if len(d.file.Priority) == 0 {
		d.file.Priority = slices.Clone(DefaultPriority)
	}
	d.file.Symbols = cleanSymbols(d.file.Symbols)
	d.file.Priority = cleanSymbols(d.file.Priority)

	seen := make(map[string]bool)
	for i := range d.file.Users {
		u := &d.file.Users[i]
		if u.ID == "" {
			return fmt.Errorf("watchlist user #%d has no id", i+1)
		}
		if seen[u.ID] {
			return fmt.Errorf("watchlist user %q listed twice", u.ID)
		}
		seen[u.ID] = true
		if u.Method == "" {
			u.Method = model.MethodEmail
		}
		if !u.Method.Valid() {
			return fmt.Errorf("watchlist user %q: unknown method %q", u.ID, u.Method)
		}
		u.Symbols = cleanSymbols(u.Symbols)
	}
	return nil
}

func cleanSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// AllSymbols is the sorted union of the scan set and every user's symbols.
func (d *Directory) AllSymbols() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	all := slices.Clone(d.file.Symbols)
	for _, u := range d.file.Users {
		all = append(all, u.Symbols...)
	}
	slices.Sort(all)
	return slices.Compact(all)
}

// PrioritySymbols is the realtime scan set.
func (d *Directory) PrioritySymbols() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.file.Priority)
}

// Recipients returns every user as a notification recipient.
func (d *Directory) Recipients() []model.Recipient {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Recipient, len(d.file.Users))
	for i, u := range d.file.Users {
		out[i] = u.recipient()
	}
	return out
}

// Recipient looks up one user.
func (d *Directory) Recipient(userID string) (model.Recipient, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.file.Users {
		if u.ID == userID {
			return u.recipient(), true
		}
	}
	return model.Recipient{}, false
}

// RecipientByChat finds the user bound to a Telegram chat.
func (d *Directory) RecipientByChat(chatID string) (model.Recipient, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.file.Users {
		if chatID != "" && u.TelegramChatID == chatID {
			return u.recipient(), true
		}
	}
	return model.Recipient{}, false
}

func (u User) recipient() model.Recipient {
	return model.Recipient{
		UserID:         u.ID,
		Name:           u.Name,
		Email:          u.Email,
		TelegramChatID: u.TelegramChatID,
		Method:         u.Method,
		Symbols:        slices.Clone(u.Symbols),
	}
}

// AddSymbol adds symbol to the user's list. It reports false if already present.
func (d *Directory) AddSymbol(userID, symbol string) (bool, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return false, fmt.Errorf("empty symbol")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	u := d.user(userID)
	if u == nil {
		return false, fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
	}
	if slices.Contains(u.Symbols, symbol) {
		return false, nil
	}
	prev := u.Symbols
	u.Symbols = append(slices.Clone(prev), symbol)
	if err := d.save(); err != nil {
		u.Symbols = prev
		return false, err
	}
	return true, nil
}

// RemoveSymbol drops symbol from the user's list.
func (d *Directory) RemoveSymbol(userID, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	d.mu.Lock()
	defer d.mu.Unlock()
	u := d.user(userID)
	if u == nil {
		return fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
	}
	prev := u.Symbols
	u.Symbols = slices.DeleteFunc(slices.Clone(prev), func(s string) bool { return s == symbol })
	if err := d.save(); err != nil {
		u.Symbols = prev
		return err
	}
	return nil
}

func (d *Directory) user(id string) *User {
	for i := range d.file.Users {
		if d.file.Users[i].ID == id {
			return &d.file.Users[i]
		}
	}
	return nil
}

// save writes the file; caller must hold d.mu.
func (d *Directory) save() error {
	if d.filePath == "" {
		return nil
	}
	data, err := yaml.Marshal(&d.file)
	if err != nil {
		return fmt.Errorf("marshal watchlist: %w", err)
	}
	if dir := filepath.Dir(d.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create watchlist dir: %w", err)
		}
	}
	if err := os.WriteFile(d.filePath, data, 0644); err != nil {
		return fmt.Errorf("write watchlist: %w", err)
	}
	return nil
}
