package prefs

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/aluiziolira/librosync/storage"
)

// DefaultLanguage is used when nothing valid is stored.
const DefaultLanguage = "en"

// SupportedLanguages lists the interface languages, English and Tagalog.
var SupportedLanguages = []string{"en", "tl"}

var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language is the selected interface language. It is stored as a bare string,
// not JSON.
type Language struct {
	store  storage.Storage
	logger *slog.Logger

	mu   sync.Mutex
	code string
}

// NewLanguage loads the stored language, falling back to DefaultLanguage.
func NewLanguage(store storage.Storage, opts ...Option) *Language {
	o := buildOptions(opts)
	l := &Language{store: store, logger: o.logger, code: DefaultLanguage}

	raw, ok, err := store.Get(KeyLanguage)
	switch {
	case err != nil:
		o.logger.Warn("read preferences", slog.String("key", KeyLanguage), slog.Any("error", err))
	case !ok:
	case slices.Contains(SupportedLanguages, raw):
		l.code = raw
	default:
		o.logger.Warn("unsupported stored language, using default", slog.String("language", raw))
	}
	return l
}

// Get returns the current language code.
func (l *Language) Get() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.code
}

// Set selects code, which must be one of SupportedLanguages.
func (l *Language) Set(code string) error {
	code = strings.ToLower(strings.TrimSpace(code))
	if !slices.Contains(SupportedLanguages, code) {
		return fmt.Errorf("%w %q (supported: %s)", ErrUnsupportedLanguage, code, strings.Join(SupportedLanguages, ", "))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.code = code
	if err := l.store.Set(KeyLanguage, code); err != nil {
		l.logger.Error("persist preferences", slog.String("key", KeyLanguage), slog.Any("error", err))
		return fmt.Errorf("persist %s: %w", KeyLanguage, err)
	}
	return nil
}
