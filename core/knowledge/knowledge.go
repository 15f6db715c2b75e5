// Package knowledge loads the assistant's knowledge-base text and assembles
// prompts from it.
package knowledge

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/adalundhe/relay/core/chat"
	"github.com/adalundhe/relay/core/locale"
)

// Base holds the current knowledge text. Reloads swap the text atomically;
// a failed reload keeps the last good copy.
type Base struct {
	mu      sync.RWMutex
	text    string
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

func NewBase(path string, logger *slog.Logger) (*Base, error) {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Base{path: path, logger: logger}
	if err := b.reload(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Base) reload() error {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return fmt.Errorf("reading knowledge base: %w", err)
	}

	b.mu.Lock()
	b.text = string(data)
	b.mu.Unlock()
	return nil
}

func (b *Base) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// Watch hot-reloads the knowledge file on writes until Close is called.
func (b *Base) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		watcher.Close()
		return err
	}
	b.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != b.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := b.reload(); err != nil {
					b.logger.Warn("knowledge base reload failed, keeping previous", "error", err)
					continue
				}
				b.logger.Info("knowledge base reloaded", "path", b.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				b.logger.Warn("knowledge base watcher error", "error", err)
			}
		}
	}()

	return nil
}

func (b *Base) Close() error {
	if b.watcher == nil {
		return nil
	}
	return b.watcher.Close()
}

// historyLimit bounds how many prior turns are replayed into the prompt.
const historyLimit = 10

// BuildPrompt assembles the outbound prompt: knowledge text, recent
// conversation turns, the visitor's question, and the answer-language
// directive.
func (b *Base) BuildPrompt(req *chat.ChatRequest) string {
	var sb strings.Builder

	sb.WriteString(b.Text())
	sb.WriteString("\n\n")

	history := req.History
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	if len(history) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, m := range history {
			label := "Visitor"
			if m.Role == chat.RoleAssistant {
				label = "Assistant"
			}
			fmt.Fprintf(&sb, "%s: %s\n", label, m.Content)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Visitor question: %s\n\n", req.Question)

	if req.Language == locale.Russian {
		sb.WriteString("Answer in Russian.")
	} else {
		sb.WriteString("Answer in English.")
	}

	return sb.String()
}
