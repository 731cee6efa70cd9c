// Package inbox appends captured notes to a text file kept in remote
// storage. It is the consumer of the token obtained by package auth.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultLatest is the number of reminders shown after a load or save.
const DefaultLatest = 4

var (
	// ErrFailedToLoad wraps storage errors from LoadInbox.
	ErrFailedToLoad = errors.New("failed to load inbox")
	// ErrCouldNotSaveReminder wraps storage errors from Save.
	ErrCouldNotSaveReminder = errors.New("could not save reminder")
)

// Storage reads and replaces the inbox text.
type Storage interface {
	Load(ctx context.Context) (string, error)
	Update(ctx context.Context, content string) error
}

// Inbox is the in-memory copy of the stored text.
type Inbox struct {
	storage Storage
	content string
}

// LoadInbox reads the inbox from storage.
func LoadInbox(ctx context.Context, storage Storage) (*Inbox, error) {
	content, err := storage.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoad, err)
	}
	return &Inbox{storage: storage, content: strings.TrimSpace(content)}, nil
}

// Content returns the current text.
func (i *Inbox) Content() string {
	return i.content
}

// Save appends note as a list item and writes the result to storage. The
// in-memory copy only changes if the write succeeds.
func (i *Inbox) Save(ctx context.Context, note string) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return fmt.Errorf("%w: empty note", ErrCouldNotSaveReminder)
	}
	next := i.content + "\n- " + note
	if err := i.storage.Update(ctx, next); err != nil {
		return fmt.Errorf("%w: %w", ErrCouldNotSaveReminder, err)
	}
	i.content = next
	return nil
}

// Latest returns the last n lines of the inbox, oldest first.
func (i *Inbox) Latest(n int) []string {
	if n <= 0 || i.content == "" {
		return nil
	}
	lines := strings.Split(i.content, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
