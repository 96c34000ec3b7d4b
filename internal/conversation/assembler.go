// Package conversation builds the model context for one inbound message.
package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attendhq/attend/internal/branch"
	"github.com/attendhq/attend/internal/history"
	"github.com/attendhq/attend/internal/llm"
)

// HistoryReader is the slice of the history service the assembler needs.
type HistoryReader interface {
	List(ctx context.Context, branchID, userID string) ([]history.Turn, error)
	CountUserTurns(ctx context.Context, branchID, userID string) (int, error)
}

// Assembler produces the ordered message list sent to the model.
type Assembler struct {
	history HistoryReader
	logger  *slog.Logger
}

// NewAssembler creates an assembler.
func NewAssembler(log *slog.Logger, hist HistoryReader) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{
		history: hist,
		logger:  log.With(slog.String("service", "conversation")),
	}
}

// Assemble returns [system] + full history ascending + the new user turn.
// Call it before persisting the new turn; the greeting directive depends on
// whether the contact has any prior user turns.
func (a *Assembler) Assemble(ctx context.Context, b branch.Branch, userID, newText string) ([]llm.Message, error) {
	count, err := a.history.CountUserTurns(ctx, b.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("assemble context: %w", err)
	}
	turns, err := a.history.List(ctx, b.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("assemble context: %w", err)
	}

	messages := make([]llm.Message, 0, len(turns)+2)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: SystemPrompt(b, count == 0),
	})
	for _, turn := range turns {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Text})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: newText})
	return messages, nil
}
