// Package inbound runs the message pipeline: dedup, media normalization,
// reservation interception, context assembly, model call, and dispatch.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/attendhq/attend/internal/branch"
	"github.com/attendhq/attend/internal/channel"
	"github.com/attendhq/attend/internal/history"
	"github.com/attendhq/attend/internal/llm"
)

// ApologyReply is the canned answer when the model call fails.
const ApologyReply = "Desculpe, ocorreu um problema interno. Tente mais tarde."

// ErrSeenMessage marks a redelivered message dropped by dedup.
var ErrSeenMessage = errors.New("message already processed")

// ErrInactiveBranch marks a message for a branch that must stay silent.
var ErrInactiveBranch = errors.New("branch inactive")

// Deduplicator drops redelivered message ids.
type Deduplicator interface {
	ShouldProcess(id string) bool
}

// BranchReader loads tenant configuration.
type BranchReader interface {
	Get(ctx context.Context, id string) (branch.Branch, error)
}

// Normalizer reduces a message to text.
type Normalizer interface {
	Normalize(ctx context.Context, msg channel.InboundMessage) string
}

// HistoryWriter appends conversation turns.
type HistoryWriter interface {
	Append(ctx context.Context, branchID, userID, role, text string) (history.Turn, error)
}

// Assembler builds the model context.
type Assembler interface {
	Assemble(ctx context.Context, b branch.Branch, userID, newText string) ([]llm.Message, error)
}

// ReservationFlow intercepts chats that are mid-reservation or show intent.
type ReservationFlow interface {
	Handle(ctx context.Context, branchID, chatID, text string) (reply string, handled bool)
}

// Processor handles one inbound message end to end.
type Processor struct {
	dedup        Deduplicator
	branches     BranchReader
	normalizer   Normalizer
	historyStore HistoryWriter
	assembler    Assembler
	model        llm.Completer
	reservations ReservationFlow
	dispatcher   *Dispatcher
	logger       *slog.Logger
}

// NewProcessor wires the pipeline.
func NewProcessor(
	log *slog.Logger,
	dedup Deduplicator,
	branches BranchReader,
	normalizer Normalizer,
	historyStore HistoryWriter,
	assembler Assembler,
	model llm.Completer,
	reservations ReservationFlow,
	dispatcher *Dispatcher,
) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		dedup:        dedup,
		branches:     branches,
		normalizer:   normalizer,
		historyStore: historyStore,
		assembler:    assembler,
		model:        model,
		reservations: reservations,
		dispatcher:   dispatcher,
		logger:       log.With(slog.String("service", "inbound")),
	}
}

// HandleInbound processes one message. The dedup check runs before any
// other side effect; an inactive or unknown branch produces no reply at all.
func (p *Processor) HandleInbound(ctx context.Context, branchID string, sess channel.Session, msg channel.InboundMessage) error {
	if !p.dedup.ShouldProcess(msg.ID) {
		return ErrSeenMessage
	}

	b, err := p.branches.Get(ctx, branchID)
	if err != nil {
		return fmt.Errorf("load branch: %w", err)
	}
	if !b.Active {
		return ErrInactiveBranch
	}

	userID := msg.From
	userText := p.normalizer.Normalize(ctx, msg)

	if reply, handled := p.reservations.Handle(ctx, branchID, msg.ChatID, userText); handled {
		return p.reply(ctx, sess, branchID, userID, msg.ChatID, userText, reply)
	}

	messages, err := p.assembler.Assemble(ctx, b, userID, userText)
	if err != nil {
		return fmt.Errorf("assemble context: %w", err)
	}
	if _, err := p.historyStore.Append(ctx, branchID, userID, history.RoleUser, userText); err != nil {
		return fmt.Errorf("persist user turn: %w", err)
	}

	replyText, err := p.model.Complete(ctx, messages)
	if err != nil {
		p.logger.Error("model call failed",
			slog.String("branch_id", branchID), slog.Any("error", err))
		replyText = ApologyReply
	}

	return p.dispatch(ctx, sess, branchID, userID, msg.ChatID, replyText)
}

// reply persists both turns of a reservation exchange and dispatches.
func (p *Processor) reply(ctx context.Context, sess channel.Session, branchID, userID, chatID, userText, replyText string) error {
	if _, err := p.historyStore.Append(ctx, branchID, userID, history.RoleUser, userText); err != nil {
		return fmt.Errorf("persist user turn: %w", err)
	}
	return p.dispatch(ctx, sess, branchID, userID, chatID, replyText)
}

// dispatch persists the assistant turn first; a failed send never undoes it.
func (p *Processor) dispatch(ctx context.Context, sess channel.Session, branchID, userID, chatID, replyText string) error {
	if _, err := p.historyStore.Append(ctx, branchID, userID, history.RoleAssistant, replyText); err != nil {
		return fmt.Errorf("persist assistant turn: %w", err)
	}
	if err := p.dispatcher.Dispatch(ctx, sess, chatID, replyText); err != nil {
		return fmt.Errorf("dispatch reply: %w", err)
	}
	return nil
}
