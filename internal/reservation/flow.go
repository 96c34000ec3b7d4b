// Package reservation runs the slot-filling flow that collects a
// reservation over multiple turns before handing the chat back to the
// general pipeline.
package reservation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/attendhq/attend/internal/llm"
)

var (
	claimPattern  = regexp.MustCompile(`(?i)\bj[aá]\s+tenho\s+(uma\s+)?reserva`)
	intentPattern = regexp.MustCompile(`(?i)(fazer\s+(uma\s+)?reserva|quero\s+reservar|gostaria\s+de\s+reservar|quero\s+.*\breserva\b)`)
)

var affirmativePrefixes = []string{"sim", "claro", "ok", "confirmo", "pode"}

var negativePrefixes = []string{"não", "nao", "cancela"}

const (
	replyClaim     = "Que bom! Sua reserva já está registrada. Se precisar alterar ou cancelar, é só me avisar."
	replyCancelled = "Tudo bem, reserva cancelada. Se mudar de ideia, é só me chamar."
	replyReask     = "Por favor, responda sim ou não para confirmar a reserva."
	replyCommitted = "Reserva confirmada! Até breve."
)

// Store persists committed reservations.
type Store interface {
	Save(ctx context.Context, r Reservation) (Reservation, error)
}

// Flow owns the per-chat pending registry. One Pending per chat; entries
// are created on intent, mutated per turn, and removed on commit, cancel,
// or expiry.
type Flow struct {
	mu      sync.Mutex
	pending map[string]*Pending

	extractor llm.Completer
	store     Store
	logger    *slog.Logger
	now       func() time.Time
}

// NewFlow creates a reservation flow.
func NewFlow(log *slog.Logger, extractor llm.Completer, store Store) *Flow {
	if log == nil {
		log = slog.Default()
	}
	return &Flow{
		pending:   make(map[string]*Pending),
		extractor: extractor,
		store:     store,
		logger:    log.With(slog.String("service", "reservation")),
		now:       time.Now,
	}
}

func chatKey(branchID, chatID string) string {
	return branchID + "|" + chatID
}

// Handle routes text through the reservation flow. It reports handled=false
// when the chat has no pending reservation and the text shows no
// reservation intent, in which case the general pipeline takes over.
func (f *Flow) Handle(ctx context.Context, branchID, chatID, text string) (reply string, handled bool) {
	f.mu.Lock()
	p, active := f.pending[chatKey(branchID, chatID)]
	f.mu.Unlock()

	if active {
		return f.advance(ctx, p, text), true
	}

	// Claims about an existing reservation are answered directly and never
	// start a flow.
	if claimPattern.MatchString(text) {
		return replyClaim, true
	}
	if !intentPattern.MatchString(text) {
		return "", false
	}

	p = &Pending{
		ID:        uuid.NewString(),
		BranchID:  branchID,
		ChatID:    chatID,
		Stage:     StageFilling,
		UpdatedAt: f.now(),
	}
	f.mu.Lock()
	f.pending[chatKey(branchID, chatID)] = p
	f.mu.Unlock()

	return f.fill(ctx, p, text), true
}

func (f *Flow) advance(ctx context.Context, p *Pending, text string) string {
	switch p.Stage {
	case StageConfirm:
		return f.confirm(ctx, p, text)
	default:
		return f.fill(ctx, p, text)
	}
}

func (f *Flow) fill(ctx context.Context, p *Pending, text string) string {
	fields := f.extract(ctx, text)

	f.mu.Lock()
	if p.Restaurant == "" {
		p.Restaurant = fields.Restaurant
	}
	if p.Name == "" {
		p.Name = fields.Name
	}
	if p.Party == "" {
		p.Party = fields.Party
	}
	if p.Date == "" {
		p.Date = fields.Date
	}
	p.UpdatedAt = f.now()
	complete := p.complete()
	if complete {
		p.Stage = StageConfirm
	}
	summary := fmt.Sprintf(
		"Confirme sua reserva: restaurante %s, nome %s, %s pessoas, %s. Está correto? (sim/não)",
		p.Restaurant, p.Name, p.Party, p.Date,
	)
	missing := p.missingFields()
	f.mu.Unlock()

	if complete {
		return summary
	}
	return "Para fazer sua reserva, preciso de: " + joinFields(missing) + "."
}

func (f *Flow) confirm(ctx context.Context, p *Pending, text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	switch {
	case hasAnyPrefix(normalized, affirmativePrefixes):
		_, err := f.store.Save(ctx, Reservation{
			ID:         p.ID,
			BranchID:   p.BranchID,
			UserID:     p.ChatID,
			Restaurant: p.Restaurant,
			Name:       p.Name,
			Party:      p.Party,
			Date:       p.Date,
		})
		if err != nil {
			// Stay in confirm so the next "sim" retries the commit.
			f.logger.Error("reservation save failed",
				slog.String("branch_id", p.BranchID), slog.Any("error", err))
			return "Desculpe, ocorreu um problema ao registrar sua reserva. Tente novamente."
		}
		f.remove(p)
		return replyCommitted

	case hasAnyPrefix(normalized, negativePrefixes):
		f.remove(p)
		return replyCancelled

	default:
		return replyReask
	}
}

type extractedFields struct {
	Restaurant string `json:"restaurante"`
	Name       string `json:"nome"`
	Party      string `json:"pessoas"`
	Date       string `json:"data"`
}

const extractionInstruction = `Você extrai dados de reserva de restaurante de uma mensagem em português.
Responda SOMENTE com um objeto JSON com as chaves "restaurante", "nome", "pessoas" e "data".
Use "" para qualquer informação ausente. Não invente valores.`

// extract asks the model for the fields mentioned in text. Any failure
// resolves to empty fields for this turn; the missing-fields prompt covers
// the rest.
func (f *Flow) extract(ctx context.Context, text string) extractedFields {
	raw, err := f.extractor.CompleteJSON(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: extractionInstruction},
		{Role: llm.RoleUser, Content: text},
	})
	if err != nil {
		f.logger.Warn("reservation extraction failed", slog.Any("error", err))
		return extractedFields{}
	}
	var fields extractedFields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		f.logger.Warn("reservation extraction returned invalid JSON", slog.Any("error", err))
		return extractedFields{}
	}
	fields.Restaurant = strings.TrimSpace(fields.Restaurant)
	fields.Name = strings.TrimSpace(fields.Name)
	fields.Party = strings.TrimSpace(fields.Party)
	fields.Date = strings.TrimSpace(fields.Date)
	return fields
}

func (f *Flow) remove(p *Pending) {
	f.mu.Lock()
	delete(f.pending, chatKey(p.BranchID, p.ChatID))
	f.mu.Unlock()
}

// Active reports whether the chat is mid-flow.
func (f *Flow) Active(branchID, chatID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[chatKey(branchID, chatID)]
	return ok
}

// ExpireStale drops pendings idle longer than ttl. Scheduled by maintenance.
func (f *Flow) ExpireStale(ttl time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := f.now().Add(-ttl)
	removed := 0
	for key, p := range f.pending {
		if p.UpdatedAt.Before(cutoff) {
			delete(f.pending, key)
			removed++
		}
	}
	if removed > 0 {
		f.logger.Info("expired stale pending reservations", slog.Int("count", removed))
	}
	return removed
}

func joinFields(fields []string) string {
	switch len(fields) {
	case 0:
		return ""
	case 1:
		return fields[0]
	default:
		return strings.Join(fields[:len(fields)-1], ", ") + " e " + fields[len(fields)-1]
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
