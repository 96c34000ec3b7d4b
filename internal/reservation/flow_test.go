package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/attendhq/attend/internal/llm"
)

// fakeExtractor returns canned field sets per user message.
type fakeExtractor struct {
	fields map[string]extractedFields
	err    error
}

func (f *fakeExtractor) Complete(context.Context, []llm.Message) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeExtractor) CompleteJSON(_ context.Context, messages []llm.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	userText := messages[len(messages)-1].Content
	out, _ := json.Marshal(f.fields[userText])
	return string(out), nil
}

type fakeStore struct {
	saved []Reservation
	err   error
}

func (f *fakeStore) Save(_ context.Context, r Reservation) (Reservation, error) {
	if f.err != nil {
		return Reservation{}, f.err
	}
	f.saved = append(f.saved, r)
	return r, nil
}

func TestFlowIgnoresUnrelatedText(t *testing.T) {
	t.Parallel()

	f := NewFlow(nil, &fakeExtractor{}, &fakeStore{})
	reply, handled := f.Handle(context.Background(), "b1", "chat1", "qual o horário de funcionamento?")
	require.False(t, handled)
	require.Empty(t, reply)
	require.False(t, f.Active("b1", "chat1"))
}

func TestFlowInterceptsExistingReservationClaim(t *testing.T) {
	t.Parallel()

	f := NewFlow(nil, &fakeExtractor{}, &fakeStore{})
	reply, handled := f.Handle(context.Background(), "b1", "chat1", "Já tenho uma reserva para hoje")
	require.True(t, handled)
	require.NotEmpty(t, reply)
	require.False(t, f.Active("b1", "chat1"), "a claim must not start a flow")
}

func TestFlowFullScenario(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	extractor := &fakeExtractor{fields: map[string]extractedFields{
		"Grano, Nathan, 4 pessoas, hoje 20:00": {
			Restaurant: "Grano", Name: "Nathan", Party: "4", Date: "hoje 20:00",
		},
	}}
	f := NewFlow(nil, extractor, store)
	ctx := context.Background()

	reply, handled := f.Handle(ctx, "b1", "chat1", "quero fazer uma reserva")
	require.True(t, handled)
	require.Equal(t, "Para fazer sua reserva, preciso de: restaurante, nome, número de pessoas e data/horário.", reply)
	require.True(t, f.Active("b1", "chat1"))

	reply, handled = f.Handle(ctx, "b1", "chat1", "Grano, Nathan, 4 pessoas, hoje 20:00")
	require.True(t, handled)
	require.Contains(t, reply, "Grano")
	require.Contains(t, reply, "Nathan")
	require.Contains(t, reply, "4")
	require.Contains(t, reply, "hoje 20:00")
	require.Contains(t, reply, "(sim/não)")

	reply, handled = f.Handle(ctx, "b1", "chat1", "sim")
	require.True(t, handled)
	require.Equal(t, replyCommitted, reply)
	require.False(t, f.Active("b1", "chat1"))
	require.Len(t, store.saved, 1)
	require.Equal(t, "Grano", store.saved[0].Restaurant)
	require.Equal(t, "Nathan", store.saved[0].Name)
	require.Equal(t, "4", store.saved[0].Party)

	// Resolved chats fall back to the general pipeline.
	_, handled = f.Handle(ctx, "b1", "chat1", "obrigado!")
	require.False(t, handled)
}

func TestFlowSaveFailureKeepsPendingForRetry(t *testing.T) {
	t.Parallel()

	store := &fakeStore{err: errors.New("db down")}
	extractor := &fakeExtractor{fields: map[string]extractedFields{
		"Grano, Nathan, 4, hoje 20:00": {
			Restaurant: "Grano", Name: "Nathan", Party: "4", Date: "hoje 20:00",
		},
	}}
	f := NewFlow(nil, extractor, store)
	ctx := context.Background()

	f.Handle(ctx, "b1", "chat1", "quero fazer uma reserva")
	f.Handle(ctx, "b1", "chat1", "Grano, Nathan, 4, hoje 20:00")

	reply, handled := f.Handle(ctx, "b1", "chat1", "sim")
	require.True(t, handled)
	require.Contains(t, reply, "Tente novamente")
	require.True(t, f.Active("b1", "chat1"), "a failed save must keep the pending record")
	require.Empty(t, store.saved)

	// Once the store recovers, the same confirmation commits.
	store.err = nil
	reply, handled = f.Handle(ctx, "b1", "chat1", "sim")
	require.True(t, handled)
	require.Equal(t, replyCommitted, reply)
	require.False(t, f.Active("b1", "chat1"))
	require.Len(t, store.saved, 1)
	require.Equal(t, "Grano", store.saved[0].Restaurant)
}

func TestFlowCancelOnConfirm(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	extractor := &fakeExtractor{fields: map[string]extractedFields{
		"Grano, Nathan, 4, hoje 20:00": {
			Restaurant: "Grano", Name: "Nathan", Party: "4", Date: "hoje 20:00",
		},
	}}
	f := NewFlow(nil, extractor, store)
	ctx := context.Background()

	f.Handle(ctx, "b1", "chat1", "quero fazer uma reserva")
	f.Handle(ctx, "b1", "chat1", "Grano, Nathan, 4, hoje 20:00")

	reply, handled := f.Handle(ctx, "b1", "chat1", "não")
	require.True(t, handled)
	require.Equal(t, replyCancelled, reply)
	require.False(t, f.Active("b1", "chat1"))
	require.Empty(t, store.saved)
}

func TestFlowReasksOnAmbiguousConfirm(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{fields: map[string]extractedFields{
		"tudo": {Restaurant: "Grano", Name: "Nathan", Party: "4", Date: "amanhã 19:00"},
	}}
	f := NewFlow(nil, extractor, &fakeStore{})
	ctx := context.Background()

	f.Handle(ctx, "b1", "chat1", "quero fazer uma reserva")
	f.Handle(ctx, "b1", "chat1", "tudo")

	reply, handled := f.Handle(ctx, "b1", "chat1", "talvez")
	require.True(t, handled)
	require.Equal(t, replyReask, reply)
	require.True(t, f.Active("b1", "chat1"), "state must not change on ambiguous reply")
}

func TestFlowPartialFieldsPromptNamesMissing(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{fields: map[string]extractedFields{
		"no Grano, sou o Nathan": {Restaurant: "Grano", Name: "Nathan"},
	}}
	f := NewFlow(nil, extractor, &fakeStore{})
	ctx := context.Background()

	f.Handle(ctx, "b1", "chat1", "quero fazer uma reserva")
	reply, _ := f.Handle(ctx, "b1", "chat1", "no Grano, sou o Nathan")
	require.Equal(t, "Para fazer sua reserva, preciso de: número de pessoas e data/horário.", reply)
}

func TestFlowFilledFieldsNeverOverwritten(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{fields: map[string]extractedFields{
		"no Grano":       {Restaurant: "Grano"},
		"mudei, no Zeno": {Restaurant: "Zeno", Name: "Nathan"},
	}}
	f := NewFlow(nil, extractor, &fakeStore{})
	ctx := context.Background()

	f.Handle(ctx, "b1", "chat1", "quero fazer uma reserva")
	f.Handle(ctx, "b1", "chat1", "no Grano")
	f.Handle(ctx, "b1", "chat1", "mudei, no Zeno")

	f.mu.Lock()
	p := f.pending[chatKey("b1", "chat1")]
	f.mu.Unlock()
	require.Equal(t, "Grano", p.Restaurant)
	require.Equal(t, "Nathan", p.Name)
}

func TestFlowExtractionFailureKeepsAsking(t *testing.T) {
	t.Parallel()

	f := NewFlow(nil, &fakeExtractor{err: errors.New("model down")}, &fakeStore{})
	ctx := context.Background()

	reply, handled := f.Handle(ctx, "b1", "chat1", "quero fazer uma reserva")
	require.True(t, handled)
	require.Equal(t, "Para fazer sua reserva, preciso de: restaurante, nome, número de pessoas e data/horário.", reply)
}

func TestFlowChatsAreIndependent(t *testing.T) {
	t.Parallel()

	f := NewFlow(nil, &fakeExtractor{}, &fakeStore{})
	ctx := context.Background()

	f.Handle(ctx, "b1", "chat1", "quero fazer uma reserva")
	require.True(t, f.Active("b1", "chat1"))
	require.False(t, f.Active("b1", "chat2"))
	require.False(t, f.Active("b2", "chat1"))
}

func TestExpireStale(t *testing.T) {
	t.Parallel()

	f := NewFlow(nil, &fakeExtractor{}, &fakeStore{})
	current := time.Unix(1700000000, 0)
	f.now = func() time.Time { return current }
	ctx := context.Background()

	f.Handle(ctx, "b1", "old", "quero fazer uma reserva")
	current = current.Add(20 * time.Minute)
	f.Handle(ctx, "b1", "fresh", "quero fazer uma reserva")

	current = current.Add(15 * time.Minute)
	removed := f.ExpireStale(30 * time.Minute)
	require.Equal(t, 1, removed)
	require.False(t, f.Active("b1", "old"))
	require.True(t, f.Active("b1", "fresh"))
}
