package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/attendhq/attend/internal/branch"
	"github.com/attendhq/attend/internal/history"
	"github.com/attendhq/attend/internal/llm"
)

type fakeHistory struct {
	turns     []history.Turn
	userCount int
}

func (f *fakeHistory) List(context.Context, string, string) ([]history.Turn, error) {
	return f.turns, nil
}

func (f *fakeHistory) CountUserTurns(context.Context, string, string) (int, error) {
	return f.userCount, nil
}

func testBranch() branch.Branch {
	return branch.Branch{
		ID:           "b1",
		Name:         "Filial Centro",
		City:         "Campinas",
		State:        "SP",
		Address:      "Rua Sete, 100",
		WorkingHours: "9h às 18h",
		Infos: []branch.Info{
			{Title: "Wi-Fi", Category: "serviços", Content: "senha 12345"},
		},
	}
}

func TestSystemPromptFirstInteractionGreeting(t *testing.T) {
	t.Parallel()

	prompt := SystemPrompt(testBranch(), true)
	require.Contains(t, prompt, "Inclua uma saudação adequada no início da resposta.")
	require.NotContains(t, prompt, "Não inclua saudação inicial.")
}

func TestSystemPromptRepeatInteractionNoGreeting(t *testing.T) {
	t.Parallel()

	prompt := SystemPrompt(testBranch(), false)
	require.Contains(t, prompt, "Não inclua saudação inicial.")
}

func TestSystemPromptDeterministic(t *testing.T) {
	t.Parallel()

	b := testBranch()
	require.Equal(t, SystemPrompt(b, false), SystemPrompt(b, false))
}

func TestSystemPromptDefaultInstructionsNameBranch(t *testing.T) {
	t.Parallel()

	prompt := SystemPrompt(testBranch(), false)
	require.True(t, strings.HasPrefix(prompt, "Você é a atendente virtual da filial Filial Centro."))
	require.Contains(t, prompt, "Localização: Campinas, SP, Rua Sete, 100.")
	require.Contains(t, prompt, "Horário: 9h às 18h.")
	require.Contains(t, prompt, "- Wi-Fi (serviços): senha 12345")
}

func TestSystemPromptCustomInstructionsReplaceDefault(t *testing.T) {
	t.Parallel()

	b := testBranch()
	b.BotInstructions = "Você é o atendente da pizzaria."
	prompt := SystemPrompt(b, false)
	require.True(t, strings.HasPrefix(prompt, "Você é o atendente da pizzaria."))
	require.NotContains(t, prompt, "atendente virtual da filial")
}

func TestSystemPromptEmptyInfos(t *testing.T) {
	t.Parallel()

	b := testBranch()
	b.Infos = nil
	b.WorkingHours = ""
	prompt := SystemPrompt(b, false)
	require.Contains(t, prompt, "Horário: não informado.")
	require.Contains(t, prompt, "Informações adicionais:\nNenhuma.")
}

func TestAssembleOrderAndGreeting(t *testing.T) {
	t.Parallel()

	hist := &fakeHistory{
		userCount: 2,
		turns: []history.Turn{
			{Role: history.RoleUser, Text: "oi"},
			{Role: history.RoleAssistant, Text: "olá"},
			{Role: history.RoleUser, Text: "tem mesa?"},
			{Role: history.RoleAssistant, Text: "temos sim"},
		},
	}
	a := NewAssembler(nil, hist)

	messages, err := a.Assemble(context.Background(), testBranch(), "u1", "quero reservar")
	require.NoError(t, err)
	require.Len(t, messages, 6)
	require.Equal(t, llm.RoleSystem, messages[0].Role)
	require.Contains(t, messages[0].Content, "Não inclua saudação inicial.")
	require.Equal(t, "oi", messages[1].Content)
	require.Equal(t, "temos sim", messages[4].Content)
	require.Equal(t, llm.Message{Role: llm.RoleUser, Content: "quero reservar"}, messages[5])
}

func TestAssembleFirstInteraction(t *testing.T) {
	t.Parallel()

	a := NewAssembler(nil, &fakeHistory{})
	messages, err := a.Assemble(context.Background(), testBranch(), "u1", "oi")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Contains(t, messages[0].Content, "Inclua uma saudação adequada no início da resposta.")
}
