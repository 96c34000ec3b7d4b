package conversation

import (
	"fmt"
	"strings"

	"github.com/attendhq/attend/internal/branch"
)

const (
	greetingFirst  = "Inclua uma saudação adequada no início da resposta."
	greetingRepeat = "Não inclua saudação inicial."
)

// SystemPrompt renders the attendant instructions for a branch. The output
// is fully determined by the branch record and the first-interaction flag.
func SystemPrompt(b branch.Branch, firstInteraction bool) string {
	baseInst := strings.TrimSpace(b.BotInstructions)
	if baseInst == "" {
		baseInst = strings.TrimSpace(fmt.Sprintf(
			"Você é a atendente virtual da filial %s.\nSeu objetivo é oferecer um atendimento acolhedor, simpático e direto ao ponto.",
			b.Name,
		))
	}

	greetingRule := greetingRepeat
	if firstInteraction {
		greetingRule = greetingFirst
	}

	instructions := strings.Join([]string{
		baseInst,
		"Ao receber a mensagem do cliente, siga:",
		"1. Leia atentamente o texto e entenda o contexto.",
		"2. " + greetingRule,
		"3. Responda em UMA ÚNICA mensagem.",
		"4. Seja coerente e trate diretamente o que o cliente perguntou.",
		"5. Use tom amigável e profissional.",
	}, "\n")

	location := fmt.Sprintf("Localização: %s, %s", b.City, b.State)
	if b.Address != "" {
		location += ", " + b.Address
	}
	location += "."

	hours := b.WorkingHours
	if hours == "" {
		hours = "não informado"
	}

	lines := make([]string, 0, len(b.Infos))
	for _, info := range b.Infos {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", info.Title, info.Category, info.Content))
	}
	infosText := strings.Join(lines, "\n")
	if infosText == "" {
		infosText = "Nenhuma."
	}

	return strings.TrimSpace(fmt.Sprintf(
		"%s\n\n%s\nHorário: %s.\n\nInformações adicionais:\n%s",
		instructions, location, hours, infosText,
	))
}
