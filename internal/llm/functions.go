package llm

import "github.com/sdrbot-io/sdrbot/pkg/protocol"

// functionDeclarations lists the functions the model may invoke, in the
// OpenAI function-calling schema format.
func functionDeclarations() []protocol.FunctionDefinition {
	return []protocol.FunctionDefinition{
		{
			Name:        "record_field",
			Description: "Salva uma informação coletada do lead (nome, email, empresa, telefone, necessidade)",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"field": map[string]any{
						"type":        "string",
						"description": "Campo a ser salvo",
						"enum":        []string{"nome", "email", "empresa", "telefone", "necessidade"},
					},
					"value": map[string]any{
						"type":        "string",
						"description": "Valor do campo",
					},
				},
				"required": []string{"field", "value"},
			},
		},
		{
			Name:        "confirm_interest",
			Description: "Marca que o lead confirmou interesse explícito em adquirir o produto/serviço",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"confirmed": map[string]any{
						"type":        "string",
						"description": "Se o interesse foi confirmado",
						"enum":        []string{"yes", "no"},
					},
				},
				"required": []string{"confirmed"},
			},
		},
		{
			Name:        "fetch_available_slots",
			Description: "Busca horários disponíveis para agendamento de reunião",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"days_ahead": map[string]any{
						"type":        "string",
						"description": "Número de dias para buscar disponibilidade (padrão: 7)",
					},
				},
				"required": []string{},
			},
		},
		{
			Name:        "book_meeting",
			Description: "Agenda uma reunião em um horário específico",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"slot_index": map[string]any{
						"type":        "string",
						"description": "Índice do horário escolhido (0, 1, 2, etc)",
					},
				},
				"required": []string{"slot_index"},
			},
		},
	}
}
