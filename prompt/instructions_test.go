package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateFill(t *testing.T) {
	tmpl := NewTemplate("Eres el asistente de {company}, experto en {domain}. Responde por {company}.")

	out := tmpl.Fill("Urufarma", "farmacia")

	assert.Equal(t, "Eres el asistente de Urufarma, experto en farmacia. Responde por Urufarma.", out)
}

func TestParseInstructionsAssemblesSections(t *testing.T) {
	data := []byte(`{
		"instruction": {
			"general": "Eres el asistente de {company}.",
			"response_guidelines": ["Sé conciso.", "Cita documentos."],
			"prioritization": "Prefiere el contexto factual.",
			"examples": ["P: horario R: 9 a 18"],
			"fallback": "Indica que no tienes la información."
		}
	}`)

	tmpl, err := ParseInstructions(data)
	require.NoError(t, err)

	text := tmpl.String()
	assert.Contains(t, text, "Eres el asistente de {company}.")
	assert.Contains(t, text, "Sé conciso.\nCita documentos.")
	assert.Contains(t, text, "Prioritization:\nPrefiere el contexto factual.")
	assert.Contains(t, text, "Fallback:\nIndica que no tienes la información.")
}

func TestParseInstructionsRequiresGeneral(t *testing.T) {
	_, err := ParseInstructions([]byte(`{"instruction": {"fallback": "x"}}`))
	assert.Error(t, err)
}

func TestParseInstructionsRejectsInvalidJSON(t *testing.T) {
	_, err := ParseInstructions([]byte(`{"instruction":`))
	assert.Error(t, err)
}

func TestParseInstructionsRequiresInstructionSection(t *testing.T) {
	_, err := ParseInstructions([]byte(`{"other": {}}`))
	assert.Error(t, err)
}
