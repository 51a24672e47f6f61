package extract

import (
	"strings"
	"unicode"
)

// NotSpecified is the value backends are told to use for missing text fields.
const NotSpecified = "No especificado"

// placeholders are the normalized spellings of "no value" that backends
// return despite the prompt asking for NotSpecified.
var placeholders = map[string]bool{
	"no especificado":  true,
	"no especificada":  true,
	"not specified":    true,
	"no especificados": true,
}

// IsPlaceholder reports whether v is a "not specified" marker rather than a
// value. Surrounding quotes, trailing punctuation and case are ignored.
func IsPlaceholder(v string) bool {
	v = strings.TrimFunc(v, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	v = strings.Join(strings.Fields(strings.ToLower(v)), " ")
	return placeholders[v]
}

const promptTemplate = `Eres un asistente médico de ambulancia experto en dictados clínicos.
Corrige el texto en español latino médico y extrae:
paciente, edad, motivo, diagnóstico y tratamiento.
Devuelve **solo un JSON válido** con exactamente este formato:

{
  "corrected_text": "Texto corregido con sentido clínico",
  "patient_name": "Nombre del paciente o 'No especificado'",
  "age": número entero o 0,
  "reason": "Motivo de atención o 'No especificado'",
  "diagnosis": "Diagnóstico probable o 'No especificado'",
  "treatment": "Tratamiento realizado o 'No especificado'"
}

Texto a analizar:
"""{{TEXT}}"""
`

// BuildPrompt embeds text in the extraction instructions.
func BuildPrompt(text string) string {
	return strings.Replace(promptTemplate, "{{TEXT}}", strings.TrimSpace(text), 1)
}
