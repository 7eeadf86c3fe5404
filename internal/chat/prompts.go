package chat

import (
	"fmt"
	"strings"

	"github.com/tramitalabs/convoca/internal/domain"
)

const summaryExcerptChars = 220

const basePrompt = `Eres un asistente experto en convocatorias de ayudas y subvenciones públicas españolas.
Responde siempre en el idioma del usuario. Usa únicamente la información de las convocatorias listadas a continuación; si la respuesta no está en ellas, dilo claramente.
Cita las convocatorias por su título. No inventes plazos, importes ni requisitos.`

var intentInstructions = map[domain.Intent]string{
	domain.IntentSearch: `Resume brevemente las convocatorias encontradas y destaca la más relevante para la consulta.`,
	domain.IntentExplain: `Explica en detalle la convocatoria por la que pregunta el usuario: objeto, beneficiarios, plazo de solicitud y presupuesto. Sé concreto y estructurado.`,
	domain.IntentCompare: `Compara las convocatorias listadas: objeto, beneficiarios, plazos, presupuesto y ámbito territorial. Termina con una tabla o lista de diferencias clave.`,
	domain.IntentRecommend: `Recomienda la convocatoria que mejor encaja con lo que describe el usuario y justifica la elección frente a las alternativas listadas.`,
	domain.IntentGreeting: `Saluda brevemente y explica que puedes buscar, explicar, comparar y recomendar convocatorias de ayudas públicas.`,
	domain.IntentOther: `Responde de forma útil dentro del ámbito de las convocatorias listadas. Si la pregunta queda fuera de ese ámbito, indícalo y sugiere una búsqueda.`,
}

// SystemPrompt builds the per-intent system message.
func SystemPrompt(intent domain.Intent) string {
	instruction, ok := intentInstructions[intent]
	if !ok {
		instruction = intentInstructions[domain.IntentOther]
	}
	return basePrompt + "\n\n" + instruction
}

// BuildContext renders at most five grants into the bounded textual
// block fed to the model. Summaries are cut to an excerpt; the model
// never sees full documents.
func BuildContext(grants []*domain.Grant) string {
	var b strings.Builder
	n := 0
	for _, g := range grants {
		if g == nil {
			continue
		}
		n++
		status := "cerrada"
		if g.IsOpen {
			status = "abierta"
		}
		fmt.Fprintf(&b, "[%d] %s (id %d, BDNS %s)\n", n, g.Title, g.ID, g.BDNSCode)
		fmt.Fprintf(&b, "  Organismo: %s\n", g.Organization)
		if len(g.Regions) > 0 {
			fmt.Fprintf(&b, "  Ámbito: %s\n", strings.Join(g.Regions, "; "))
		}
		fmt.Fprintf(&b, "  Estado: %s\n", status)
		if g.Budget != nil && *g.Budget > 0 {
			fmt.Fprintf(&b, "  Presupuesto: %.2f EUR\n", *g.Budget)
		}
		if excerpt := excerptOf(g.Summary); excerpt != "" {
			fmt.Fprintf(&b, "  Resumen: %s\n", excerpt)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func excerptOf(summary string) string {
	summary = strings.TrimSpace(summary)
	if len(summary) <= summaryExcerptChars {
		return summary
	}
	cut := summary[:summaryExcerptChars]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}

// UserPrompt pairs the user's message with the grant context block.
func UserPrompt(message, contextBlock string) string {
	if contextBlock == "" {
		return message
	}
	return fmt.Sprintf("Convocatorias disponibles:\n\n%s\n\nConsulta del usuario: %s", contextBlock, message)
}
