package chat

import (
	"sort"
	"strings"
	"time"

	"github.com/tramitalabs/convoca/internal/domain"
)

// Cue tables are matched against the lowercased message. Spanish forms
// come first because that is what the corpus speaks; the English forms
// cover mixed-language queries. Order of the intents matters only for
// documentation; ties are resolved in Classify.
var intentCues = []struct {
	intent domain.Intent
	cues   []string
}{
	{domain.IntentGreeting, []string{
		"hola", "buenos días", "buenos dias", "buenas tardes", "buenas noches",
		"buenas", "hey", "hello", "hi ", "saludos", "qué tal", "que tal",
	}},
	{domain.IntentCompare, []string{
		"compara", "comparar", "comparación", "comparacion", "versus", " vs ",
		"diferencia", "diferencias", "mejor que", "frente a", "compare",
	}},
	{domain.IntentRecommend, []string{
		"recomienda", "recomiéndame", "recomiendame", "recomendación", "recomendacion",
		"cuál me conviene", "cual me conviene", "qué me conviene", "que me conviene",
		"me interesa más", "me interesa mas", "aconséjame", "aconsejame",
		"recommend", "which one should",
	}},
	{domain.IntentExplain, []string{
		"qué es", "que es", "explica", "explícame", "explicame", "en qué consiste",
		"en que consiste", "cómo funciona", "como funciona", "qué significa",
		"que significa", "detalla", "explain", "what is",
	}},
	// Search cues are verbs only. Domain nouns like "ayudas" or
	// "convocatoria" appear in messages of every intent, so counting
	// them would drag everything toward SEARCH.
	{domain.IntentSearch, []string{
		"busca", "buscar", "búscame", "buscame", "encuentra", "muestra",
		"muéstrame", "muestrame", "lista", "listar", "hay alguna",
		"search", "find",
	}},
}

// regionCues maps phrases found in free text to NUTS region codes. The
// stored region strings have the "CODE - Name" shape, so the code alone
// is enough for the substring predicate.
var regionCues = map[string]string{
	"andalucía": "ES61", "andalucia": "ES61",
	"aragón": "ES24", "aragon": "ES24",
	"asturias": "ES12",
	"baleares": "ES53", "islas baleares": "ES53",
	"canarias": "ES70",
	"cantabria": "ES13",
	"castilla y león": "ES41", "castilla y leon": "ES41",
	"castilla-la mancha": "ES42", "castilla la mancha": "ES42",
	"cataluña": "ES51", "catalunya": "ES51", "cataluna": "ES51",
	"extremadura": "ES43",
	"galicia":     "ES11",
	"madrid":      "ES30",
	"murcia":      "ES62",
	"navarra":     "ES22",
	"país vasco": "ES21", "pais vasco": "ES21", "euskadi": "ES21",
	"la rioja":  "ES23",
	"valencia":  "ES52", "comunidad valenciana": "ES52",
	"alicante":  "ES521",
	"bizkaia":   "ES213", "vizcaya": "ES213",
	"gipuzkoa":  "ES212", "guipúzcoa": "ES212", "guipuzcoa": "ES212",
	"álava": "ES211", "alava": "ES211", "araba": "ES211",
	"barcelona": "ES511",
	"sevilla":   "ES618",
}

type sectorCue struct {
	phrase string
	code   string
}

// sectorCues is scanned in order; the first matching phrase wins, so a
// message naming several sectors always extracts the same one.
var sectorCues = []sectorCue{
	{"cultura", "CULTURA"},
	{"cultural", "CULTURA"},
	{"culturales", "CULTURA"},
	{"deporte", "DEPORTE"},
	{"deportivas", "DEPORTE"},
	{"investigación", "INVESTIGACION"},
	{"investigacion", "INVESTIGACION"},
	{"i+d", "INVESTIGACION"},
	{"educación", "EDUCACION"},
	{"educacion", "EDUCACION"},
	{"empleo", "EMPLEO"},
	{"agricultura", "AGRICULTURA"},
	{"turismo", "TURISMO"},
	{"medio ambiente", "MEDIO_AMBIENTE"},
	{"energía", "ENERGIA"},
	{"energia", "ENERGIA"},
	{"vivienda", "VIVIENDA"},
	{"sanidad", "SANIDAD"},
	{"innovación", "INNOVACION"},
	{"innovacion", "INNOVACION"},
	{"digitalización", "DIGITALIZACION"},
	{"digitalizacion", "DIGITALIZACION"},
}

var openCues = []string{
	"abiertas", "abierta", "abiertos", "abierto", "en plazo",
	"plazo abierto", "vigentes", "vigente", "activas", "open",
}

// Classifier assigns an intent to a raw user message by counting cue
// matches per intent. A fake clock is injectable for the temporal
// phrase extraction.
type Classifier struct {
	now func() time.Time
}

func NewClassifier() *Classifier {
	return NewClassifierWithClock(time.Now)
}

func NewClassifierWithClock(now func() time.Time) *Classifier {
	return &Classifier{now: now}
}

// Classify counts cue matches per intent and picks the winner. A tie,
// including the zero-match case, falls back to SEARCH so an uncertain
// message still attempts retrieval instead of refusing. Confidence is
// matches/(matches+1), so zero matches yields 0 and each extra cue
// pushes it toward 1 without reaching it.
func (c *Classifier) Classify(text string) domain.IntentResult {
	lowered := " " + strings.ToLower(strings.TrimSpace(text)) + " "

	best := domain.IntentSearch
	bestCount := 0
	tied := false
	for _, entry := range intentCues {
		count := 0
		for _, cue := range entry.cues {
			if strings.Contains(lowered, cue) {
				count++
			}
		}
		if count > bestCount {
			best = entry.intent
			bestCount = count
			tied = false
		} else if count == bestCount && count > 0 && entry.intent != best {
			tied = true
		}
	}
	if tied || bestCount == 0 {
		best = domain.IntentSearch
	}

	return domain.IntentResult{
		Intent:     best,
		Confidence: float64(bestCount) / float64(bestCount+1),
		Extracted:  c.ExtractFilters(text),
	}
}

// ExtractFilters scans the message for region names, temporal phrases
// and sector keywords, returning a partial FilterSpec. The caller
// merges it under any explicit filters, which win on conflicts.
func (c *Classifier) ExtractFilters(text string) domain.FilterSpec {
	lowered := strings.ToLower(text)
	var spec domain.FilterSpec

	seen := map[string]struct{}{}
	for phrase, code := range regionCues {
		if !strings.Contains(lowered, phrase) {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		spec.Regions = append(spec.Regions, code)
	}
	if len(spec.Regions) > 1 {
		// map iteration order is random; keep the output deterministic
		sort.Strings(spec.Regions)
	}

	for _, cue := range openCues {
		if strings.Contains(lowered, cue) {
			open := true
			spec.Open = &open
			break
		}
	}

	for _, cue := range sectorCues {
		if strings.Contains(lowered, cue.phrase) {
			spec.Sector = cue.code
			break
		}
	}

	if strings.Contains(lowered, "este mes") || strings.Contains(lowered, "this month") {
		now := c.now()
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0).Add(-time.Second)
		spec.DateFrom = &from
		spec.DateTo = &to
	} else if strings.Contains(lowered, "esta semana") || strings.Contains(lowered, "this week") {
		now := c.now()
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1-weekday)
		to := from.AddDate(0, 0, 7).Add(-time.Second)
		spec.DateFrom = &from
		spec.DateTo = &to
	}

	return spec
}
