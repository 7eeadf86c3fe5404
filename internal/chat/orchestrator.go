package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tramitalabs/convoca/internal/domain"
	"github.com/tramitalabs/convoca/internal/metrics"
	"github.com/tramitalabs/convoca/internal/openai"
	"github.com/tramitalabs/convoca/internal/search"
	"github.com/tramitalabs/convoca/internal/telemetry"
)

const (
	// DefaultContextGrants bounds how many grants are rendered into the
	// model context and returned per conversational turn.
	DefaultContextGrants = 5

	// sessionWriteTimeout bounds the best-effort session upsert so an
	// aborted caller never leaves the turn blocked on the cache.
	sessionWriteTimeout = 2 * time.Second
)

// Clarification bounds. A result set outside [ClarifyBelow, ClarifyAbove]
// for a plain search turn is answered with a free clarification instead
// of a model call.
const (
	DefaultClarifyAbove = 20
	DefaultClarifyBelow = 3
)

// ModelProvider is one completion backend. Each tier gets its own
// concrete provider; the orchestrator never branches on SDK shape.
type ModelProvider interface {
	Model() string
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*openai.Completion, error)
}

// Searcher runs the retrieval pipeline for one turn.
type Searcher interface {
	Search(ctx context.Context, input search.Input) (*search.Output, error)
}

// SessionStore keeps the per-session grant ordering for "show more".
type SessionStore interface {
	Put(ctx context.Context, sessionID string, grantIDs []int64) error
	Get(ctx context.Context, sessionID string) ([]int64, bool, error)
}

// GrantGetter loads grants by id, preserving the requested order.
type GrantGetter interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*domain.Grant, error)
}

// TurnLogger records completed turns. Failures are logged, never surfaced.
type TurnLogger interface {
	InsertQueryLog(ctx context.Context, entry *domain.QueryLog) error
}

// Request is one inbound conversation turn.
type Request struct {
	Message   string
	SessionID string
	Filters   domain.FilterSpec
}

// Result is the orchestrator's answer for one turn. ModelUsed is a
// provider model name, "system-clarification", or "system-error".
type Result struct {
	Answer      string
	Grants      []*domain.Grant
	TotalFound  int
	Showing     int
	HasMore     bool
	Intent      domain.Intent
	Complexity  int
	ModelUsed   string
	Confidence  float64
	Suggestions []string
}

// Orchestrator drives a conversation turn through classification,
// retrieval, the clarification check, and at most two model calls.
type Orchestrator struct {
	classifier    *Classifier
	selector      *Selector
	searcher      Searcher
	sessions      SessionStore
	grants        GrantGetter
	providers     map[domain.ModelTier]ModelProvider
	turnLog       TurnLogger
	contextGrants int
	clarifyAbove  int
	clarifyBelow  int
	logger        *zap.Logger
}

type OrchestratorConfig struct {
	ContextGrants int
	ClarifyAbove  int
	ClarifyBelow  int
}

func NewOrchestrator(
	classifier *Classifier,
	selector *Selector,
	searcher Searcher,
	sessions SessionStore,
	grants GrantGetter,
	providers map[domain.ModelTier]ModelProvider,
	turnLog TurnLogger,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.ContextGrants <= 0 {
		cfg.ContextGrants = DefaultContextGrants
	}
	if cfg.ClarifyAbove <= 0 {
		cfg.ClarifyAbove = DefaultClarifyAbove
	}
	if cfg.ClarifyBelow <= 0 {
		cfg.ClarifyBelow = DefaultClarifyBelow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		classifier:    classifier,
		selector:      selector,
		searcher:      searcher,
		sessions:      sessions,
		grants:        grants,
		providers:     providers,
		turnLog:       turnLog,
		contextGrants: cfg.ContextGrants,
		clarifyAbove:  cfg.ClarifyAbove,
		clarifyBelow:  cfg.ClarifyBelow,
		logger:        logger,
	}
}

var showMoreCues = []string{
	"muestra más", "muestra mas", "muéstrame más", "muestrame mas",
	"ver más", "ver mas", "más resultados", "mas resultados",
	"siguientes", "enséñame más", "ensename mas", "show more", "more results",
}

func isShowMore(message string) bool {
	lowered := strings.ToLower(strings.TrimSpace(message))
	for _, cue := range showMoreCues {
		if strings.Contains(lowered, cue) {
			return true
		}
	}
	return false
}

// HandleTurn runs the full state machine for one message. Provider and
// store failures inside the turn are converted into a system-error
// result; only validation failures return an error to the caller.
func (o *Orchestrator) HandleTurn(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domain.ErrEmptyMessage
	}
	if err := req.Filters.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "chat.Orchestrator.HandleTurn", telemetry.SpanAttributes{
		SessionID: req.SessionID,
		Operation: "turn",
	})
	defer span.End()

	// A cached "show more" is answered from the session ordering alone,
	// before classification, with zero model cost.
	if req.SessionID != "" && isShowMore(message) {
		res, ok := o.resumeSession(ctx, req.SessionID)
		if ok {
			o.recordTurn(ctx, req, res, start)
			return res, nil
		}
	}

	intent := o.classifier.Classify(message)
	filters := domain.MergeFilters(req.Filters, intent.Extracted)

	out, err := o.searcher.Search(ctx, search.Input{
		Query:    message,
		Filters:  filters,
		Mode:     search.ModeHybrid,
		Page:     1,
		PageSize: o.contextGrants,
	})
	if err != nil {
		o.logger.Warn("search failed during turn", zap.Error(err))
		res := o.systemError(intent.Intent)
		o.recordTurn(ctx, req, res, start)
		return res, nil
	}

	grants := grantsOf(out.Results)
	res := &Result{
		Grants:     grants,
		TotalFound: out.TotalFound,
		Showing:    len(grants),
		HasMore:    out.HasMore,
		Intent:     intent.Intent,
	}

	if o.shouldClarify(intent.Intent, out.TotalFound) {
		res.Answer = o.clarificationMessage(intent.Intent, out.TotalFound, filters)
		res.ModelUsed = domain.ModelUsedClarification
		res.Confidence = 1.0
		metrics.ConversationTurnsTotal.WithLabelValues(string(intent.Intent), "clarification").Inc()
	} else {
		o.invokeModel(ctx, message, intent.Intent, grants, res)
	}

	res.Suggestions = o.suggestions(intent.Intent, out.TotalFound, filters)

	if req.SessionID != "" {
		o.writeSession(ctx, req.SessionID, out.GrantIDs, len(grants))
	}
	o.recordTurn(ctx, req, res, start)
	return res, nil
}

func (o *Orchestrator) shouldClarify(intent domain.Intent, total int) bool {
	switch intent {
	case domain.IntentCompare, domain.IntentExplain, domain.IntentRecommend:
		return false
	}
	return total > o.clarifyAbove || total < o.clarifyBelow
}

// invokeModel picks a tier, calls it, and applies the one-shot premium
// escalation when the cheap answer comes back under the confidence bar.
func (o *Orchestrator) invokeModel(ctx context.Context, message string, intent domain.Intent, grants []*domain.Grant, res *Result) {
	sel := o.selector.Select(intent, message, len(grants))
	res.Complexity = sel.Complexity

	systemPrompt := SystemPrompt(intent)
	userPrompt := UserPrompt(message, BuildContext(grants))

	completion, modelName, err := o.completeOnce(ctx, sel.Tier, systemPrompt, userPrompt)
	if err == nil && sel.Escalatable && o.selector.ShouldRetry(sel.Tier, completion.Confidence) {
		retried, retriedModel, retryErr := o.completeOnce(ctx, domain.TierPremium, systemPrompt, userPrompt)
		if retryErr == nil {
			completion, modelName = retried, retriedModel
		}
		// keep the cheap answer if the premium retry fails
	}
	if err != nil {
		o.logger.Warn("model call failed", zap.String("intent", string(intent)), zap.Error(err))
		errRes := o.systemError(intent)
		res.Answer = errRes.Answer
		res.ModelUsed = errRes.ModelUsed
		res.Confidence = errRes.Confidence
		return
	}

	res.Answer = completion.Text
	res.ModelUsed = modelName
	res.Confidence = completion.Confidence
	metrics.ConversationTurnsTotal.WithLabelValues(string(intent), "answered").Inc()
}

// completeOnce calls one tier's provider, retrying the same tier a
// single time on a transient provider error.
func (o *Orchestrator) completeOnce(ctx context.Context, tier domain.ModelTier, systemPrompt, userPrompt string) (*openai.Completion, string, error) {
	provider, ok := o.providers[tier]
	if !ok {
		return nil, "", fmt.Errorf("no provider configured for tier %q", tier)
	}
	completion, err := provider.Complete(ctx, systemPrompt, userPrompt)
	if err != nil && domain.IsTransient(err) && ctx.Err() == nil {
		completion, err = provider.Complete(ctx, systemPrompt, userPrompt)
	}
	if err != nil {
		metrics.ModelCallsTotal.WithLabelValues(string(tier), "error").Inc()
		return nil, "", err
	}
	metrics.ModelCallsTotal.WithLabelValues(string(tier), "ok").Inc()
	return completion, provider.Model(), nil
}

func (o *Orchestrator) systemError(intent domain.Intent) *Result {
	metrics.ConversationTurnsTotal.WithLabelValues(string(intent), "error").Inc()
	return &Result{
		Answer:     "Ha ocurrido un error procesando tu consulta. Inténtalo de nuevo en unos momentos.",
		Intent:     intent,
		ModelUsed:  domain.ModelUsedError,
		Confidence: 0,
	}
}

// resumeSession answers a "show more" from the cached ordering. The
// remaining ids are written back so the next "show more" continues
// where this one stopped.
func (o *Orchestrator) resumeSession(ctx context.Context, sessionID string) (*Result, bool) {
	ids, found, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		o.logger.Warn("session read failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, false
	}
	if !found || len(ids) == 0 {
		return nil, false
	}

	show := ids
	if len(show) > o.contextGrants {
		show = show[:o.contextGrants]
	}
	grants, err := o.grants.GetByIDs(ctx, show)
	if err != nil {
		o.logger.Warn("grant fetch failed for session resume", zap.Error(err))
		return nil, false
	}

	remaining := ids[len(show):]
	o.writeSession(ctx, sessionID, remaining, 0)

	answer := fmt.Sprintf("Aquí tienes %d resultados más:", len(grants))
	if len(remaining) == 0 {
		answer = fmt.Sprintf("Aquí tienes los últimos %d resultados de la búsqueda anterior:", len(grants))
	}
	metrics.ConversationTurnsTotal.WithLabelValues(string(domain.IntentSearch), "show_more").Inc()
	return &Result{
		Answer:     answer,
		Grants:     grants,
		TotalFound: len(ids),
		Showing:    len(grants),
		HasMore:    len(remaining) > 0,
		Intent:     domain.IntentSearch,
		ModelUsed:  domain.ModelUsedClarification,
		Confidence: 1.0,
	}, true
}

// writeSession stores the ids not yet shown to the user. Best effort
// and detached from the request's cancellation.
func (o *Orchestrator) writeSession(ctx context.Context, sessionID string, ids []int64, alreadyShown int) {
	if alreadyShown > len(ids) {
		alreadyShown = len(ids)
	}
	remaining := ids[alreadyShown:]

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionWriteTimeout)
	defer cancel()
	if err := o.sessions.Put(writeCtx, sessionID, remaining); err != nil {
		o.logger.Warn("session write failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (o *Orchestrator) recordTurn(ctx context.Context, req Request, res *Result, start time.Time) {
	if o.turnLog == nil {
		return
	}
	entry := &domain.QueryLog{
		SessionID:  req.SessionID,
		Message:    req.Message,
		Intent:     res.Intent,
		TotalFound: res.TotalFound,
		ModelUsed:  res.ModelUsed,
		Confidence: res.Confidence,
		Complexity: res.Complexity,
		LatencyMs:  int(time.Since(start).Milliseconds()),
	}
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionWriteTimeout)
	defer cancel()
	if err := o.turnLog.InsertQueryLog(logCtx, entry); err != nil {
		o.logger.Warn("query log insert failed", zap.Error(err))
	}
}

func (o *Orchestrator) clarificationMessage(intent domain.Intent, total int, filters domain.FilterSpec) string {
	if intent == domain.IntentGreeting {
		return "¡Hola! Puedo buscar, explicar, comparar y recomendar convocatorias de ayudas y subvenciones públicas. Dime qué tipo de ayuda buscas, por ejemplo una región o un sector."
	}
	if total == 0 {
		return "No he encontrado convocatorias que encajen con tu consulta. Prueba a quitar algún filtro o a describir la ayuda con otras palabras."
	}
	if total < o.clarifyBelow {
		return fmt.Sprintf("Solo he encontrado %d convocatorias que encajen. ¿Quieres ampliar la búsqueda quitando algún filtro o usando términos más generales?", total)
	}
	var hints []string
	if len(filters.Regions) == 0 {
		hints = append(hints, "indicando una región")
	}
	if filters.Sector == "" {
		hints = append(hints, "un sector")
	}
	if filters.Open == nil {
		hints = append(hints, "si la quieres en plazo abierto")
	}
	hint := "añadiendo más detalle"
	if len(hints) > 0 {
		hint = strings.Join(hints, ", ")
	}
	return fmt.Sprintf("He encontrado %d convocatorias. ¿Puedes acotar la búsqueda %s?", total, hint)
}

func (o *Orchestrator) suggestions(intent domain.Intent, total int, filters domain.FilterSpec) []string {
	var out []string
	if total > 10 {
		if len(filters.Regions) == 0 {
			out = append(out, "Filtrar por región")
		}
		if filters.Sector == "" {
			out = append(out, "Filtrar por sector")
		}
		if filters.Open == nil {
			out = append(out, "Mostrar solo convocatorias en plazo")
		}
	}
	switch intent {
	case domain.IntentSearch:
		if total > 0 {
			out = append(out, "Pídeme que compare dos de estas convocatorias")
		}
	case domain.IntentExplain:
		out = append(out, "¿Quieres que te recomiende la que mejor encaja contigo?")
	case domain.IntentCompare:
		out = append(out, "¿Quieres una recomendación entre las comparadas?")
	case domain.IntentRecommend:
		out = append(out, "¿Quieres ver los requisitos en detalle?")
	}
	return out
}

func grantsOf(results []domain.ScoredGrant) []*domain.Grant {
	out := make([]*domain.Grant, 0, len(results))
	for _, r := range results {
		if r.Grant != nil {
			out = append(out, r.Grant)
		}
	}
	return out
}
