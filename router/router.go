package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bohumlab/commission-gateway/cache"
	"github.com/bohumlab/commission-gateway/common/logger"
	"github.com/bohumlab/commission-gateway/config"
	"github.com/bohumlab/commission-gateway/dataset"
	"github.com/bohumlab/commission-gateway/detector"
	"github.com/bohumlab/commission-gateway/gating"
	"github.com/bohumlab/commission-gateway/llm"
	"github.com/bohumlab/commission-gateway/matcher"
	"github.com/bohumlab/commission-gateway/memory"
	"github.com/bohumlab/commission-gateway/metrics"
	"github.com/bohumlab/commission-gateway/post"
	"github.com/bohumlab/commission-gateway/prompt"
	"github.com/bohumlab/commission-gateway/resolver"
	"github.com/bohumlab/commission-gateway/retriever"
	"github.com/bohumlab/commission-gateway/schema"
)

// Route names for the two answer paths.
const (
	RouteCommission = "commission"
	RouteGeneral    = "general"
)

// Answer statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Canned Korean error texts shown to end users when a branch fails.
const (
	msgFetchFailed = "수수료 정보를 가져오는 데 실패했습니다."
	msgTimeout     = "수수료 조회 시간이 초과되었습니다."
	msgGeneric     = "수수료 조회 중 오류가 발생했습니다."
)

// Answer is the full routing outcome for one query. Commission fields are
// only populated when the commission branch produced the answer.
type Answer struct {
	Status       string               `json:"status"`
	Query        string               `json:"query"`
	Route        string               `json:"route"`
	ParsedQuery  *matcher.ParsedQuery `json:"parsed_query,omitempty"`
	BestMatch    *matcher.Candidate   `json:"best_match,omitempty"`
	Percentage   float64              `json:"percentage,omitempty"`
	Commission   *resolver.Resolved   `json:"commission_data,omitempty"`
	Alternatives []matcher.Candidate  `json:"alternatives,omitempty"`
	Text         string               `json:"answer"`
	Error        string               `json:"error,omitempty"`
}

// QueryRouter is the single entry point of the gateway: it classifies each
// query, answers commission questions from the structured dataset, and falls
// back to knowledge-base retrieval for everything else. The commission branch
// never retries; any failure there hands the query to the general branch once.
type QueryRouter struct {
	detector  *detector.Detector
	matcher   *matcher.Matcher
	datasets  *dataset.Store
	completer llm.Provider
	retriever retriever.Retriever
	gate      gating.Provider
	reranker  post.Reranker
	budgeter  *prompt.Budgeter
	history   memory.ConversationStore

	contextCache *cache.LRU[string]

	confidenceThreshold float64
	llmTimeout          time.Duration
	retrievalTimeout    time.Duration
	topK                int
	rerankTopN          int
	historyRounds       int
}

// Options wires the router's collaborators. Detector, Matcher, Datasets and
// Completer are required; the retrieval-side fields may be nil, in which case
// the general branch degrades gracefully (no rerank, no history, and a plain
// error when retrieval itself is missing).
type Options struct {
	Detector  *detector.Detector
	Matcher   *matcher.Matcher
	Datasets  *dataset.Store
	Completer llm.Provider
	Retriever retriever.Retriever
	Gate      gating.Provider
	Reranker  post.Reranker
	Budgeter  *prompt.Budgeter
	History   memory.ConversationStore

	ContextCache *cache.LRU[string]

	Router     config.RouterConfig
	Retrieval  config.RetrievalConfig
	RerankTopN int
}

// New builds a QueryRouter from explicit collaborators.
func New(opt Options) (*QueryRouter, error) {
	if opt.Detector == nil || opt.Matcher == nil || opt.Datasets == nil {
		return nil, errors.New("router: detector, matcher and dataset store are required")
	}
	if opt.Completer == nil {
		return nil, errors.New("router: completion provider is required")
	}
	r := &QueryRouter{
		detector:            opt.Detector,
		matcher:             opt.Matcher,
		datasets:            opt.Datasets,
		completer:           opt.Completer,
		retriever:           opt.Retriever,
		gate:                opt.Gate,
		reranker:            opt.Reranker,
		budgeter:            opt.Budgeter,
		history:             opt.History,
		contextCache:        opt.ContextCache,
		confidenceThreshold: opt.Router.ConfidenceThreshold,
		llmTimeout:          time.Duration(opt.Router.LLMTimeoutS) * time.Second,
		retrievalTimeout:    time.Duration(opt.Router.RetrievalTimeoutS) * time.Second,
		topK:                opt.Retrieval.TopK,
		rerankTopN:          opt.RerankTopN,
		historyRounds:       opt.Retrieval.ContextHistory,
	}
	if r.confidenceThreshold <= 0 {
		r.confidenceThreshold = detector.CommissionThreshold
	}
	if r.llmTimeout <= 0 {
		r.llmTimeout = 20 * time.Second
	}
	if r.retrievalTimeout <= 0 {
		r.retrievalTimeout = 10 * time.Second
	}
	if r.topK <= 0 {
		r.topK = 5
	}
	if r.rerankTopN <= 0 {
		r.rerankTopN = 5
	}
	if r.historyRounds <= 0 {
		r.historyRounds = 5
	}
	return r, nil
}

// Handle answers one query. sessionID scopes conversation history; an empty
// sessionID disables it.
func (r *QueryRouter) Handle(ctx context.Context, sessionID, query string) *Answer {
	start := time.Now()

	det := r.detector.Detect(query)
	metrics.ObserveDetector(det.Confidence)
	logger.Infof("router: detect query=%q commission=%v confidence=%.2f", query, det.IsCommissionQuery, det.Confidence)

	if det.IsCommissionQuery && det.Confidence >= r.confidenceThreshold {
		if ans := r.tryCommission(ctx, query); ans != nil {
			metrics.IncRoute(RouteCommission)
			metrics.ObserveAnswer(RouteCommission, start)
			return ans
		}
	}

	ans := r.general(ctx, sessionID, query)
	metrics.IncRoute(RouteGeneral)
	metrics.ObserveAnswer(RouteGeneral, start)
	return ans
}

// tryCommission runs the structured branch. A nil return means the query
// should fall through to the general branch: no product cleared the match
// floor, the requested tier was out of range, or the branch failed outright.
// Panics inside the branch are treated the same way as failures.
func (r *QueryRouter) tryCommission(ctx context.Context, query string) (ans *Answer) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("router: commission branch panic: %v", rec)
			ans = nil
		}
	}()

	ds := r.datasets.Current()
	parsed := matcher.ParseQuery(query, ds)
	res := r.matcher.Match(ds, parsed)
	if !res.Found() {
		logger.Infof("router: no product match (%s), falling back to general branch", res.Reason)
		return nil
	}
	metrics.ObserveMatchScore(res.BestMatch.MatchScore)

	resolved, err := resolver.Resolve(res.BestMatch.Company, res.BestMatch.Record, parsed.Percentage)
	if err != nil {
		logger.Warnf("router: resolve failed for %q: %v", res.BestMatch.ProductName, err)
		return nil
	}

	commissionContext := r.commissionContext(res.BestMatch, resolved)

	llmCtx, cancel := context.WithTimeout(ctx, r.llmTimeout)
	defer cancel()
	text, err := r.completer.GenerateCompletion(llmCtx, []schema.ChatMessage{
		{Role: schema.RoleSystem, Content: llm.BuildCommissionPrompt(commissionContext)},
		{Role: schema.RoleUser, Content: query},
	})
	if err != nil {
		logger.Warnf("router: commission completion failed: %v", err)
		return nil
	}

	return &Answer{
		Status:       StatusSuccess,
		Query:        query,
		Route:        RouteCommission,
		ParsedQuery:  &parsed,
		BestMatch:    res.BestMatch,
		Percentage:   resolved.Percentage,
		Commission:   resolved,
		Alternatives: res.Alternatives,
		Text:         text,
	}
}

// commissionContext formats the resolved rates for the prompt, memoized per
// product and tier so repeated lookups of popular products skip formatting.
func (r *QueryRouter) commissionContext(best *matcher.Candidate, resolved *resolver.Resolved) string {
	if r.contextCache == nil {
		return resolver.FormatContext(best, resolved)
	}
	key := fmt.Sprintf("%s|%d|%.0f", best.Company, best.RowNumber, resolved.Percentage)
	if cached, ok := r.contextCache.Get(key); ok {
		return cached
	}
	out := resolver.FormatContext(best, resolved)
	r.contextCache.Set(key, out, 0)
	return out
}

// general answers from the knowledge base. This branch runs at most once per
// query; its failures surface to the user as a Korean apology rather than a
// second attempt.
func (r *QueryRouter) general(ctx context.Context, sessionID, query string) *Answer {
	ans := &Answer{Query: query, Route: RouteGeneral}

	if r.retriever == nil {
		ans.Status = StatusError
		ans.Error = msgFetchFailed
		ans.Text = resolver.FormatError(msgFetchFailed)
		return ans
	}

	searchCtx, cancel := context.WithTimeout(ctx, r.retrievalTimeout)
	results, err := r.retriever.Search(searchCtx, query, r.topK)
	cancel()
	if err != nil {
		return r.generalError(ans, err, msgFetchFailed)
	}

	if r.gate != nil {
		decision := r.gate.Evaluate(query, results)
		if !decision.Answerable {
			logger.Infof("router: gated query=%q reason=%s top=%.3f", query, decision.Reason, decision.TopScore)
			ans.Status = StatusSuccess
			ans.Text = r.gate.GuidanceMessage(time.Now())
			return ans
		}
	}

	if r.reranker != nil && len(results) > 1 {
		rerankCtx, cancelRerank := context.WithTimeout(ctx, r.retrievalTimeout)
		reranked, rerr := r.reranker.Rerank(rerankCtx, query, results, r.rerankTopN)
		cancelRerank()
		if rerr == nil {
			results = reranked
		} else {
			logger.Warnf("router: rerank failed, keeping retrieval order: %v", rerr)
		}
	}

	if r.budgeter != nil {
		results = r.budgeter.Fit(results)
	}

	contexts := make([]string, 0, len(results))
	sources := make([]string, 0, len(results))
	for _, res := range results {
		contexts = append(contexts, res.Document.Content)
		if src, ok := res.Document.Metadata["source"].(string); ok && src != "" {
			sources = append(sources, src)
		}
	}

	messages := []schema.ChatMessage{{Role: schema.RoleSystem, Content: llm.BuildAnswerPrompt(contexts, sources)}}
	if r.history != nil && sessionID != "" {
		rounds, herr := r.history.GetLastNRounds(ctx, sessionID, r.historyRounds)
		if herr != nil {
			logger.Warnf("router: history load failed: %v", herr)
		}
		for _, round := range rounds {
			messages = append(messages,
				schema.ChatMessage{Role: schema.RoleUser, Content: round.Question},
				schema.ChatMessage{Role: schema.RoleAssistant, Content: round.Answer},
			)
		}
	}
	messages = append(messages, schema.ChatMessage{Role: schema.RoleUser, Content: query})

	llmCtx, cancelLLM := context.WithTimeout(ctx, r.llmTimeout)
	text, err := r.completer.GenerateCompletion(llmCtx, messages)
	cancelLLM()
	if err != nil {
		return r.generalError(ans, err, msgGeneric)
	}

	if r.history != nil && sessionID != "" {
		if herr := r.history.SaveRound(ctx, sessionID, memory.Round{
			Question:  query,
			Answer:    text,
			Timestamp: time.Now(),
		}); herr != nil {
			logger.Warnf("router: history save failed: %v", herr)
		}
	}

	ans.Status = StatusSuccess
	ans.Text = text
	return ans
}

func (r *QueryRouter) generalError(ans *Answer, err error, msg string) *Answer {
	logger.Errorf("router: general branch failed for %q: %v", ans.Query, err)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = msgTimeout
	case errors.Is(err, context.Canceled):
		msg = msgTimeout
	}
	ans.Status = StatusError
	ans.Error = msg
	ans.Text = resolver.FormatError(msg)
	return ans
}
