package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/docent-ai/docent/internal/answer"
	"github.com/docent-ai/docent/internal/memory"
	"github.com/docent-ai/docent/internal/retrieval"
)

// QueryRequest is one question against the tenant's knowledge.
//
// A nil SessionID starts a fresh session whose id comes back in the
// result. MemoryWindow overrides the configured context budget in
// tokens; zero takes the default, negative disables history. BestEffort
// opts into partial results when the time budget dies mid-pipeline:
// retrieved chunks come back extractively instead of a timeout failure.
type QueryRequest struct {
	TenantID     string
	Question     string
	K            int
	SessionID    *uuid.UUID
	UserID       string
	MemoryWindow int
	Tags         []string
	BestEffort   bool
}

// QueryResult is a completed query. Results carries the ranked hits
// behind the citations so callers can render snippets.
type QueryResult struct {
	Answer     string             `json:"answer"`
	SourceIDs  []uuid.UUID        `json:"source_ids"`
	Confidence float64            `json:"confidence"`
	SessionID  uuid.UUID          `json:"session_id"`
	Degraded   bool               `json:"degraded"`
	Results    []retrieval.Result `json:"results,omitempty"`
}

// Query answers the question from the tenant's knowledge and records
// the exchange in the session. The whole pipeline (embed, retrieve,
// generate) shares one time budget.
func (a *Assistant) Query(ctx context.Context, req QueryRequest) (QueryResult, error) {
	if err := validateTenant(req.TenantID); err != nil {
		return QueryResult{}, err
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return QueryResult{}, fmt.Errorf("%w: question is required", ErrInput)
	}

	if budget := a.cfg.Timeouts.QueryBudget(); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	sess, err := a.resolveSession(ctx, req)
	if err != nil {
		return QueryResult{}, err
	}

	history, err := a.loadHistory(ctx, req, sess)
	if err != nil {
		return QueryResult{}, err
	}

	vector, err := a.embedder.EmbedText(ctx, question)
	if err != nil {
		if ctx.Err() != nil {
			return QueryResult{}, fmt.Errorf("%w: embedding the question: %v", ErrTimeout, err)
		}
		return QueryResult{}, fmt.Errorf("embedding question: %w", err)
	}

	results, err := a.retriever.Retrieve(ctx, retrieval.Params{
		TenantID: req.TenantID,
		Vector:   vector,
		K:        req.K,
		Tags:     req.Tags,
	})
	if err != nil {
		if ctx.Err() != nil {
			return QueryResult{}, fmt.Errorf("%w: retrieving context: %v", ErrTimeout, err)
		}
		return QueryResult{}, err
	}

	ans, err := a.answers.Answer(ctx, answer.Request{
		Question: question,
		Results:  results,
		History:  history,
	})
	if err != nil {
		if ctx.Err() != nil {
			if req.BestEffort {
				return a.bestEffort(req, sess, question, results), nil
			}
			return QueryResult{}, fmt.Errorf("%w: generating the answer: %v", ErrTimeout, err)
		}
		// Generation failures carry the retrieved chunks; pass them
		// through untouched so callers can still show citations.
		return QueryResult{}, err
	}

	a.recordTurn(req.TenantID, sess.ID, question, ans)

	return QueryResult{
		Answer:     ans.Text,
		SourceIDs:  ans.CitedSourceIDs,
		Confidence: ans.Confidence,
		SessionID:  sess.ID,
		Degraded:   ans.Degraded,
		Results:    results,
	}, nil
}

// resolveSession loads the named session or lazily starts a new one.
func (a *Assistant) resolveSession(ctx context.Context, req QueryRequest) (memory.Session, error) {
	if req.SessionID == nil {
		return a.sessions.Begin(ctx, req.TenantID, req.UserID)
	}
	return a.sessions.GetSession(ctx, req.TenantID, *req.SessionID)
}

// loadHistory resolves the memory window and fetches the context.
func (a *Assistant) loadHistory(ctx context.Context, req QueryRequest, sess memory.Session) ([]memory.Turn, error) {
	window := req.MemoryWindow
	if window == 0 {
		window = a.cfg.Memory.MaxContextTokens
	}
	if window <= 0 {
		return nil, nil
	}
	return a.sessions.Context(ctx, req.TenantID, sess.ID, window)
}

// bestEffort assembles the partial result for a request whose budget
// died after retrieval: the chunks it found, served extractively.
func (a *Assistant) bestEffort(req QueryRequest, sess memory.Session, question string, results []retrieval.Result) QueryResult {
	a.logger.Warn("query budget exhausted, serving retrieved chunks",
		"tenant", req.TenantID, "session_id", sess.ID, "hits", len(results))

	ans := answer.Answer{
		Text:           answer.Extractive(results),
		CitedSourceIDs: answer.CitedSources(results),
		Confidence:     answer.TopConfidence(results),
		Degraded:       true,
		Provider:       answer.KindStub,
	}
	a.recordTurn(req.TenantID, sess.ID, question, ans)

	return QueryResult{
		Answer:     ans.Text,
		SourceIDs:  ans.CitedSourceIDs,
		Confidence: ans.Confidence,
		SessionID:  sess.ID,
		Degraded:   true,
		Results:    results,
	}
}

// recordTurn appends the exchange outside the request budget: history
// must survive a budget that died between generation and append. Append
// failures are logged, never surfaced; the user already has the answer.
func (a *Assistant) recordTurn(tenantID string, sessionID uuid.UUID, question string, ans answer.Answer) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTurnTimeout)
	defer cancel()

	_, err := a.sessions.AppendTurn(ctx, tenantID, sessionID, memory.TurnInput{
		Question:       question,
		Answer:         ans.Text,
		CitedSourceIDs: ans.CitedSourceIDs,
		Confidence:     ans.Confidence,
		Degraded:       ans.Degraded,
	})
	if err != nil {
		a.logger.Error("appending turn", "session_id", sessionID, "error", err)
	}
}
