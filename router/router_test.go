package router

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bohumlab/commission-gateway/config"
	"github.com/bohumlab/commission-gateway/dataset"
	"github.com/bohumlab/commission-gateway/detector"
	"github.com/bohumlab/commission-gateway/gating"
	"github.com/bohumlab/commission-gateway/matcher"
	"github.com/bohumlab/commission-gateway/memory"
	"github.com/bohumlab/commission-gateway/schema"
)

const routerDatasetJSON = `{
  "companies": {
    "KB라이프": {
      "company_name": "KB라이프",
      "products": [
        {
          "row_number": 12,
          "metadata": {"상품명": "(무)약속플러스종신보험", "납입기간": "20년납", "환산율": 95},
          "base_commission_rates": {"1차년": 1.2, "FC계": 2.91582, "Total": 2.91582}
        }
      ]
    }
  }
}`

func testStore(t *testing.T) *dataset.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commission_data.json")
	require.NoError(t, os.WriteFile(path, []byte(routerDatasetJSON), 0o644))
	store, err := dataset.NewStore(path)
	require.NoError(t, err)
	return store
}

// fakeCompleter echoes a canned answer and records every call. failOn makes
// calls whose system prompt contains that substring fail.
type fakeCompleter struct {
	answer string
	failOn string
	calls  [][]schema.ChatMessage
}

func (f *fakeCompleter) GenerateCompletion(_ context.Context, messages []schema.ChatMessage) (string, error) {
	f.calls = append(f.calls, messages)
	if f.failOn != "" && len(messages) > 0 && strings.Contains(messages[0].Content, f.failOn) {
		return "", errors.New("completion backend down")
	}
	return f.answer, nil
}

type fakeRetriever struct {
	results []schema.SearchResult
	err     error
}

func (f *fakeRetriever) Type() string { return "fake" }

func (f *fakeRetriever) Search(_ context.Context, _ string, _ int) ([]schema.SearchResult, error) {
	return f.results, f.err
}

func knowledgeResults(score float64) []schema.SearchResult {
	return []schema.SearchResult{
		{Document: schema.Document{ID: "d1", Content: "환수 규정 전문", Metadata: map[string]any{"source": "규정집"}}, Score: score},
	}
}

func newTestRouter(t *testing.T, completer *fakeCompleter, ret *fakeRetriever) *QueryRouter {
	t.Helper()
	opts := Options{
		Detector:  detector.New(nil, nil),
		Matcher:   matcher.New(0.5, 3),
		Datasets:  testStore(t),
		Completer: completer,
		Gate:      gating.NewProvider(0.3),
		History:   memory.NewInMemoryStore(10),
		Router:    config.RouterConfig{ConfidenceThreshold: 0.5, LLMTimeoutS: 5, RetrievalTimeoutS: 5},
		Retrieval: config.RetrievalConfig{TopK: 5, ContextHistory: 5},
	}
	if ret != nil {
		opts.Retriever = ret
	}
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

func TestHandle_CommissionBranch(t *testing.T) {
	completer := &fakeCompleter{answer: "수수료 답변"}
	r := newTestRouter(t, completer, &fakeRetriever{results: knowledgeResults(0.9)})

	ans := r.Handle(context.Background(), "user-1", "KB 약속플러스 20년납 75% 수수료 알려줘")

	assert.Equal(t, StatusSuccess, ans.Status)
	assert.Equal(t, RouteCommission, ans.Route)
	assert.Equal(t, "수수료 답변", ans.Text)
	require.NotNil(t, ans.BestMatch)
	assert.Equal(t, "(무)약속플러스종신보험", ans.BestMatch.ProductName)
	assert.Equal(t, 75.0, ans.Percentage)
	require.NotNil(t, ans.Commission)
	total, ok := ans.Commission.Total()
	require.True(t, ok)
	assert.InDelta(t, 3.644775, total, 1e-9)

	require.Len(t, completer.calls, 1)
	system := completer.calls[0][0]
	assert.Equal(t, schema.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "=== 수수료 조회 결과 ===")
}

func TestHandle_NoMatchFallsToGeneral(t *testing.T) {
	completer := &fakeCompleter{answer: "일반 답변"}
	r := newTestRouter(t, completer, &fakeRetriever{results: knowledgeResults(0.9)})

	// Strong commission wording but no product the dataset knows.
	ans := r.Handle(context.Background(), "user-1", "도게자보험 수수료 알려줘")

	assert.Equal(t, StatusSuccess, ans.Status)
	assert.Equal(t, RouteGeneral, ans.Route)
	assert.Equal(t, "일반 답변", ans.Text)
	assert.Nil(t, ans.BestMatch)
}

func TestHandle_CommissionFailureFallsToGeneralOnce(t *testing.T) {
	completer := &fakeCompleter{answer: "일반 답변", failOn: "수수료 조회 결과"}
	r := newTestRouter(t, completer, &fakeRetriever{results: knowledgeResults(0.9)})

	ans := r.Handle(context.Background(), "user-1", "KB 약속플러스 20년납 75% 수수료")

	assert.Equal(t, RouteGeneral, ans.Route)
	assert.Equal(t, StatusSuccess, ans.Status)
	assert.Equal(t, "일반 답변", ans.Text)
	// one failed commission call, one general call, nothing more
	assert.Len(t, completer.calls, 2)
}

func TestHandle_NonCommissionGoesGeneral(t *testing.T) {
	completer := &fakeCompleter{answer: "일반 답변"}
	r := newTestRouter(t, completer, &fakeRetriever{results: knowledgeResults(0.9)})

	ans := r.Handle(context.Background(), "user-1", "환수 규정 알려줘")

	assert.Equal(t, RouteGeneral, ans.Route)
	require.Len(t, completer.calls, 1)
	assert.Contains(t, completer.calls[0][0].Content, "환수 규정 전문")
}

func TestHandle_GatedQueryGetsGuidance(t *testing.T) {
	completer := &fakeCompleter{answer: "일반 답변"}
	r := newTestRouter(t, completer, &fakeRetriever{results: knowledgeResults(0.05)})

	ans := r.Handle(context.Background(), "user-1", "뭐라도 말해봐")

	assert.Equal(t, StatusSuccess, ans.Status)
	assert.Contains(t, ans.Text, "AI 어시스턴트입니다")
	assert.Empty(t, completer.calls, "gated queries never reach the completion model")
}

func TestHandle_RetrievalErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"fetch failure", errors.New("vector store down"), "수수료 정보를 가져오는 데 실패했습니다."},
		{"timeout", context.DeadlineExceeded, "수수료 조회 시간이 초과되었습니다."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{answer: "일반 답변"}
			r := newTestRouter(t, completer, &fakeRetriever{err: tt.err})

			ans := r.Handle(context.Background(), "user-1", "환수 규정 알려줘")

			assert.Equal(t, StatusError, ans.Status)
			assert.Equal(t, tt.msg, ans.Error)
			assert.Contains(t, ans.Text, "수수료 조회 오류")
		})
	}
}

func TestHandle_GeneralCompletionError(t *testing.T) {
	completer := &fakeCompleter{answer: "", failOn: "보험 영업 전문가"}
	r := newTestRouter(t, completer, &fakeRetriever{results: knowledgeResults(0.9)})

	ans := r.Handle(context.Background(), "user-1", "환수 규정 알려줘")

	assert.Equal(t, StatusError, ans.Status)
	assert.Equal(t, "수수료 조회 중 오류가 발생했습니다.", ans.Error)
}

func TestHandle_NoRetrieverConfigured(t *testing.T) {
	completer := &fakeCompleter{answer: "일반 답변"}
	r := newTestRouter(t, completer, nil)

	ans := r.Handle(context.Background(), "user-1", "환수 규정 알려줘")

	assert.Equal(t, StatusError, ans.Status)
	assert.Equal(t, "수수료 정보를 가져오는 데 실패했습니다.", ans.Error)
}

func TestHandle_SavesConversationHistory(t *testing.T) {
	completer := &fakeCompleter{answer: "일반 답변"}
	history := memory.NewInMemoryStore(10)
	opts := Options{
		Detector:  detector.New(nil, nil),
		Matcher:   matcher.New(0.5, 3),
		Datasets:  testStore(t),
		Completer: completer,
		Retriever: &fakeRetriever{results: knowledgeResults(0.9)},
		Gate:      gating.NewProvider(0.3),
		History:   history,
		Router:    config.RouterConfig{ConfidenceThreshold: 0.5, LLMTimeoutS: 5, RetrievalTimeoutS: 5},
		Retrieval: config.RetrievalConfig{TopK: 5, ContextHistory: 5},
	}
	r, err := New(opts)
	require.NoError(t, err)

	_ = r.Handle(context.Background(), "user-7", "환수 규정 알려줘")
	ans := r.Handle(context.Background(), "user-7", "더 자세히 설명해줘")
	require.Equal(t, StatusSuccess, ans.Status)

	rounds, err := history.GetLastNRounds(context.Background(), "user-7", 10)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, "환수 규정 알려줘", rounds[0].Question)
	assert.WithinDuration(t, time.Now(), rounds[1].Timestamp, time.Minute)

	// The second call carries the first round as chat history.
	second := completer.calls[1]
	require.GreaterOrEqual(t, len(second), 4)
	assert.Equal(t, schema.RoleUser, second[1].Role)
	assert.Equal(t, "환수 규정 알려줘", second[1].Content)
	assert.Equal(t, schema.RoleAssistant, second[2].Role)
}

func TestNew_RequiresCoreCollaborators(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
