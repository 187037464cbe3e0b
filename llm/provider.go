package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/bohumlab/commission-gateway/config"
	"github.com/bohumlab/commission-gateway/schema"
)

// Provider is the text-completion port. The router only ever sees this
// interface, so tests swap in a fake and the vendor stays a config detail.
type Provider interface {
	GenerateCompletion(ctx context.Context, messages []schema.ChatMessage) (string, error)
}

// NewProvider builds the configured completion provider.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		return newOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// BuildCommissionPrompt assembles the system prompt for the commission
// branch. The context block carries raw fractional rates; the instructions
// force the ×100 display conversion and forbid the extraction artifacts from
// leaking into answers.
func BuildCommissionPrompt(commissionContext string) string {
	return fmt.Sprintf(`너는 한국 보험 수수료 전문가 AI 어시스턴트입니다.

참조 정보 (보험 수수료 데이터베이스):
%s

답변 지침:
1. 반드시 한국어로만 답변하세요
2. CRITICAL: 모든 숫자는 백분율(%%)로 변환하세요. 참조 정보의 모든 값에 100을 곱하세요.
   예시: 0.405 → 40.5%%, 2.91582 → 291.58%%, 8.0 → 800%%
3. 응답 형식 (간결하고 명확하게):
[상품명]
회사: [회사명]
환산율: [X]%%
초년도 익월: [Y]%%
Total: [W]%%
4. 절대 금지: col_N 같은 기술 용어, 계산식/공식/배율, 소수 형식 값, 데이터 구조 설명, 다른 상품 추천
5. 사용자가 요청한 상품의 수수료율만 백분율로 간단히 제시하고, 없는 데이터는 "해당 정보 없음"으로 표시하세요
6. 답변 끝에 출처 추가: 출처: 보험수수료 데이터베이스
`, commissionContext)
}

// BuildAnswerPrompt assembles the system prompt for the general branch from
// retrieved reference passages. When no passage survived the relevance gate,
// the model is told to answer from general knowledge instead of refusing.
func BuildAnswerPrompt(contexts []string, sources []string) string {
	reference := strings.Join(contexts, "\n\n")
	if reference == "" {
		reference = "참조 데이터베이스에 직접적인 관련 정보가 없습니다. 전문가로서의 일반적인 지식과 베스트 프랙티스를 바탕으로 답변해주세요."
	}
	sourcesText := ""
	if len(sources) > 0 {
		sourcesText = "출처: " + strings.Join(sources, ", ")
	}
	return fmt.Sprintf(`너는 한국 보험 영업 전문가 AI 어시스턴트입니다.
사용자의 질문에 대해 전문적이고 실용적인 답변을 제공하세요.

참조 정보:
%s

답변 지침:
1. 반드시 한국어로만 답변하세요
2. 300-500자로 상세하게 답변하세요
3. 참조 정보가 있다면 이를 활용하되, 당신의 전문 지식과 결합하여 답변하세요
4. 참조 정보가 불충분해도 일반적인 지식과 베스트 프랙티스를 바탕으로 답변하세요
5. 구체적인 예시와 실행 가능한 조언을 포함하세요
6. 친절하고 전문적인 톤을 유지하세요
%s`, reference, sourcesText)
}
