package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bohumlab/commission-gateway/dataset"
	"github.com/bohumlab/commission-gateway/matcher"
)

// FormatContext renders a resolved commission lookup as the plain-text
// context block handed to the completion model. Positional col_N keys and
// sheet-header artifacts are cleaned out; values stay as raw fractions — the
// model prompt instructs the conversion to display percentages.
func FormatContext(best *matcher.Candidate, resolved *Resolved) string {
	var b strings.Builder
	b.WriteString("=== 수수료 조회 결과 ===\n\n")
	fmt.Fprintf(&b, "상품명: %s\n", best.ProductName)
	fmt.Fprintf(&b, "보험회사: %s\n", best.Company)
	fmt.Fprintf(&b, "납입기간: %s\n", best.PaymentPeriod)
	if best.Metadata.ConversionRate != 0 {
		fmt.Fprintf(&b, "환산율: %v\n", best.Metadata.ConversionRate)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "수수료율 (%.0f%% 기준):\n\n", resolved.Percentage)

	keys := make([]string, 0, len(resolved.Product.CommissionRates))
	for key := range resolved.Product.CommissionRates {
		if strings.HasPrefix(key, "col_") || strings.HasPrefix(key, "Col_") {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	// Aggregates last so the model reads period columns first.
	sort.SliceStable(keys, func(i, j int) bool {
		return !isAggregate(keys[i]) && isAggregate(keys[j])
	})
	for _, key := range keys {
		fmt.Fprintf(&b, "%s: %v\n", cleanRateKey(key), resolved.Product.CommissionRates[key])
	}
	b.WriteString("\n")
	return b.String()
}

func isAggregate(key string) bool {
	return key == dataset.FCTotalKey || key == dataset.TotalKey
}

// cleanRateKey strips extraction artifacts from a rate label.
func cleanRateKey(key string) string {
	if idx := strings.LastIndex(key, "_0.6_0.6_"); idx >= 0 {
		key = key[idx+len("_0.6_0.6_"):]
	}
	key = strings.ReplaceAll(key, "2025년 FC 수수료_", "")
	return key
}

// FormatError renders a failed lookup for the model context.
func FormatError(message string) string {
	if message == "" {
		message = "수수료 정보를 찾을 수 없습니다."
	}
	return "수수료 조회 오류: " + message
}
