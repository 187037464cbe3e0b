package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/bohumlab/commission-gateway/common/logger"
	"github.com/bohumlab/commission-gateway/metrics"
)

// kakaoRequest is what the gateway needs out of a KakaoTalk skill payload.
type kakaoRequest struct {
	Utterance   string
	UserID      string
	CallbackURL string
}

// parseKakaoRequest pulls the utterance, user id and optional callback URL
// out of the skill payload without binding the whole envelope to a struct;
// the platform adds fields freely and only these three matter here.
func parseKakaoRequest(body []byte) kakaoRequest {
	return kakaoRequest{
		Utterance:   gjson.GetBytes(body, "userRequest.utterance").String(),
		UserID:      gjson.GetBytes(body, "userRequest.user.id").String(),
		CallbackURL: gjson.GetBytes(body, "userRequest.callbackUrl").String(),
	}
}

// kakaoSimpleText wraps answer text in the skill response envelope.
func kakaoSimpleText(text string) map[string]any {
	return map[string]any{
		"version": "2.0",
		"template": map[string]any{
			"outputs": []map[string]any{
				{"simpleText": map[string]any{"text": text}},
			},
		},
	}
}

// kakaoUseCallback is the immediate acknowledgment sent when the final
// answer will arrive through the callback URL instead.
func kakaoUseCallback() map[string]any {
	return map[string]any{
		"version":     "2.0",
		"useCallback": true,
	}
}

// postCallback delivers the finished answer to the skill callback URL.
func (s *Server) postCallback(ctx context.Context, callbackURL, text string) {
	body, err := json.Marshal(kakaoSimpleText(text))
	if err != nil {
		metrics.IncCallback("marshal_error")
		logger.Errorf("server: callback marshal failed: %v", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		metrics.IncCallback("request_error")
		logger.Errorf("server: callback request build failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.callback.Do(req)
	if err != nil {
		metrics.IncCallback("send_error")
		logger.Errorf("server: callback delivery failed: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.IncCallback("http_error")
		logger.Warnf("server: callback returned status %d", resp.StatusCode)
		return
	}
	metrics.IncCallback("ok")
}
