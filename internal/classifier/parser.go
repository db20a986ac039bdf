package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dvloznov/securebank/internal/domain"
)

// ErrMalformedResponse is returned when the model's answer does not have the
// requested shape.
var ErrMalformedResponse = errors.New("malformed classifier response")

// cleanModelJSON strips a Markdown fence wrapping the whole answer. Text
// outside a fence is left alone and fails decoding.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if len(s) >= 6 && strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s[3:], "```")
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimLeft(s, "jsonJSON")
		}
	}

	return strings.TrimSpace(s)
}

// decodeObject unwraps raw and decodes it into v.
func decodeObject(raw string, v interface{}) error {
	clean := cleanModelJSON(raw)
	if !strings.HasPrefix(clean, "{") {
		return fmt.Errorf("decodeObject: no JSON object in response: %w", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return fmt.Errorf("decodeObject: %v: %w", err, ErrMalformedResponse)
	}
	return nil
}

type riskPayload struct {
	RiskScore    *float64 `json:"riskScore"`
	IsFraudulent *bool    `json:"isFraudulent"`
	Reason       *string  `json:"reason"`
}

// parseRiskVerdict expects {"riskScore":0-100,"isFraudulent":bool,"reason":string}
// with an integer riskScore.
func parseRiskVerdict(raw string) (domain.RiskVerdict, error) {
	var p riskPayload
	if err := decodeObject(raw, &p); err != nil {
		return domain.RiskVerdict{}, err
	}
	if p.RiskScore == nil || p.IsFraudulent == nil || p.Reason == nil {
		return domain.RiskVerdict{}, fmt.Errorf("parseRiskVerdict: missing field: %w", ErrMalformedResponse)
	}
	score := *p.RiskScore
	if score != math.Trunc(score) {
		return domain.RiskVerdict{}, fmt.Errorf("parseRiskVerdict: riskScore %v is not an integer: %w", score, ErrMalformedResponse)
	}
	if score < 0 || score > 100 {
		return domain.RiskVerdict{}, fmt.Errorf("parseRiskVerdict: riskScore %v out of range: %w", *p.RiskScore, ErrMalformedResponse)
	}
	return domain.RiskVerdict{
		RiskScore:    int(score),
		IsFraudulent: *p.IsFraudulent,
		Reason:       strings.TrimSpace(*p.Reason),
	}, nil
}

// parseCategory expects {"category":string}.
func parseCategory(raw string) (string, error) {
	var p struct {
		Category *string `json:"category"`
	}
	if err := decodeObject(raw, &p); err != nil {
		return "", err
	}
	if p.Category == nil || strings.TrimSpace(*p.Category) == "" {
		return "", fmt.Errorf("parseCategory: missing category: %w", ErrMalformedResponse)
	}
	return *p.Category, nil
}

// parseTip expects {"tip":string}.
func parseTip(raw string) (string, error) {
	var p struct {
		Tip *string `json:"tip"`
	}
	if err := decodeObject(raw, &p); err != nil {
		return "", err
	}
	if p.Tip == nil || strings.TrimSpace(*p.Tip) == "" {
		return "", fmt.Errorf("parseTip: missing tip: %w", ErrMalformedResponse)
	}
	return strings.TrimSpace(*p.Tip), nil
}

// parseSuspiciousIDs expects {"suspiciousTransactionIds":[...]}. Ids may come
// back as strings or numbers; both are returned as strings.
func parseSuspiciousIDs(raw string) ([]string, error) {
	var p struct {
		IDs *[]json.RawMessage `json:"suspiciousTransactionIds"`
	}
	if err := decodeObject(raw, &p); err != nil {
		return nil, err
	}
	if p.IDs == nil {
		return nil, fmt.Errorf("parseSuspiciousIDs: missing suspiciousTransactionIds: %w", ErrMalformedResponse)
	}

	ids := make([]string, 0, len(*p.IDs))
	for _, rawID := range *p.IDs {
		var s string
		if err := json.Unmarshal(rawID, &s); err == nil {
			ids = append(ids, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(rawID, &n); err == nil {
			ids = append(ids, n.String())
			continue
		}
		return nil, fmt.Errorf("parseSuspiciousIDs: id %s is neither string nor number: %w", rawID, ErrMalformedResponse)
	}
	return ids, nil
}
