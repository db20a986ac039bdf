package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
)

// Request kinds recognized by ScriptedGenerator.
const (
	KindRisk     = "assess_risk"
	KindCategory = "categorize"
	KindTip      = "summarize_tip"
	KindScan     = "detect_suspicious"
	KindChat     = "chat"
)

// ErrScriptedOutage is returned by a ScriptedGenerator with Down set.
var ErrScriptedOutage = errors.New("scripted classifier outage")

// ScriptedGenerator answers from fixed rules without leaving the process.
// It drives the offline demo and tests in other packages.
type ScriptedGenerator struct {
	// RiskScores maps a lower-case recipient substring to a score.
	RiskScores map[string]int
	// DefaultRisk is used when no RiskScores key matches.
	DefaultRisk int
	Category    string
	Tip         string
	Reply       string
	// Down makes every call fail.
	Down bool

	mu    sync.Mutex
	calls map[string]int
}

// Kind classifies a request by the prompt that built it.
func Kind(req Request) string {
	if req.System != "" {
		return KindChat
	}
	var text string
	if len(req.Messages) > 0 {
		text = req.Messages[len(req.Messages)-1].Text
	}
	switch {
	case strings.Contains(text, "Pending transfer:"):
		return KindRisk
	case strings.Contains(text, "Categorize this bank transaction"):
		return KindCategory
	case strings.Contains(text, `{"tip":`):
		return KindTip
	case strings.Contains(text, "suspiciousTransactionIds"):
		return KindScan
	}
	return KindChat
}

// Generate implements Generator.
func (g *ScriptedGenerator) Generate(ctx context.Context, req Request) (string, error) {
	kind := Kind(req)

	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.calls[kind]++
	g.mu.Unlock()

	if g.Down {
		return "", ErrScriptedOutage
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch kind {
	case KindRisk:
		return g.riskReply(req.Messages[len(req.Messages)-1].Text)
	case KindCategory:
		return marshalReply(map[string]string{"category": orDefault(g.Category, "Other")})
	case KindTip:
		return marshalReply(map[string]string{"tip": orDefault(g.Tip, "Set aside a fixed amount every payday.")})
	case KindScan:
		return "```json\n{\"suspiciousTransactionIds\": []}\n```", nil
	}
	return orDefault(g.Reply, "I can help with your balance and recent transactions."), nil
}

func (g *ScriptedGenerator) riskReply(prompt string) (string, error) {
	recipient := strings.ToLower(promptRecipient(prompt))
	score := g.DefaultRisk
	for key, s := range g.RiskScores {
		if strings.Contains(recipient, strings.ToLower(key)) {
			score = s
			break
		}
	}
	reason := "Payment matches normal activity."
	if score > 60 {
		reason = "Large transfer to a recipient not seen before."
	}
	return marshalReply(map[string]interface{}{
		"riskScore":    score,
		"isFraudulent": score > 80,
		"reason":       reason,
	})
}

// promptRecipient pulls the quoted recipient out of a risk prompt.
func promptRecipient(prompt string) string {
	const marker = "Recipient Account: "
	i := strings.Index(prompt, marker)
	if i < 0 {
		return ""
	}
	line := prompt[i+len(marker):]
	if j := strings.IndexByte(line, '\n'); j >= 0 {
		line = line[:j]
	}
	return strings.Trim(line, `"`)
}

// Calls returns how many requests of kind were received.
func (g *ScriptedGenerator) Calls(kind string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[kind]
}

func marshalReply(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
