package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// recommendationSchema fixes the field names and enum domains the models must
// produce. Anything that fails validation is a dropped vote, never a Wait.
const recommendationSchema = `{
  "type": "object",
  "properties": {
    "support": {"type": "number"},
    "resistance": {"type": "number"},
    "confidence": {"type": "integer", "minimum": 0, "maximum": 100},
    "trend": {"type": "string", "enum": ["Bullish", "Bearish", "Neutral"]},
    "momentum": {"type": "string", "enum": ["Oversold", "Overbought", "Neutral"]},
    "take_profit": {"type": "number"},
    "stop_loss": {"type": "number"},
    "signal": {"type": "string", "enum": ["BUY", "SELL", "WAIT & SEE"]},
    "justification": {"type": "string"}
  },
  "required": ["support", "resistance", "confidence", "trend", "momentum", "signal", "justification"]
}`

var compiledSchema = jsonschema.MustCompileString("recommendation.json", recommendationSchema)

// ParseRecommendation extracts the first JSON object from raw model output,
// validates it against the recommendation schema and unmarshals it. Models
// occasionally wrap the object in markdown fences or prose; extraction is
// tolerant of that.
func ParseRecommendation(raw string) (Recommendation, error) {
	var rec Recommendation
	obj, ok := extractJSONObject(raw)
	if !ok {
		return rec, fmt.Errorf("no JSON object in model output")
	}
	if !gjson.Valid(obj) {
		return rec, fmt.Errorf("model output is not valid JSON")
	}
	var doc any
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return rec, fmt.Errorf("decoding model output: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return rec, fmt.Errorf("model output failed schema validation: %w", err)
	}
	if err := json.Unmarshal([]byte(obj), &rec); err != nil {
		return rec, fmt.Errorf("decoding recommendation: %w", err)
	}
	return rec, nil
}

// extractJSONObject returns the first balanced top-level JSON object in s.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1]), true
			}
		}
	}
	return "", false
}
