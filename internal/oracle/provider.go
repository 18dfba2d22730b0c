package oracle

import (
	"context"
	"strings"
	"time"

	"scalper/internal/config"
	"scalper/internal/logger"
)

// geminiProvider binds one credential to the shared client behavior and
// implements Provider.
type geminiProvider struct {
	id      string
	enabled bool
	client  *GeminiClient
}

func (p *geminiProvider) ID() string    { return p.id }
func (p *geminiProvider) Enabled() bool { return p.enabled }

func (p *geminiProvider) Recommend(ctx context.Context, req Request) (Recommendation, error) {
	logger.OracleRequest(p.id, len(req.Attachments), req.Prompt)
	raw, err := p.client.Generate(ctx, req)
	if err != nil {
		return Recommendation{}, err
	}
	logger.OracleResponse(p.id, raw)
	return ParseRecommendation(raw)
}

// BuildProviders constructs one provider per enabled endpoint. Endpoints with
// no model of their own inherit the shared oracle.model.
func BuildProviders(cfg config.OracleConfig) []Provider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	out := make([]Provider, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		if !ep.Enabled {
			continue
		}
		model := strings.TrimSpace(ep.Model)
		if model == "" {
			model = strings.TrimSpace(cfg.Model)
		}
		client := NewGeminiClient(ep.APIURL, ep.APIKey, model, timeout)
		out = append(out, &geminiProvider{id: strings.TrimSpace(ep.ID), enabled: true, client: client})
	}
	return out
}
