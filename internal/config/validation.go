package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if strings.TrimSpace(c.Trading.Symbol) == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if c.Schedule.StartHour < 0 || c.Schedule.StartHour > 23 {
		return fmt.Errorf("schedule.start_hour must be within 0-23, got %d", c.Schedule.StartHour)
	}
	if c.Schedule.EndHour < 0 || c.Schedule.EndHour > 23 {
		return fmt.Errorf("schedule.end_hour must be within 0-23, got %d", c.Schedule.EndHour)
	}
	if c.Schedule.StartHour > c.Schedule.EndHour {
		return fmt.Errorf("schedule.start_hour (%d) must not be after end_hour (%d)", c.Schedule.StartHour, c.Schedule.EndHour)
	}
	if strings.TrimSpace(c.Venue.APIURL) == "" {
		return fmt.Errorf("venue.api_url is required")
	}
	switch c.Feature.Source {
	case "venue", "binance":
	default:
		return fmt.Errorf("feature.source must be \"venue\" or \"binance\", got %q", c.Feature.Source)
	}
	enabled := 0
	seen := map[string]bool{}
	for i, ep := range c.Oracle.Endpoints {
		if !ep.Enabled {
			continue
		}
		enabled++
		id := strings.TrimSpace(ep.ID)
		if id == "" {
			return fmt.Errorf("oracle.endpoints[%d].id is required", i)
		}
		if seen[id] {
			return fmt.Errorf("duplicate oracle endpoint id %q", id)
		}
		seen[id] = true
		if strings.TrimSpace(ep.APIKey) == "" {
			return fmt.Errorf("oracle endpoint %q has no api_key", id)
		}
		if strings.TrimSpace(ep.Model) == "" && strings.TrimSpace(c.Oracle.Model) == "" {
			return fmt.Errorf("oracle endpoint %q has no model and oracle.model is unset", id)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one enabled oracle endpoint is required")
	}
	if c.Consensus.BuyQuorum > enabled {
		return fmt.Errorf("consensus.buy_quorum (%d) exceeds enabled oracle endpoints (%d)", c.Consensus.BuyQuorum, enabled)
	}
	if c.Consensus.SellQuorum > enabled {
		return fmt.Errorf("consensus.sell_quorum (%d) exceeds enabled oracle endpoints (%d)", c.Consensus.SellQuorum, enabled)
	}
	return nil
}
