package config

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Trading.Deviation <= 0 {
		c.Trading.Deviation = 20
	}
	if c.Trading.BaseVolume <= 0 {
		c.Trading.BaseVolume = 0.01
	}
	if c.Trading.Multiplier <= 0 {
		c.Trading.Multiplier = 2
	}
	if c.Trading.OpensPerDecision <= 0 {
		c.Trading.OpensPerDecision = 1
	}
	if c.Trading.Magic == 0 {
		c.Trading.Magic = 234000
	}
	if c.Consensus.BuyQuorum <= 0 {
		c.Consensus.BuyQuorum = 3
	}
	// Preserves the observed asymmetry as a default, not a literal in code.
	if c.Consensus.SellQuorum <= 0 {
		c.Consensus.SellQuorum = 3
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = 60
	}
	if c.Oracle.Breaker.Threshold <= 0 {
		c.Oracle.Breaker.Threshold = 3
	}
	if c.Oracle.Breaker.CooldownSeconds <= 0 {
		c.Oracle.Breaker.CooldownSeconds = 300
	}
	if c.Oracle.SystemPath == "" {
		c.Oracle.SystemPath = "prompts/system.txt"
	}
	if c.Oracle.PromptPath == "" {
		c.Oracle.PromptPath = "prompts/prompt.txt"
	}
	if c.Feature.Source == "" {
		c.Feature.Source = "venue"
	}
	if len(c.Feature.Timeframes) == 0 {
		c.Feature.Timeframes = []TimeframeConfig{{TF: "M1", Count: 200}, {TF: "M5", Count: 200}}
	}
	for i := range c.Feature.Timeframes {
		if c.Feature.Timeframes[i].Count <= 0 {
			c.Feature.Timeframes[i].Count = 200
		}
	}
	if c.Feature.Binance.Symbol == "" {
		c.Feature.Binance.Symbol = c.Trading.Symbol
	}
	if c.Schedule.EndHour <= 0 {
		c.Schedule.EndHour = 23
	}
	if c.Schedule.SleepSeconds <= 0 {
		c.Schedule.SleepSeconds = 300
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "trade_log.csv"
	}
	if c.Venue.TimeoutSeconds <= 0 {
		c.Venue.TimeoutSeconds = 15
	}
}
