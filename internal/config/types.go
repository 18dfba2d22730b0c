package config

// Config is the immutable process configuration. It is loaded once at startup
// and passed by value into each component; nothing mutates it afterwards.
type Config struct {
	App       AppConfig       `toml:"app"`
	Trading   TradingConfig   `toml:"trading"`
	Consensus ConsensusConfig `toml:"consensus"`
	Oracle    OracleConfig    `toml:"oracle"`
	Feature   FeatureConfig   `toml:"feature"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Ledger    LedgerConfig    `toml:"ledger"`
	History   HistoryConfig   `toml:"history"`
	Venue     VenueConfig     `toml:"venue"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	LogLevel   string `toml:"log_level"`
	LogPath    string `toml:"log_path"`
	OracleLog  string `toml:"oracle_log_path"`
	OracleDump bool   `toml:"oracle_dump"`
	HTTPAddr   string `toml:"http_addr"` // empty disables the status server
}

// TradingConfig controls sizing and order routing for the tracked instrument.
type TradingConfig struct {
	Symbol           string  `toml:"symbol"`
	Deviation        int     `toml:"deviation"`   // allowed price deviation in points
	BaseVolume       float64 `toml:"base_volume"` // initial lot size
	Martingale       bool    `toml:"martingale"`  // loss-compounding sizing when true
	Multiplier       float64 `toml:"multiplier"`  // martingale multiplier
	OpensPerDecision int     `toml:"opens_per_decision"`
	Magic            int     `toml:"magic"` // routing magic number
}

// ConsensusConfig holds the per-direction quorum thresholds. The observed
// source hard-coded the sell quorum to 3; both are configurable here and the
// defaults preserve the observed behavior.
type ConsensusConfig struct {
	BuyQuorum  int `toml:"buy_quorum"`
	SellQuorum int `toml:"sell_quorum"`
}

type OracleConfig struct {
	Model          string              `toml:"model"`
	TimeoutSeconds int                 `toml:"timeout_seconds"`
	SystemPath     string              `toml:"system_path"`
	PromptPath     string              `toml:"prompt_path"`
	CapturePath    string              `toml:"capture_path"` // optional chart image attachment
	Endpoints      []OracleEndpoint    `toml:"endpoints"`
	Breaker        OracleBreakerConfig `toml:"breaker"`
}

// OracleEndpoint is one advisory credential. Each enabled endpoint casts at
// most one vote per cycle.
type OracleEndpoint struct {
	ID      string `toml:"id"`
	APIKey  string `toml:"api_key"`
	APIURL  string `toml:"api_url"`
	Model   string `toml:"model"` // overrides OracleConfig.Model when set
	Enabled bool   `toml:"enabled"`
}

type OracleBreakerConfig struct {
	Threshold       int `toml:"threshold"`
	CooldownSeconds int `toml:"cooldown_seconds"`
}

type FeatureConfig struct {
	Source     string              `toml:"source"` // "venue" | "binance"
	Binance    BinanceSourceConfig `toml:"binance"`
	Timeframes []TimeframeConfig   `toml:"timeframes"`
}

type BinanceSourceConfig struct {
	Symbol  string `toml:"symbol"` // e.g. "BTCUSDT"; defaults to trading.symbol
	BaseURL string `toml:"base_url"`
}

type TimeframeConfig struct {
	TF    string `toml:"tf"`
	Count int    `toml:"count"`
}

type ScheduleConfig struct {
	StartHour    int `toml:"start_hour"`
	EndHour      int `toml:"end_hour"`
	SleepSeconds int `toml:"sleep_seconds"`
}

type LedgerConfig struct {
	Path string `toml:"path"`
}

type HistoryConfig struct {
	Path       string `toml:"path"`        // sqlite file; empty disables cycle history
	OrdersPath string `toml:"orders_path"` // sqlite file; empty disables order events
}

// VenueConfig describes the terminal bridge the orders are routed through.
type VenueConfig struct {
	APIURL         string `toml:"api_url"`
	APIToken       string `toml:"api_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}
