package models

// MConfig Structure
type MConfig struct {
	Name     string `yaml:"name" envconfig:"NAME"`
	Host     string `yaml:"host" envconfig:"HOST"`
	Port     int    `yaml:"port" envconfig:"PORT"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFile  string `yaml:"log_file" envconfig:"LOG_FILE"`

	Stream  MStreamConfig  `yaml:"stream" envconfig:"STREAM"`
	Rest    MRestConfig    `yaml:"rest" envconfig:"REST"`
	Storage MStorageConfig `yaml:"storage" envconfig:"STORAGE"`
	Gateway MGatewayConfig `yaml:"gateway" envconfig:"GATEWAY"`
	Feed    MFeedConfig    `yaml:"feed" envconfig:"FEED"`
}

// MStreamConfig drives the live stream client
type MStreamConfig struct {
	URL            string           `yaml:"url" envconfig:"URL"`
	PageURL        string           `yaml:"page_url" envconfig:"PAGE_URL"`
	Path           string           `yaml:"path" envconfig:"PATH"`
	DefaultSymbols []string         `yaml:"default_symbols" envconfig:"DEFAULT_SYMBOLS"`
	Reconnect      MReconnectConfig `yaml:"reconnect" envconfig:"RECONNECT"`
	PongWaitMs     int              `yaml:"pong_wait_ms" envconfig:"PONG_WAIT_MS"`
	WriteWaitMs    int              `yaml:"write_wait_ms" envconfig:"WRITE_WAIT_MS"`
	HandshakeMs    int              `yaml:"handshake_timeout_ms" envconfig:"HANDSHAKE_TIMEOUT_MS"`
}

// MReconnectConfig is the reconnect backoff policy
type MReconnectConfig struct {
	InitialDelayMs int     `yaml:"initial_delay_ms" envconfig:"INITIAL_DELAY_MS"`
	MaxDelayMs     int     `yaml:"max_delay_ms" envconfig:"MAX_DELAY_MS"`
	Multiplier     float64 `yaml:"multiplier" envconfig:"MULTIPLIER"`
	Jitter         float64 `yaml:"jitter" envconfig:"JITTER"`
	MaxAttempts    int     `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
}

type MRestConfig struct {
	BaseURL   string `yaml:"base_url" envconfig:"BASE_URL"`
	TimeoutMs int    `yaml:"timeout_ms" envconfig:"TIMEOUT_MS"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type" envconfig:"DB_TYPE"`
	DBPath             string `yaml:"db_path" envconfig:"DB_PATH"`
	DBConnectionString string `yaml:"db_connection_string" envconfig:"DB_CONNECTION_STRING"`
}

// MGatewayConfig is the data plane websocket endpoint
type MGatewayConfig struct {
	Host string `yaml:"host" envconfig:"HOST"`
	Port int    `yaml:"port" envconfig:"PORT"`
	Path string `yaml:"path" envconfig:"PATH"`
}

// MFeedConfig selects and tunes the event source feeding the gateway
type MFeedConfig struct {
	Synthetic MSyntheticConfig `yaml:"synthetic" envconfig:"SYNTHETIC"`
	Kafka     MKafkaConfig     `yaml:"kafka" envconfig:"KAFKA"`
}

type MSyntheticConfig struct {
	Enabled           bool     `yaml:"enabled" envconfig:"ENABLED"`
	Name              string   `yaml:"name" envconfig:"NAME"`
	Symbols           []string `yaml:"symbols" envconfig:"SYMBOLS"`
	MessagesPerSecond int      `yaml:"messages_per_second" envconfig:"MESSAGES_PER_SECOND"`
	TradeToQuoteRatio int      `yaml:"trade_to_quote_ratio" envconfig:"TRADE_TO_QUOTE_RATIO"`
	BurstEnabled      bool     `yaml:"burst_enabled" envconfig:"BURST_ENABLED"`
	BurstMultiplier   int      `yaml:"burst_multiplier" envconfig:"BURST_MULTIPLIER"`
	BurstDurationMs   int      `yaml:"burst_duration_ms" envconfig:"BURST_DURATION_MS"`
	BurstIntervalMs   int      `yaml:"burst_interval_ms" envconfig:"BURST_INTERVAL_MS"`
	MarketHoursOnly   bool     `yaml:"market_hours_only" envconfig:"MARKET_HOURS_ONLY"`
}

type MKafkaConfig struct {
	Enabled bool     `yaml:"enabled" envconfig:"ENABLED"`
	Brokers []string `yaml:"brokers" envconfig:"BROKERS"`
	GroupID string   `yaml:"group_id" envconfig:"GROUP_ID"`
	Topic   string   `yaml:"topic" envconfig:"TOPIC"`
	Publish bool     `yaml:"publish" envconfig:"PUBLISH"`
}
