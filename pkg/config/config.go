package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"SwingScan/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Source struct {
		Type string `yaml:"type"` // "websocket" or "kafka"
	} `yaml:"source"`
	Polygon struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"` // ["*"] subscribes to all stocks
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		MaxBackoff     time.Duration `yaml:"max_backoff"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"polygon"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`        // inbound aggregates
		AlertsTopic  string   `yaml:"alerts_topic"` // outbound accepted alerts
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Detection struct {
		VolumeSpikeMultiplier float64       `yaml:"volume_spike_multiplier"`
		MinVolumeToConsider   float64       `yaml:"min_volume_to_consider"`
		PerSymbolCooldown     time.Duration `yaml:"per_symbol_cooldown"`
		EMASmoothing          float64       `yaml:"ema_smoothing"`
		InactivityHorizon     time.Duration `yaml:"inactivity_horizon"`
		SweepInterval         time.Duration `yaml:"sweep_interval"`
		RegressionTolerance   time.Duration `yaml:"regression_tolerance"`
		Shards                int           `yaml:"shards"`
		IngressMaxRPS         int           `yaml:"ingress_max_rps"`
	} `yaml:"detection"`
	Scoring struct {
		Weights struct {
			VolumeTechnical float64 `yaml:"volume_technical"`
			Catalyst        float64 `yaml:"catalyst"`
			ShortSqueeze    float64 `yaml:"short_squeeze"`
			Fundamental     float64 `yaml:"fundamental"`
		} `yaml:"weights"`
		MinTotalScore           float64       `yaml:"min_total_score"`
		MinVolumeTechnicalScore float64       `yaml:"min_volume_technical_score"`
		MinCatalystScore        float64       `yaml:"min_catalyst_score"`
		MinFundamentalScore     float64       `yaml:"min_fundamental_score"`
		FetchTimeout            time.Duration `yaml:"fetch_timeout"` // per signal component
		Penalties               struct {
			RecentDilution   float64 `yaml:"recent_dilution"`
			ReverseSplit     float64 `yaml:"reverse_split"`
			NegativeCashFlow float64 `yaml:"negative_cash_flow"`
		} `yaml:"penalties"`
		Bonuses struct {
			ExceptionalVolume float64 `yaml:"exceptional_volume"`
			MultipleCatalysts float64 `yaml:"multiple_catalysts"`
			StrongSentiment   float64 `yaml:"strong_sentiment"`
		} `yaml:"bonuses"`
	} `yaml:"scoring"`
	Alerts struct {
		DeduplicationWindow time.Duration `yaml:"deduplication_window"`
		OverrideMode        string        `yaml:"override_mode"` // "never" or "score-margin"
		OverrideMargin      float64       `yaml:"override_margin"`
		MaxAlertsPerHour    float64       `yaml:"max_alerts_per_hour"`
		RingBufferSize      int           `yaml:"ring_buffer_size"`
		ViewerQueueSize     int           `yaml:"viewer_queue_size"`
	} `yaml:"alerts"`
	Providers struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
		Cache   struct {
			TTL   time.Duration `yaml:"ttl"`
			Redis struct {
				Enabled  bool   `yaml:"enabled"`
				Addr     string `yaml:"addr"`
				Password string `yaml:"password"`
				DB       int    `yaml:"db"`
			} `yaml:"redis"`
		} `yaml:"cache"`
	} `yaml:"providers"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		c.Polygon.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Polygon.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("SOURCE"); v != "" {
		c.Source.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("PROVIDERS_BASE_URL"); v != "" {
		c.Providers.BaseURL = v
	}
	c.Server.Port = util.ParseIntDefault(os.Getenv("PORT"), c.Server.Port)

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Detection.VolumeSpikeMultiplier == 0 {
		c.Detection.VolumeSpikeMultiplier = 2.5
	}
	if c.Detection.PerSymbolCooldown == 0 {
		c.Detection.PerSymbolCooldown = 5 * time.Minute
	}
	if c.Detection.EMASmoothing == 0 {
		c.Detection.EMASmoothing = 0.1
	}
	if c.Detection.InactivityHorizon == 0 {
		c.Detection.InactivityHorizon = 6 * time.Hour
	}
	if c.Detection.SweepInterval == 0 {
		c.Detection.SweepInterval = 5 * time.Minute
	}
	if c.Detection.RegressionTolerance == 0 {
		c.Detection.RegressionTolerance = 2 * time.Second
	}
	if c.Detection.Shards == 0 {
		c.Detection.Shards = 8
	}
	if c.Scoring.Weights.VolumeTechnical == 0 && c.Scoring.Weights.Catalyst == 0 &&
		c.Scoring.Weights.ShortSqueeze == 0 && c.Scoring.Weights.Fundamental == 0 {
		c.Scoring.Weights.VolumeTechnical = 0.30
		c.Scoring.Weights.Catalyst = 0.35
		c.Scoring.Weights.ShortSqueeze = 0.15
		c.Scoring.Weights.Fundamental = 0.20
	}
	if c.Scoring.MinTotalScore == 0 {
		c.Scoring.MinTotalScore = 75
	}
	if c.Scoring.FetchTimeout == 0 {
		c.Scoring.FetchTimeout = 3 * time.Second
	}
	if c.Scoring.Penalties.RecentDilution == 0 {
		c.Scoring.Penalties.RecentDilution = 15
	}
	if c.Scoring.Penalties.ReverseSplit == 0 {
		c.Scoring.Penalties.ReverseSplit = 20
	}
	if c.Scoring.Penalties.NegativeCashFlow == 0 {
		c.Scoring.Penalties.NegativeCashFlow = 10
	}
	if c.Scoring.Bonuses.ExceptionalVolume == 0 {
		c.Scoring.Bonuses.ExceptionalVolume = 5
	}
	if c.Scoring.Bonuses.MultipleCatalysts == 0 {
		c.Scoring.Bonuses.MultipleCatalysts = 3
	}
	if c.Scoring.Bonuses.StrongSentiment == 0 {
		c.Scoring.Bonuses.StrongSentiment = 3
	}
	if c.Alerts.DeduplicationWindow == 0 {
		c.Alerts.DeduplicationWindow = time.Hour
	}
	if c.Alerts.OverrideMode == "" {
		c.Alerts.OverrideMode = "never"
	}
	if c.Alerts.MaxAlertsPerHour == 0 {
		c.Alerts.MaxAlertsPerHour = 10
	}
	if c.Alerts.RingBufferSize == 0 {
		c.Alerts.RingBufferSize = 200
	}
	if c.Alerts.ViewerQueueSize == 0 {
		c.Alerts.ViewerQueueSize = 64
	}
	if c.Providers.Timeout == 0 {
		c.Providers.Timeout = 5 * time.Second
	}
	if c.Providers.Cache.TTL == 0 {
		c.Providers.Cache.TTL = 2 * time.Minute
	}
}

// Validate checks if the configuration is valid. A weights invariant
// violation is fatal at startup, never recoverable at runtime.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Source.Type != "websocket" && c.Source.Type != "kafka" {
		return fmt.Errorf("source.type must be 'websocket' or 'kafka', got '%s'", c.Source.Type)
	}
	if c.Source.Type == "websocket" {
		if c.Polygon.APIKey == "" {
			return fmt.Errorf("polygon.api_key is required")
		}
		if len(c.Polygon.Symbols) == 0 {
			return fmt.Errorf("polygon.symbols cannot be empty")
		}
	}
	if c.Source.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	w := c.Scoring.Weights
	sum := w.VolumeTechnical + w.Catalyst + w.ShortSqueeze + w.Fundamental
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", sum)
	}
	if c.Alerts.OverrideMode != "never" && c.Alerts.OverrideMode != "score-margin" {
		return fmt.Errorf("alerts.override_mode must be 'never' or 'score-margin', got '%s'", c.Alerts.OverrideMode)
	}
	if c.Alerts.OverrideMode == "score-margin" && c.Alerts.OverrideMargin <= 0 {
		return fmt.Errorf("alerts.override_margin must be positive in score-margin mode")
	}
	if c.Scoring.MinTotalScore < 0 || c.Scoring.MinTotalScore > 100 {
		return fmt.Errorf("scoring.min_total_score must be within [0, 100]")
	}
	if c.Detection.Shards < 1 {
		return fmt.Errorf("detection.shards must be at least 1")
	}
	return nil
}
