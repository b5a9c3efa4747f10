package ops

import (
	"fmt"
	"os"
	"time"

	"futurebot/internal/risk"
	"futurebot/internal/strategy"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the YAML config layout. JSON files parse too.
type FileConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Trading     TradingConfig     `yaml:"trading"`
	Intervals   IntervalsConfig   `yaml:"intervals"`
	Breaker     BreakerConfig     `yaml:"breaker"`
	Risk        risk.Config       `yaml:"risk"`
	Log         LogConfig         `yaml:"log"`
	Notify      NotifyConfig      `yaml:"notify"`
	Journal     JournalConfig     `yaml:"journal"`
	Status      StatusConfig      `yaml:"status"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
}

// ServerConfig names the brokerage hosts.
type ServerConfig struct {
	TradingHost    string `yaml:"tradingHost"`
	MarketDataHost string `yaml:"marketDataHost"`
	AppID          string `yaml:"appId"`
	AppVersion     string `yaml:"appVersion"`
}

// CredentialsConfig holds the login. Every secret can be overridden from the
// environment.
type CredentialsConfig struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	CID       string `yaml:"cid"`
	Secret    string `yaml:"secret"`
	DeviceID  string `yaml:"deviceId"`
	CachePath string `yaml:"cachePath"`
}

// TradingConfig holds the strategy constants.
type TradingConfig struct {
	Symbol            string        `yaml:"symbol"`
	Account           string        `yaml:"account"`
	OrderQty          int64         `yaml:"orderQty"`
	SignalWindow      time.Duration `yaml:"signalWindow"`
	LargeTrade        int64         `yaml:"largeTrade"`
	PressureThreshold int64         `yaml:"pressureThreshold"`
	DepthThreshold    float64       `yaml:"depthThreshold"`
	LossTrigger       float64       `yaml:"lossTrigger"`
	Commission        float64       `yaml:"commission"`
	TickRetention     time.Duration `yaml:"tickRetention"`
}

type IntervalsConfig struct {
	Drain           time.Duration `yaml:"drain"`
	Strategy        time.Duration `yaml:"strategy"`
	Renew           time.Duration `yaml:"renew"`
	FirstReport     time.Duration `yaml:"firstReport"`
	Report          time.Duration `yaml:"report"`
	ShutdownGrace   time.Duration `yaml:"shutdownGrace"`
	CredentialRetry time.Duration `yaml:"credentialRetry"`
}

// BreakerConfig controls the reconnect circuit breaker.
type BreakerConfig struct {
	Threshold int           `yaml:"threshold"`
	MinCycle  time.Duration `yaml:"minCycle"`
}

type LogConfig struct {
	Path string `yaml:"path"`
}

// NotifyConfig configures the email and SMS senders. A sender without a host
// or account is disabled.
type NotifyConfig struct {
	SMTP   SMTPConfig   `yaml:"smtp"`
	Twilio TwilioConfig `yaml:"twilio"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

type TwilioConfig struct {
	BaseURL    string `yaml:"baseUrl"`
	AccountSID string `yaml:"accountSid"`
	Token      string `yaml:"token"`
	From       string `yaml:"from"`
	To         string `yaml:"to"`
}

// JournalConfig enables the trade journal when DSN is set.
type JournalConfig struct {
	DSN string `yaml:"dsn"`
}

type StatusConfig struct {
	Addr string `yaml:"addr"`
}

type ScheduleConfig struct {
	// Disabled skips the market-hours wait.
	Disabled bool `yaml:"disabled"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Server      ServerConfig
	Credentials CredentialsConfig
	Strategy    strategy.Config
	Retention   time.Duration
	Intervals   IntervalsConfig
	Breaker     BreakerConfig
	Risk        risk.Config
	Log         LogConfig
	Notify      NotifyConfig
	Journal     JournalConfig
	Status      StatusConfig
	Schedule    ScheduleConfig
}

// Load reads a config file, applies environment overrides and defaults, and
// validates the result. An empty path starts from defaults.
func Load(path string) (Loaded, error) {
	var cfg FileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Loaded{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Loaded{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return Resolve(cfg, os.Getenv)
}

// Resolve turns a file config into a Loaded. getenv supplies secret
// overrides.
func Resolve(cfg FileConfig, getenv func(string) string) (Loaded, error) {
	applyEnv(&cfg, getenv)
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return Loaded{}, err
	}

	sc := strategy.DefaultConfig()
	sc.Symbol = cfg.Trading.Symbol
	sc.AccountName = cfg.Trading.Account
	sc.AccountSpec = cfg.Credentials.Username
	sc.OrderQty = cfg.Trading.OrderQty
	sc.SignalWindow = cfg.Trading.SignalWindow
	sc.LargeTrade = cfg.Trading.LargeTrade
	sc.PressureThreshold = cfg.Trading.PressureThreshold
	sc.DepthThreshold = cfg.Trading.DepthThreshold
	sc.LossTrigger = cfg.Trading.LossTrigger
	sc.Commission = cfg.Trading.Commission

	return Loaded{
		Server:      cfg.Server,
		Credentials: cfg.Credentials,
		Strategy:    sc,
		Retention:   cfg.Trading.TickRetention,
		Intervals:   cfg.Intervals,
		Breaker:     cfg.Breaker,
		Risk:        cfg.Risk,
		Log:         cfg.Log,
		Notify:      cfg.Notify,
		Journal:     cfg.Journal,
		Status:      cfg.Status,
		Schedule:    cfg.Schedule,
	}, nil
}

func applyEnv(cfg *FileConfig, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Credentials.Username, "TRADER_USERNAME")
	set(&cfg.Credentials.Password, "TRADER_PASSWORD")
	set(&cfg.Credentials.CID, "TRADER_CID")
	set(&cfg.Credentials.Secret, "TRADER_SECRET")
	set(&cfg.Credentials.DeviceID, "TRADER_DEVICE_ID")
	set(&cfg.Notify.SMTP.Password, "SMTP_PASSWORD")
	set(&cfg.Notify.Twilio.Token, "TWILIO_TOKEN")
	set(&cfg.Journal.DSN, "TRADER_JOURNAL_DSN")
}

func applyDefaults(cfg *FileConfig) {
	def := strategy.DefaultConfig()
	s := &cfg.Server
	if s.TradingHost == "" {
		s.TradingHost = "demo.tradovateapi.com"
	}
	if s.MarketDataHost == "" {
		s.MarketDataHost = "md.tradovateapi.com"
	}
	if s.AppVersion == "" {
		s.AppVersion = "1.0"
	}
	if cfg.Credentials.CachePath == "" {
		cfg.Credentials.CachePath = "auth.json"
	}

	t := &cfg.Trading
	if t.OrderQty == 0 {
		t.OrderQty = def.OrderQty
	}
	if t.SignalWindow == 0 {
		t.SignalWindow = def.SignalWindow
	}
	if t.LargeTrade == 0 {
		t.LargeTrade = def.LargeTrade
	}
	if t.PressureThreshold == 0 {
		t.PressureThreshold = def.PressureThreshold
	}
	if t.DepthThreshold == 0 {
		t.DepthThreshold = def.DepthThreshold
	}
	if t.LossTrigger == 0 {
		t.LossTrigger = def.LossTrigger
	}
	if t.Commission == 0 {
		t.Commission = def.Commission
	}
	if t.TickRetention == 0 {
		t.TickRetention = 4 * time.Hour
	}

	i := &cfg.Intervals
	if i.Drain == 0 {
		i.Drain = time.Millisecond
	}
	if i.Strategy == 0 {
		i.Strategy = time.Millisecond
	}
	if i.Renew == 0 {
		i.Renew = time.Minute
	}
	if i.FirstReport == 0 {
		i.FirstReport = 30 * time.Minute
	}
	if i.Report == 0 {
		i.Report = 120 * time.Minute
	}
	if i.ShutdownGrace == 0 {
		i.ShutdownGrace = 2 * time.Second
	}
	if i.CredentialRetry == 0 {
		i.CredentialRetry = 5 * time.Second
	}

	if cfg.Breaker.Threshold == 0 {
		cfg.Breaker.Threshold = 3
	}
	if cfg.Breaker.MinCycle == 0 {
		cfg.Breaker.MinCycle = time.Minute
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = "trader.log"
	}
	if cfg.Notify.SMTP.Port == 0 {
		cfg.Notify.SMTP.Port = 587
	}
	if cfg.Notify.Twilio.BaseURL == "" {
		cfg.Notify.Twilio.BaseURL = "https://api.twilio.com/2010-04-01"
	}
}

func validate(cfg FileConfig) error {
	if cfg.Trading.Symbol == "" {
		return fmt.Errorf("trading symbol is empty")
	}
	if len(cfg.Trading.Symbol) <= 2 {
		return fmt.Errorf("trading symbol %q has no product code", cfg.Trading.Symbol)
	}
	if cfg.Trading.OrderQty <= 0 {
		return fmt.Errorf("trading orderQty must be > 0")
	}
	if cfg.Trading.TickRetention < 0 {
		return fmt.Errorf("trading tickRetention must be >= 0")
	}
	if cfg.Credentials.Username == "" || cfg.Credentials.Password == "" {
		return fmt.Errorf("credentials username and password are required")
	}
	if cfg.Breaker.Threshold < 1 {
		return fmt.Errorf("breaker threshold must be >= 1")
	}
	if cfg.Intervals.Drain < 0 || cfg.Intervals.Strategy < 0 {
		return fmt.Errorf("intervals must be >= 0")
	}
	if cfg.Risk.MaxOrderQty > 0 && cfg.Trading.OrderQty > cfg.Risk.MaxOrderQty {
		return fmt.Errorf("trading orderQty %d exceeds risk maxOrderQty %d", cfg.Trading.OrderQty, cfg.Risk.MaxOrderQty)
	}
	return nil
}
