package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/kalshimaker/internal/risk"
	"github.com/alejandrodnm/kalshimaker/internal/strategy"
)

// Config es la configuración completa del market maker.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Strategies StrategiesConfig `yaml:"strategies"`
	Quoting    QuotingConfig    `yaml:"quoting"`
	Risk       RiskConfig       `yaml:"risk"`
	API        APIConfig        `yaml:"api"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
}

// EngineConfig controla el loop de decisión de un mercado.
type EngineConfig struct {
	Ticker          string `yaml:"ticker"`
	DryRun          bool   `yaml:"dry_run"`
	TickSeconds     int    `yaml:"tick_seconds"`
	CancelMoveTicks int    `yaml:"cancel_move_ticks"`
	OpenSyncTicks   int    `yaml:"open_sync_ticks"`
	SubmitGraceSecs int    `yaml:"submit_grace_seconds"`
	ReduceOnlyStep  int    `yaml:"reduce_only_step"`
}

// StrategiesConfig enciende o apaga cada estrategia.
type StrategiesConfig struct {
	Touch bool `yaml:"touch"`
	Depth bool `yaml:"depth"`
	Band  bool `yaml:"band"`
	Exit  bool `yaml:"exit"`
}

// QuotingConfig son los knobs compartidos por las estrategias.
type QuotingConfig struct {
	MinSpreadCents      int  `yaml:"min_spread_cents"`
	BidSizeContracts    int  `yaml:"bid_size_contracts"`
	ExitSizeContracts   int  `yaml:"exit_size_contracts"`
	TakeProfitTicks     int  `yaml:"take_profit_ticks"`
	ExitNudgeTicks      int  `yaml:"exit_nudge_ticks"`
	QuoteTTLSeconds     int  `yaml:"quote_ttl_seconds"`
	ExitTTLSeconds      int  `yaml:"exit_ttl_seconds"`
	QueueSmallThreshold int  `yaml:"queue_small_threshold"`
	QueueBigThreshold   int  `yaml:"queue_big_threshold"`
	ExitLadderThreshold int  `yaml:"exit_ladder_threshold"`
	ImproveIfLast       bool `yaml:"improve_if_last"`
	DepthLevels         int  `yaml:"depth_levels"`
	DepthStepTicks      int  `yaml:"depth_step_ticks"`
	BandHalfWidthTicks  int  `yaml:"band_half_width_ticks"`
	BandRungs           int  `yaml:"band_rungs"`
}

// RiskConfig controla el guard previo a la colocación.
type RiskConfig struct {
	SumCushionTicks       int            `yaml:"sum_cushion_ticks"`
	MaxInventoryContracts int            `yaml:"max_inventory_contracts"`
	GroupLimits           map[string]int `yaml:"group_limits"` // contratos por estrategia
}

// APIConfig contiene endpoints y credenciales de Kalshi. La clave privada
// nunca va en el YAML: solo la ruta al PEM, o las variables de entorno.
type APIConfig struct {
	RESTBase       string `yaml:"rest_base"`
	WSURL          string `yaml:"ws_url"`
	KeyID          string `yaml:"key_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// StorageConfig controla dónde se persiste el journal.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. Las variables de entorno sobreescriben el YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Validate comprueba lo mínimo para arrancar en el modo pedido.
func (c *Config) Validate() error {
	if c.Engine.Ticker == "" {
		return fmt.Errorf("config.Validate: engine.ticker es obligatorio")
	}
	if !c.Engine.DryRun && (c.API.KeyID == "" || c.API.PrivateKeyPath == "") {
		return fmt.Errorf("config.Validate: modo live requiere KALSHI_API_KEY_ID y KALSHI_PRIVATE_KEY_PATH")
	}
	return nil
}

// TickInterval devuelve el intervalo del tick como time.Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Engine.TickSeconds) * time.Second
}

// SubmitGrace devuelve la edad mínima de un intent antes de que el sweep
// de órdenes abiertas pueda descartarlo.
func (c *Config) SubmitGrace() time.Duration {
	return time.Duration(c.Engine.SubmitGraceSecs) * time.Second
}

// StrategyConfig materializa los knobs para el paquete strategy.
func (c *Config) StrategyConfig() strategy.Config {
	return strategy.Config{
		MinSpreadCents:        c.Quoting.MinSpreadCents,
		BidSizeContracts:      c.Quoting.BidSizeContracts,
		ExitSizeContracts:     c.Quoting.ExitSizeContracts,
		TakeProfitTicks:       c.Quoting.TakeProfitTicks,
		ExitNudgeTicks:        c.Quoting.ExitNudgeTicks,
		QuoteTTL:              time.Duration(c.Quoting.QuoteTTLSeconds) * time.Second,
		ExitTTL:               time.Duration(c.Quoting.ExitTTLSeconds) * time.Second,
		MaxInventoryContracts: c.Risk.MaxInventoryContracts,
		QueueSmallThreshold:   c.Quoting.QueueSmallThreshold,
		QueueBigThreshold:     c.Quoting.QueueBigThreshold,
		ExitLadderThreshold:   c.Quoting.ExitLadderThreshold,
		ImproveIfLast:         c.Quoting.ImproveIfLast,
		DepthLevels:           c.Quoting.DepthLevels,
		DepthStepTicks:        c.Quoting.DepthStepTicks,
		BandHalfWidthTicks:    c.Quoting.BandHalfWidthTicks,
		BandRungs:             c.Quoting.BandRungs,
	}
}

// RiskGuardConfig materializa los límites para el paquete risk.
func (c *Config) RiskGuardConfig() risk.Config {
	return risk.Config{
		SumCushionTicks:       c.Risk.SumCushionTicks,
		MaxInventoryContracts: c.Risk.MaxInventoryContracts,
		GroupLimits:           c.Risk.GroupLimits,
	}
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están
// presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KALSHI_API_KEY_ID"); v != "" {
		cfg.API.KeyID = v
	}
	if v := os.Getenv("KALSHI_PRIVATE_KEY_PATH"); v != "" {
		cfg.API.PrivateKeyPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Los defaults cuantitativos coinciden con strategy.DefaultConfig y
// risk.DefaultConfig.
func setDefaults(cfg *Config) {
	def := strategy.DefaultConfig()
	riskDef := risk.DefaultConfig()

	if cfg.Engine.TickSeconds <= 0 {
		cfg.Engine.TickSeconds = 1
	}
	if cfg.Engine.CancelMoveTicks <= 0 {
		cfg.Engine.CancelMoveTicks = 2
	}
	if cfg.Engine.OpenSyncTicks <= 0 {
		cfg.Engine.OpenSyncTicks = 30
	}
	if cfg.Engine.SubmitGraceSecs <= 0 {
		cfg.Engine.SubmitGraceSecs = 5
	}

	if cfg.Quoting.MinSpreadCents <= 0 {
		cfg.Quoting.MinSpreadCents = def.MinSpreadCents
	}
	if cfg.Quoting.BidSizeContracts <= 0 {
		cfg.Quoting.BidSizeContracts = def.BidSizeContracts
	}
	if cfg.Quoting.ExitSizeContracts <= 0 {
		cfg.Quoting.ExitSizeContracts = def.ExitSizeContracts
	}
	if cfg.Quoting.TakeProfitTicks <= 0 {
		cfg.Quoting.TakeProfitTicks = def.TakeProfitTicks
	}
	if cfg.Quoting.ExitNudgeTicks <= 0 {
		cfg.Quoting.ExitNudgeTicks = def.ExitNudgeTicks
	}
	if cfg.Quoting.QuoteTTLSeconds <= 0 {
		cfg.Quoting.QuoteTTLSeconds = int(def.QuoteTTL / time.Second)
	}
	if cfg.Quoting.ExitTTLSeconds <= 0 {
		cfg.Quoting.ExitTTLSeconds = int(def.ExitTTL / time.Second)
	}
	if cfg.Quoting.QueueSmallThreshold <= 0 {
		cfg.Quoting.QueueSmallThreshold = def.QueueSmallThreshold
	}
	if cfg.Quoting.QueueBigThreshold <= 0 {
		cfg.Quoting.QueueBigThreshold = def.QueueBigThreshold
	}
	if cfg.Quoting.ExitLadderThreshold <= 0 {
		cfg.Quoting.ExitLadderThreshold = def.ExitLadderThreshold
	}
	if cfg.Quoting.DepthLevels <= 0 {
		cfg.Quoting.DepthLevels = def.DepthLevels
	}
	if cfg.Quoting.DepthStepTicks <= 0 {
		cfg.Quoting.DepthStepTicks = def.DepthStepTicks
	}
	if cfg.Quoting.BandHalfWidthTicks <= 0 {
		cfg.Quoting.BandHalfWidthTicks = def.BandHalfWidthTicks
	}
	if cfg.Quoting.BandRungs <= 0 {
		cfg.Quoting.BandRungs = def.BandRungs
	}

	// Sin sección strategies en el YAML, todas activas.
	if !cfg.Strategies.Touch && !cfg.Strategies.Depth && !cfg.Strategies.Band && !cfg.Strategies.Exit {
		cfg.Strategies = StrategiesConfig{Touch: true, Depth: true, Band: true, Exit: true}
	}

	if cfg.Risk.SumCushionTicks <= 0 {
		cfg.Risk.SumCushionTicks = riskDef.SumCushionTicks
	}
	if cfg.Risk.MaxInventoryContracts <= 0 {
		cfg.Risk.MaxInventoryContracts = riskDef.MaxInventoryContracts
	}
	if len(cfg.Risk.GroupLimits) == 0 {
		cfg.Risk.GroupLimits = riskDef.GroupLimits
	}

	if cfg.API.RESTBase == "" {
		cfg.API.RESTBase = "https://api.elections.kalshi.com/trade-api/v2"
	}
	if cfg.API.WSURL == "" {
		cfg.API.WSURL = "wss://api.elections.kalshi.com/trade-api/ws/v2"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "kalshimaker.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
