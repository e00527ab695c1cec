// Package config holds the strategy and runtime configuration, loaded from
// YAML over defaults and validated before the engine starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration is returned for invalid configuration; construction must
// fail before any evaluation cycle runs.
var ErrConfiguration = errors.New("config: invalid configuration")

// ClassifierParams are the regime decision-table thresholds.
type ClassifierParams struct {
	TensionThreshold float64 `yaml:"tension_threshold" default:"0.35" validate:"gt=0"`
	AccelThreshold   float64 `yaml:"accel_threshold" default:"0.02" validate:"gt=0"`
	OscillationBand  float64 `yaml:"oscillation_band" default:"0.5" validate:"gt=0"`
	ConfThreshold    float64 `yaml:"conf_threshold" default:"0.6" validate:"gte=0,lte=1"`
	// Edge-oscillation rules (rules 4 and 5).
	EdgeTension float64 `yaml:"edge_tension" default:"0.3" validate:"gt=0"`
	QuietAccel  float64 `yaml:"quiet_accel" default:"0.01" validate:"gt=0"`
}

// StructuralParams are the Stage A per-signal thresholds.
type StructuralParams struct {
	HighOscEMAMax    float64 `yaml:"high_osc_ema_max" default:"0.02"`
	HighOscVolumeMax float64 `yaml:"high_osc_volume_max" default:"1.1" validate:"gt=0"`
	BullishVolumeMax float64 `yaml:"bullish_volume_max" default:"0.95" validate:"gt=0"`
	BullishEMAMax    float64 `yaml:"bullish_ema_max" default:"0.05"`
	BearishEMAMin    float64 `yaml:"bearish_ema_min" default:"-0.05"`
}

// HarmonicParams configure the Stage B pattern confirmer.
type HarmonicParams struct {
	Enabled        bool          `yaml:"enabled"`
	Tolerance      float64       `yaml:"tolerance" default:"0.15" validate:"gt=0,lt=1"`
	SwingDepth     int           `yaml:"swing_depth" default:"3" validate:"gte=1"`
	WindowCandles  int           `yaml:"window_candles" default:"200" validate:"gte=20"`
	Lookback       time.Duration `yaml:"lookback" default:"48h" validate:"gt=0"`
	PriceProximity float64       `yaml:"price_proximity" default:"0.01" validate:"gt=0"`
	// Per-family confidence weights.
	WeightABCD      float64 `yaml:"weight_abcd" default:"0.05"`
	WeightGartley   float64 `yaml:"weight_gartley" default:"0.10"`
	WeightButterfly float64 `yaml:"weight_butterfly" default:"0.15"`
	WeightBat       float64 `yaml:"weight_bat" default:"0.12"`
	WeightCrab      float64 `yaml:"weight_crab" default:"0.12"`
}

// ConfirmationParams configure the Stage C multi-period confirmation.
type ConfirmationParams struct {
	Enabled bool `yaml:"enabled"`

	ShortTensionMin     float64 `yaml:"short_tension_min" default:"0.5"`
	ShortTensionDirect  float64 `yaml:"short_tension_direct" default:"0.8"`
	ShortVolumeIdealMin float64 `yaml:"short_volume_ideal_min" default:"0.5"`
	ShortVolumeIdealMax float64 `yaml:"short_volume_ideal_max" default:"1.0"`
	ShortRatioMin       float64 `yaml:"short_ratio_min" default:"50"`
	ShortRatioMax       float64 `yaml:"short_ratio_max" default:"150"`
	ShortReconfirm      float64 `yaml:"short_reconfirm" default:"0.45"`

	LongTensionMax    float64 `yaml:"long_tension_max" default:"-0.5"`
	LongTensionStrong float64 `yaml:"long_tension_strong" default:"-0.7"`
	LongRatioMin      float64 `yaml:"long_ratio_min" default:"100"`
	LongReconfirm     float64 `yaml:"long_reconfirm" default:"-0.45"`

	WaitMin          int     `yaml:"wait_min" default:"4" validate:"gte=1"`
	WaitMax          int     `yaml:"wait_max" default:"6" validate:"gte=1"`
	MaxWait          int     `yaml:"max_wait" default:"10" validate:"gte=1"`
	ReconfirmVolume  float64 `yaml:"reconfirm_volume" default:"1.0" validate:"gt=0"`
	GoldenTensionPct float64 `yaml:"golden_tension_pct" default:"5" validate:"gt=0"`
	GoldenPricePct   float64 `yaml:"golden_price_pct" default:"0.5" validate:"gt=0"`
}

// ExitParams configure the pivot exit manager.
type ExitParams struct {
	Depth           int     `yaml:"depth" default:"12" validate:"gte=1"`
	LongBuffer      float64 `yaml:"long_buffer" default:"1.2" validate:"gt=0"`
	ShortStopBuffer float64 `yaml:"short_stop_buffer" default:"0.5" validate:"gt=0"`
	ShortStopMaxPct float64 `yaml:"short_stop_max_pct" default:"0.03" validate:"gt=0"`
	FallbackTPPct   float64 `yaml:"fallback_tp_pct" default:"0.05" validate:"gt=0"`
	FallbackSLPct   float64 `yaml:"fallback_sl_pct" default:"0.025" validate:"gt=0"`
	MaxHoldPeriods  int     `yaml:"max_hold_periods" default:"42" validate:"gte=1"`
}

type Config struct {
	Symbol     string `yaml:"symbol" default:"BTCUSDT" validate:"required"`
	Timeframe  string `yaml:"timeframe" default:"4h" validate:"required"`
	FetchLimit int    `yaml:"fetch_limit" default:"300" validate:"gte=60"`
	MinCandles int    `yaml:"min_candles" default:"60" validate:"gte=3"`
	EMAPeriod  int    `yaml:"ema_period" default:"20" validate:"gte=2"`
	VolumeLook int    `yaml:"volume_lookback" default:"20" validate:"gte=1"`

	Classifier   ClassifierParams   `yaml:"classifier"`
	Structural   StructuralParams   `yaml:"structural"`
	Harmonic     HarmonicParams     `yaml:"harmonic"`
	Confirmation ConfirmationParams `yaml:"confirmation"`
	Exit         ExitParams         `yaml:"exit"`

	Mode         string        `yaml:"mode" default:"live"`
	DBConnStr    string        `yaml:"db_conn_str"`
	DBMaxOpen    int           `yaml:"db_max_open" default:"10"`
	DBMaxIdle    int           `yaml:"db_max_idle" default:"5"`
	StateFile    string        `yaml:"state_file" default:"trader_state.json"`
	SignalEvery  time.Duration `yaml:"signal_every" default:"4h" validate:"gt=0"`
	PollEvery    time.Duration `yaml:"poll_every" default:"1h" validate:"gt=0"`
	ReplayFrom   string        `yaml:"replay_from"`
	ReplayTo     string        `yaml:"replay_to"`
	LogLevel     string        `yaml:"log_level" default:"info"`
	LogJSON      bool          `yaml:"log_json"`
	TelegramOn   bool          `yaml:"telegram_enabled"`
	TgToken      string        `yaml:"telegram_token"`
	TgChatID     string        `yaml:"telegram_chat_id"`
	NotifRetries int           `yaml:"notification_retries" default:"3" validate:"gte=0"`
	NotifDelay   time.Duration `yaml:"notification_delay" default:"5s"`
}

var validate = validator.New()

// New returns a Config with defaults applied and validated.
func New() (Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads a YAML config file over the defaults and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fails fast on invalid parameter combinations.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	cp := c.Confirmation
	if cp.WaitMin > cp.WaitMax {
		return fmt.Errorf("%w: confirmation wait_min %d > wait_max %d", ErrConfiguration, cp.WaitMin, cp.WaitMax)
	}
	if cp.WaitMax > cp.MaxWait {
		return fmt.Errorf("%w: confirmation wait_max %d > max_wait %d", ErrConfiguration, cp.WaitMax, cp.MaxWait)
	}
	if cp.ShortVolumeIdealMin > cp.ShortVolumeIdealMax {
		return fmt.Errorf("%w: confirmation short volume band inverted", ErrConfiguration)
	}
	if cp.ShortRatioMin > cp.ShortRatioMax {
		return fmt.Errorf("%w: confirmation short ratio band inverted", ErrConfiguration)
	}
	return nil
}

// Preset returns a named strategy configuration. Each former strategy
// version is a data preset over the same pipeline, not a separate code path.
func Preset(name string) (Config, error) {
	cfg, err := New()
	if err != nil {
		return Config{}, err
	}
	switch name {
	case "v705":
		// Structural filter only.
	case "v707":
		// Structural filter + pivot exits with the harmonic confirmer.
		cfg.Harmonic.Enabled = true
	case "v708", "full":
		// Everything: harmonic confirmation and statistical confirmation.
		cfg.Harmonic.Enabled = true
		cfg.Confirmation.Enabled = true
	default:
		return Config{}, fmt.Errorf("%w: unknown preset %q", ErrConfiguration, name)
	}
	return cfg, nil
}
