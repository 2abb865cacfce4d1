package confluence

import (
	"fmt"
	"os"
	"sort"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"fx-confluence/internal/model"
)

var validate = validator.New()

// Config holds every engine parameter. It is passed by value into the
// engine; nothing is read from process-wide state.
type Config struct {
	// MAPeriods are the SMA periods computed for display on every pair.
	MAPeriods   []int `yaml:"ma_periods" json:"ma_periods" default:"[20,50,100,200,600,1200,2000]" validate:"required,dive,gt=0"`
	// ZonePeriods are the MAs whose ATR band defines has_zone (OR-ed).
	ZonePeriods []int `yaml:"zone_periods" json:"zone_periods" default:"[600,1200,2000]" validate:"required,dive,gt=0"`

	CrossFast         int     `yaml:"cross_fast" json:"cross_fast" default:"600" validate:"gt=0,nefield=CrossSlow"`
	CrossSlow         int     `yaml:"cross_slow" json:"cross_slow" default:"1200" validate:"gt=0"`
	CrossoverLookback int     `yaml:"crossover_lookback" json:"crossover_lookback" default:"10" validate:"gte=2"`
	ATRPeriod         int     `yaml:"atr_period" json:"atr_period" default:"14" validate:"gt=0"`
	ZoneK             float64 `yaml:"zone_k" json:"zone_k" default:"1.5" validate:"gt=0"`
	DivergenceWindow  int     `yaml:"divergence_window" json:"divergence_window" default:"40" validate:"gt=0"`
	RiskATRMult       float64 `yaml:"risk_atr_mult" json:"risk_atr_mult" default:"2.0" validate:"gt=0"`

	MacroFast int `yaml:"macro_fast" json:"macro_fast" default:"50" validate:"gt=0,ltfield=MacroSlow"`
	MacroSlow int `yaml:"macro_slow" json:"macro_slow" default:"200" validate:"gt=0"`
	// MacroMinBars is the reference history below which the bias is
	// reported immature and forced to weak. Unset means MacroSlow; it may
	// never be shorter than the slow EMA.
	MacroMinBars int `yaml:"macro_min_bars" json:"macro_min_bars" validate:"gt=0,gtefield=MacroSlow"`

	// SMAMinPad is the extra history (beyond the period) an SMA needs before
	// it is computed at all.
	SMAMinPad int `yaml:"sma_min_pad" json:"sma_min_pad" default:"5" validate:"gte=0"`

	Reference string       `yaml:"reference" json:"reference" default:"DXY" validate:"required"`
	Pairs     []model.Pair `yaml:"pairs" json:"pairs" validate:"required,min=1,dive"`
}

// DefaultPairs is the pair set used when none is configured.
var DefaultPairs = []model.Pair{
	{ID: "EURUSD"},
	{ID: "GBPUSD"},
	{ID: "AUDUSD"},
	{ID: "USDCHF", Inverted: true},
}

// SetDefaults fills MacroMinBars and Pairs; called by defaults.Set after
// the tag defaults.
func (c *Config) SetDefaults() {
	if c.MacroMinBars == 0 {
		c.MacroMinBars = c.MacroSlow
	}
	if len(c.Pairs) == 0 {
		c.Pairs = append([]model.Pair(nil), DefaultPairs...)
	}
}

// DefaultConfig returns the stock parameter set.
func DefaultConfig() Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		// tag literals are static; failure here is a programming error
		panic(fmt.Sprintf("confluence: default tags: %v", err))
	}
	return c
}

// ApplyDefaults fills any zero-valued field of c with its default.
func (c *Config) ApplyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate rejects parameter sets that would produce silently wrong output.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if len(c.Pairs) > 0 {
		seen := make(map[string]bool, len(c.Pairs))
		for i := range c.Pairs {
			k := c.Pairs[i].Key()
			if seen[k] {
				return fmt.Errorf("%w: duplicate pair %s", ErrInvalidConfig, k)
			}
			seen[k] = true
		}
	}
	return nil
}

// LoadConfigFile reads a YAML parameter file. Fields left out of the file
// keep their defaults. The result is validated.
func LoadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read engine config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	if err := c.ApplyDefaults(); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Pair looks up a configured pair by ID (case-insensitive).
func (c *Config) Pair(id string) (model.Pair, error) {
	want := (&model.Pair{ID: id}).Key()
	for _, p := range c.Pairs {
		if p.Key() == want {
			return p, nil
		}
	}
	return model.Pair{}, fmt.Errorf("%w: %s", ErrUnknownPair, id)
}

// SMAPeriods returns the distinct SMA periods a pair evaluation needs,
// ascending: display, zone and crossover periods combined.
func (c *Config) SMAPeriods() []int {
	set := make(map[int]struct{}, len(c.MAPeriods)+len(c.ZonePeriods)+2)
	for _, p := range c.MAPeriods {
		set[p] = struct{}{}
	}
	for _, p := range c.ZonePeriods {
		set[p] = struct{}{}
	}
	set[c.CrossFast] = struct{}{}
	set[c.CrossSlow] = struct{}{}

	out := make([]int, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
