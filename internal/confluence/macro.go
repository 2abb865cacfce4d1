package confluence

import (
	"fmt"
	"time"

	"fx-confluence/internal/indicator"
	"fx-confluence/internal/model"
)

// MacroReport is the reference-instrument outcome plus its display lines.
type MacroReport struct {
	Result     model.MacroResult         `json:"result"`
	Timestamps []time.Time               `json:"timestamps"`
	Indicators map[string]indicator.Line `json:"indicators"`
}

// MacroBias is strong iff fast.last > slow.last. An undefined endpoint on
// either line yields weak.
func MacroBias(fast, slow indicator.Line) model.MacroBias {
	f, okF := fast.Last()
	s, okS := slow.Last()
	if okF && okS && f > s {
		return model.MacroStrong
	}
	return model.MacroWeak
}

// EvaluateMacro derives the USD bias from the reference series. A reference
// shorter than MacroMinBars is reported immature and its bias is weak.
func (e *Engine) EvaluateMacro(ref model.Series) (MacroReport, error) {
	if err := checkSeries(ref); err != nil {
		return MacroReport{}, fmt.Errorf("reference %s: %w", e.cfg.Reference, err)
	}
	c := &e.cfg
	fast := indicator.ComputeEMA(ref.Bars, c.MacroFast)
	slow := indicator.ComputeEMA(ref.Bars, c.MacroSlow)

	mature := ref.Len() >= c.MacroMinBars
	bias := model.MacroWeak
	if mature {
		bias = MacroBias(fast, slow)
	}

	last, _ := ref.Last()
	ff, _ := fast.Last()
	sf, _ := slow.Last()
	res := model.MacroResult{
		Reference: e.cfg.Reference,
		Interval:  ref.Interval,
		TS:        last.TS,
		Bias:      bias,
		EMAFast:   model.Float(ff),
		EMASlow:   model.Float(sf),
		Mature:    mature,
		Advice:    bias.Advice(),
	}
	return MacroReport{
		Result:     res,
		Timestamps: ref.Timestamps(),
		Indicators: map[string]indicator.Line{
			"EMA_" + model.Itoa(c.MacroFast): fast,
			"EMA_" + model.Itoa(c.MacroSlow): slow,
			"ATR":                            indicator.ComputeATR(ref.Bars, c.ATRPeriod),
			"CVD":                            indicator.ComputeCVD(ref),
		},
	}, nil
}
