package confluence

import "fx-confluence/internal/model"

// Inputs is everything the classifier looks at for one pair.
type Inputs struct {
	HasZone    bool
	Crossed    bool
	Divergence model.Divergence
	Bias       model.MacroBias
	Inverted   bool
}

// Classify maps detector outputs to a suggestion. Rules are checked in
// order and the first match wins:
//
//	no zone and no cross      -> AWAIT_ZONE
//	divergence none           -> AWAIT_CONFIRMATION
//	bullish, weak USD         -> BUY  (SELL if inverted)
//	bearish, strong USD       -> SELL (BUY if inverted)
//	otherwise                 -> NO_TRADE
func Classify(in Inputs) model.Suggestion {
	if !in.HasZone && !in.Crossed {
		return model.SuggestAwaitZone
	}
	switch in.Divergence {
	case model.DivergenceBullish:
		if in.Bias != model.MacroWeak {
			return model.SuggestNoTrade
		}
		if in.Inverted {
			return model.SuggestSell
		}
		return model.SuggestBuy
	case model.DivergenceBearish:
		if in.Bias != model.MacroStrong {
			return model.SuggestNoTrade
		}
		if in.Inverted {
			return model.SuggestBuy
		}
		return model.SuggestSell
	}
	return model.SuggestAwaitConfirmation
}
