package barfile

import (
	"fmt"

	"github.com/tidwall/gjson"

	"fx-confluence/internal/model"
)

// ParseJSON reads a bar dump. The root may be an array or an object with a
// "bars" or "data" array. Each element is either an object
// ({"timestamp"|"ts"|"time"|"date", "open", "high", "low", "close", "volume"})
// or a positional array [ts, open, high, low, close, volume?].
func ParseJSON(body []byte) ([]model.Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("barfile: invalid json")
	}
	root := gjson.ParseBytes(body)
	list := root
	if !root.IsArray() {
		list = root.Get("bars")
		if !list.Exists() {
			list = root.Get("data")
		}
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("barfile: json has no bar array")
	}

	arr := list.Array()
	bars := make([]model.Bar, 0, len(arr))
	for i, v := range arr {
		b, err := jsonBar(v)
		if err != nil {
			return nil, fmt.Errorf("barfile: json element %d: %w", i, err)
		}
		if err := checkBar(i, b); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return Normalize(bars), nil
}

func jsonBar(v gjson.Result) (model.Bar, error) {
	var ts, open, high, low, cl, vol gjson.Result
	if v.IsArray() {
		ts, open, high, low, cl, vol = v.Get("0"), v.Get("1"), v.Get("2"), v.Get("3"), v.Get("4"), v.Get("5")
	} else {
		ts = firstOf(v, "timestamp", "ts", "time", "date", "datetime")
		open = firstOf(v, "open", "o", "Open")
		high = firstOf(v, "high", "h", "High")
		low = firstOf(v, "low", "l", "Low")
		cl = firstOf(v, "close", "c", "Close")
		vol = firstOf(v, "volume", "v", "Volume")
	}

	var b model.Bar
	if !ts.Exists() {
		return b, fmt.Errorf("missing timestamp")
	}
	if ts.Type == gjson.Number {
		b.TS = unixAuto(ts.Int())
	} else {
		t, err := ParseTime(ts.String())
		if err != nil {
			return b, err
		}
		b.TS = t
	}

	for _, p := range []struct {
		name string
		r    gjson.Result
		dst  *float64
	}{{"open", open, &b.Open}, {"high", high, &b.High}, {"low", low, &b.Low}, {"close", cl, &b.Close}} {
		if !p.r.Exists() || p.r.Type == gjson.Null {
			return b, fmt.Errorf("missing %s", p.name)
		}
		*p.dst = p.r.Float()
	}
	if vol.Exists() && vol.Type != gjson.Null {
		b.Volume = model.Vol(vol.Float())
	}
	return b, nil
}

func firstOf(v gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if r := v.Get(k); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}
