package barfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fx-confluence/internal/model"
)

var columnAliases = map[string]string{
	"timestamp": "ts", "time": "ts", "date": "ts", "datetime": "ts", "ts": "ts",
	"open": "open", "o": "open",
	"high": "high", "h": "high",
	"low": "low", "l": "low",
	"close": "close", "c": "close",
	"volume": "volume", "vol": "volume", "v": "volume",
}

// ParseCSV reads timestamp,open,high,low,close[,volume] rows. A header row
// is optional; when present, columns are matched by name in any order.
// An empty volume cell leaves the bar without volume.
func ParseCSV(r io.Reader) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	cols := map[string]int{"ts": 0, "open": 1, "high": 2, "low": 3, "close": 4, "volume": 5}
	var bars []model.Bar
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("barfile: csv: %w", err)
		}
		if row == 0 && isHeader(rec) {
			cols = headerColumns(rec)
			if _, ok := cols["ts"]; !ok {
				return nil, fmt.Errorf("barfile: csv header has no timestamp column")
			}
			continue
		}
		b, err := csvBar(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("barfile: csv row %d: %w", row+1, err)
		}
		if err := checkBar(row+1, b); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return Normalize(bars), nil
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := ParseTime(rec[0])
	return err != nil
}

func headerColumns(rec []string) map[string]int {
	cols := make(map[string]int, len(rec))
	for i, name := range rec {
		if canon, ok := columnAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			cols[canon] = i
		}
	}
	return cols
}

func csvBar(rec []string, cols map[string]int) (model.Bar, error) {
	field := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[i]), true
	}

	var b model.Bar
	ts, _ := field("ts")
	t, err := ParseTime(ts)
	if err != nil {
		return b, err
	}
	b.TS = t

	for _, p := range []struct {
		name string
		dst  *float64
	}{{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close}} {
		s, ok := field(p.name)
		if !ok || s == "" {
			return b, fmt.Errorf("missing %s", p.name)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return b, fmt.Errorf("bad %s %q", p.name, s)
		}
		*p.dst = v
	}

	if s, ok := field("volume"); ok && s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return b, fmt.Errorf("bad volume %q", s)
		}
		b.Volume = model.Vol(v)
	}
	return b, nil
}
