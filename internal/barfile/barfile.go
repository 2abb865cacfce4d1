// Package barfile parses offline bar dumps (CSV or JSON) into model bars.
package barfile

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"fx-confluence/internal/model"
)

// Load reads path and parses it by extension (.csv or .json).
func Load(path string) ([]model.Bar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("barfile: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSV(bytes.NewReader(raw))
	case ".json":
		return ParseJSON(raw)
	}
	return nil, fmt.Errorf("barfile: unsupported extension %q (want .csv or .json)", filepath.Ext(path))
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime accepts RFC3339, common date-time layouts (read as UTC) and
// unix timestamps in seconds or milliseconds.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unixAuto(n), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("barfile: unrecognised timestamp %q", s)
}

// unixAuto treats values beyond year ~5000 in seconds as milliseconds.
func unixAuto(n int64) time.Time {
	if n > 1e11 || n < -1e11 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

func checkBar(i int, b model.Bar) error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("barfile: row %d: non-finite price", i)
		}
	}
	if b.High < b.Low {
		return fmt.Errorf("barfile: row %d: high %.5f below low %.5f", i, b.High, b.Low)
	}
	return nil
}

// Normalize sorts bars by timestamp and keeps the last of any duplicates,
// producing a strictly increasing series.
func Normalize(bars []model.Bar) []model.Bar {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].TS.Before(bars[j].TS) })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].TS.Equal(b.TS) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
