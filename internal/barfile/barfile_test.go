package barfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-confluence/internal/model"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2025-06-02T13:00:00Z",
		"2025-06-02T15:00:00+02:00",
		"2025-06-02 13:00:00",
		"2025-06-02T13:00:00",
		"2025-06-02 13:00",
		"1748869200",
		"1748869200000",
	} {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(want), "%s -> %s", in, got)
	}

	d, err := ParseTime("2025-06-02")
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))

	_, err = ParseTime("yesterday")
	assert.Error(t, err)
}

func TestParseCSV_Headerless(t *testing.T) {
	in := `2025-06-02 00:00:00,1.1000,1.1010,1.0990,1.1005
2025-06-02 01:00:00,1.1005,1.1020,1.1000,1.1015,350
`
	bars, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.1005, bars[0].Close)
	assert.Nil(t, bars[0].Volume)
	require.NotNil(t, bars[1].Volume)
	assert.Equal(t, 350.0, *bars[1].Volume)
}

func TestParseCSV_HeaderReorderedAndSorted(t *testing.T) {
	in := `Close,Open,High,Low,Date,Volume
1.2,1.1,1.3,1.0,2025-06-03,
1.1,1.0,1.2,0.9,2025-06-02,10
1.25,1.1,1.3,1.0,2025-06-03,
`
	bars, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2, "duplicate timestamp collapsed")
	assert.True(t, bars[0].TS.Before(bars[1].TS))
	assert.Equal(t, 1.0, bars[0].Open)
	assert.Equal(t, 1.25, bars[1].Close, "last duplicate wins")
	assert.Nil(t, bars[1].Volume)

	s := model.Series{Bars: bars}
	assert.NoError(t, s.CheckOrder())
}

func TestParseCSV_Errors(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("open,high,low,close\n1,2,0.5,1\n"))
	assert.ErrorContains(t, err, "timestamp")

	_, err = ParseCSV(strings.NewReader("2025-06-02,1,2,0.5\n"))
	assert.ErrorContains(t, err, "missing close")

	_, err = ParseCSV(strings.NewReader("2025-06-02,1,0.5,2,1\n"))
	assert.ErrorContains(t, err, "below low")

	_, err = ParseCSV(strings.NewReader("2025-06-02,1,x,0.5,1\n"))
	assert.ErrorContains(t, err, "bad high")
}

func TestParseJSON_Shapes(t *testing.T) {
	objects := `{"bars":[
		{"timestamp":"2025-06-02T01:00:00Z","open":1.1,"high":1.2,"low":1.0,"close":1.15,"volume":null},
		{"timestamp":"2025-06-02T00:00:00Z","open":1.0,"high":1.1,"low":0.9,"close":1.05,"volume":42}
	]}`
	bars, err := ParseJSON([]byte(objects))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.05, bars[0].Close, "sorted ascending")
	require.NotNil(t, bars[0].Volume)
	assert.Nil(t, bars[1].Volume)

	positional := `[[1748822400,1.0,1.1,0.9,1.05],[1748826000000,1.05,1.1,1.0,1.08,7]]`
	bars, err = ParseJSON([]byte(positional))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, time.Hour, bars[1].TS.Sub(bars[0].TS), "seconds and milliseconds both accepted")
	assert.Equal(t, 7.0, *bars[1].Volume)

	data := `{"data":[{"ts":1748822400,"o":1,"h":2,"l":0.5,"c":1.5}]}`
	bars, err = ParseJSON([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, 1.5, bars[0].Close)
}

func TestParseJSON_Errors(t *testing.T) {
	_, err := ParseJSON([]byte(`{not json`))
	assert.Error(t, err)

	_, err = ParseJSON([]byte(`{"rows":[]}`))
	assert.ErrorContains(t, err, "no bar array")

	_, err = ParseJSON([]byte(`[{"open":1,"high":1,"low":1,"close":1}]`))
	assert.ErrorContains(t, err, "missing timestamp")

	_, err = ParseJSON([]byte(`[{"ts":"2025-06-02","open":1,"high":1,"low":1}]`))
	assert.ErrorContains(t, err, "missing close")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "eurusd.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("2025-06-02,1,2,0.5,1.5\n"), 0o644))
	bars, err := Load(csvPath)
	require.NoError(t, err)
	assert.Len(t, bars, 1)

	jsonPath := filepath.Join(dir, "dxy.JSON")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[["2025-06-02",100,101,99,100.5]]`), 0o644))
	bars, err = Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 100.5, bars[0].Close)

	_, err = Load(filepath.Join(dir, "bars.parquet"))
	assert.Error(t, err)
}
