// Command barimport loads CSV or JSON bar dumps into the SQLite bar store.
//
//	barimport -instrument EURUSD -interval 1h eurusd_1h.csv [more files...]
//	barimport -instrument DXY -interval 5m -resample 1h,1d dxy_5m.json
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"fx-confluence/internal/barfile"
	"fx-confluence/internal/model"
	"fx-confluence/internal/resample"
	sqlitestore "fx-confluence/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	dbPath := flag.String("db", "data/bars.db", "Path to SQLite bar database")
	instrument := flag.String("instrument", "", "Instrument id, e.g. EURUSD or DXY (required)")
	ivStr := flag.String("interval", "1h", "Bar interval: 5m, 15m, 1h or 1d")
	resampleStr := flag.String("resample", "", "Comma-separated coarser intervals to derive and store, e.g. 1h,1d")
	flag.Parse()

	if *instrument == "" || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	iv, err := model.ParseInterval(*ivStr)
	if err != nil {
		log.Fatalf("[barimport] %v", err)
	}
	var targets []model.Interval
	if *resampleStr != "" {
		for _, part := range strings.Split(*resampleStr, ",") {
			t, err := model.ParseInterval(strings.TrimSpace(part))
			if err != nil {
				log.Fatalf("[barimport] -resample: %v", err)
			}
			targets = append(targets, t)
		}
	}

	if dir := filepath.Dir(*dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("[barimport] %v", err)
		}
	}
	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[barimport] %v", err)
	}
	defer w.Close()

	ctx := context.Background()
	total := 0
	for _, path := range flag.Args() {
		start := time.Now()
		bars, err := barfile.Load(path)
		if err != nil {
			log.Fatalf("[barimport] %s: %v", path, err)
		}
		n, err := w.WriteBars(ctx, *instrument, iv, bars)
		if err != nil {
			log.Fatalf("[barimport] %s: %v", path, err)
		}
		total += n
		log.Printf("[barimport] %s: %s bars (%s)", path, humanize.Comma(int64(n)), time.Since(start).Round(time.Millisecond))

		if len(targets) == 0 {
			continue
		}
		derived, err := resample.Bars(iv, targets, bars)
		if err != nil {
			log.Fatalf("[barimport] %v", err)
		}
		for _, t := range targets {
			n, err := w.WriteBars(ctx, *instrument, t, derived[t])
			if err != nil {
				log.Fatalf("[barimport] %s %s: %v", path, t, err)
			}
			log.Printf("[barimport] %s: %s %s bars derived", path, humanize.Comma(int64(n)), t)
		}
	}

	if last, ok, err := w.LastTimestamp(ctx, *instrument, iv); err == nil && ok {
		log.Printf("[barimport] %s %s: %s bars written, newest %s (%s)",
			*instrument, iv, humanize.Comma(int64(total)), last.Format(time.RFC3339), humanize.Time(last))
	}
}
