// Command confluence evaluates the stored bar history once and prints the
// per-pair confluence summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"fx-confluence/internal/confluence"
	"fx-confluence/internal/model"
	sqlitestore "fx-confluence/internal/store/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/bars.db", "Path to SQLite bar database")
	ivStr := flag.String("interval", "1h", "Bar interval: 5m, 15m, 1h or 1d")
	cfgPath := flag.String("config", "", "Engine YAML config (default: built-in)")
	asJSON := flag.Bool("json", false, "Print the full report as JSON")
	flag.Parse()

	iv, err := model.ParseInterval(*ivStr)
	if err != nil {
		log.Fatalf("[confluence] %v", err)
	}

	cfg := confluence.DefaultConfig()
	if *cfgPath != "" {
		if cfg, err = confluence.LoadConfigFile(*cfgPath); err != nil {
			log.Fatalf("[confluence] %v", err)
		}
	}
	engine, err := confluence.NewEngine(cfg)
	if err != nil {
		log.Fatalf("[confluence] %v", err)
	}

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[confluence] %v", err)
	}
	defer reader.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	now := time.Now().UTC()
	from := now.Add(-iv.Lookback())

	ref, err := reader.ReadBars(ctx, cfg.Reference, iv, from)
	if err != nil {
		log.Fatalf("[confluence] %v", err)
	}
	series := make(map[string]model.Series, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		s, err := reader.ReadBars(ctx, p.Key(), iv, from)
		if err != nil {
			log.Fatalf("[confluence] %v", err)
		}
		series[p.Key()] = s
	}

	rep, err := engine.Evaluate(ctx, ref, series)
	if err != nil {
		log.Fatalf("[confluence] evaluate: %v", err)
	}
	rep.Interval = iv
	rep.EvaluatedAt = now

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatalf("[confluence] %v", err)
		}
		return
	}
	printSummary(os.Stdout, rep)
}

func printSummary(w io.Writer, rep *confluence.Report) {
	m := rep.Macro.Result
	maturity := ""
	if !m.Mature {
		maturity = " (immature history)"
	}
	fmt.Fprintf(w, "Macro %s %s: USD %s%s | EMA fast %s | EMA slow %s\n",
		m.Reference, rep.Interval, m.Bias, maturity, model.FormatPrice(m.EMAFast), model.FormatPrice(m.EMASlow))
	fmt.Fprintln(w, m.Advice)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PAIR\tMACRO\tZONE\tCROSS\tDIVERGENCE\tSIGNAL\tCLOSE\tSL\tTP\tATR")
	for _, pr := range rep.Pairs {
		r := pr.Result
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Pair, r.MacroBias, yesNo(r.InZone), yesNo(r.Crossed), r.Divergence, r.Suggestion,
			model.FormatPrice(&r.LastClose), model.FormatPrice(r.StopLoss), model.FormatPrice(r.TakeProfit),
			model.FormatPrice(r.ATR))
	}
	tw.Flush()

	if len(rep.Skipped) > 0 {
		skipped := make([]string, len(rep.Skipped))
		for i, s := range rep.Skipped {
			skipped[i] = s.Pair + " (" + s.Reason + ")"
		}
		fmt.Fprintf(w, "\nskipped: %s\n", strings.Join(skipped, ", "))
	}
	fmt.Fprintf(w, "\nevaluated %s\n", rep.EvaluatedAt.Format(time.RFC3339))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
