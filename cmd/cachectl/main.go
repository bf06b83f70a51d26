package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dvazquezd/StockLens/internal/model"
	"github.com/dvazquezd/StockLens/internal/store"
)

const usage = `cachectl manages the StockLens market-data cache.

Usage:
  cachectl [-db path] <command> [options]

Commands:
  stats                     show cache statistics
  runs [-limit n]           show recent agent runs
  recs [-symbol s] [-limit n]  show recent recommendations
  data -symbol s [-source s] [-interval i] [-limit n]  show cached bars
  reset [-yes]              delete all cached data
`

func main() {
	log.SetFlags(0)

	dbPath := flag.String("db", "data/stocklens.db", "path to the SQLite database")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	defer db.Close()

	switch cmd {
	case "stats":
		err = showStats(db, *dbPath)
	case "runs":
		err = showRuns(db, args)
	case "recs":
		err = showRecommendations(db, args)
	case "data":
		err = showData(db, args)
	case "reset":
		err = resetDatabase(db, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("[FATAL] %s: %v", cmd, err)
	}
}

func showStats(db *store.DB, path string) error {
	stats, err := db.CacheStats()
	if err != nil {
		return err
	}

	fmt.Println("STOCKLENS CACHE STATISTICS")
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("Database:       %s\n", path)
	if fi, err := os.Stat(path); err == nil {
		fmt.Printf("Size:           %.2f MB\n", float64(fi.Size())/(1024*1024))
	}
	fmt.Printf("Total rows:     %d\n", stats.TotalRows)
	fmt.Printf("Unique symbols: %d\n", stats.UniqueSymbols)
	if stats.TotalRows > 0 {
		fmt.Printf("Oldest data:    %s\n", stats.Oldest.Format("2006-01-02 15:04"))
		fmt.Printf("Newest data:    %s\n", stats.Newest.Format("2006-01-02 15:04"))
	}
	return nil
}

func showRuns(db *store.DB, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 10, "number of runs to show")
	fs.Parse(args)

	runs, err := db.AgentRunSummaries(*limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No agent runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tAGENT\tPROVIDER\tPROCESSED\tFAILED\tDURATION\tSTATUS")
	for _, r := range runs {
		provider := r.LLMProvider
		if provider == "" {
			provider = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.Timestamp.Format("2006-01-02 15:04"), r.AgentType, provider,
			r.AssetsProcessed, r.AssetsFailed, r.Duration.Round(10*time.Millisecond), r.Status)
	}
	return w.Flush()
}

func showRecommendations(db *store.DB, args []string) error {
	fs := flag.NewFlagSet("recs", flag.ExitOnError)
	symbol := fs.String("symbol", "", "filter by symbol")
	limit := fs.Int("limit", 20, "number of recommendations to show")
	fs.Parse(args)

	recs, err := db.RecommendationHistory(*symbol, *limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No recommendations found.")
		return nil
	}

	for _, r := range recs {
		fmt.Println(strings.Repeat("-", 60))
		fmt.Printf("Date:           %s\n", r.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Printf("Symbol:         %s\n", r.Symbol)
		fmt.Printf("Recommendation: %s\n", strings.ToUpper(r.Recommendation))
		if r.Price > 0 {
			fmt.Printf("Price:          %.2f\n", r.Price)
		}
		if r.LLMProvider != "" {
			fmt.Printf("Agent:          %s (%s/%s)\n", r.AgentType, r.LLMProvider, r.LLMModel)
		} else {
			fmt.Printf("Agent:          %s\n", r.AgentType)
		}
		fmt.Printf("Rationale:      %s\n", r.Rationale)
	}
	return nil
}

func showData(db *store.DB, args []string) error {
	fs := flag.NewFlagSet("data", flag.ExitOnError)
	symbol := fs.String("symbol", "", "symbol to show (required)")
	source := fs.String("source", "binance", "data source")
	interval := fs.String("interval", "1d", "bar interval")
	limit := fs.Int("limit", 10, "number of bars to show")
	fs.Parse(args)

	if *symbol == "" {
		return fmt.Errorf("-symbol is required")
	}
	key := model.SeriesKey{
		Symbol:   *symbol,
		Source:   model.Source(*source),
		Interval: model.Interval(*interval),
	}

	candles, err := db.ReadCandles(key, nil, nil, *limit)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		fmt.Printf("No data found for %s\n", key)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME")
	for _, c := range candles {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.0f\n",
			c.Time.Format("2006-01-02 15:04"), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	meta, err := db.LatestMeta(key)
	if err != nil {
		return err
	}
	if meta != nil {
		fmt.Printf("\nTotal rows in database: %d\n", meta.Rows)
	}
	return nil
}

func resetDatabase(db *store.DB, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	fs.Parse(args)

	if !*yes {
		fmt.Print("This deletes ALL cached data, signals and recommendations. Continue? [y/N] ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if s := strings.ToLower(strings.TrimSpace(line)); s != "y" && s != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := db.Reset(); err != nil {
		return err
	}
	fmt.Println("Database reset.")
	return nil
}
