package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"airdiscount/internal/api"
	"airdiscount/internal/client"
	"airdiscount/internal/common"
)

const defaultAddr = "http://localhost:8000"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "health":
		runHealth(args)
	case "version":
		runVersion(args)
	case "model-info":
		runModelInfo(args)
	case "predict":
		runPredict(args)
	case "history":
		runHistory(args)
	case "insights":
		runInsights(args)
	case "heuristic":
		runHeuristic(args)
	case "generate":
		runGenerate(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: discountctl <command> [flags]

Commands:
  health      Check service health
  version     Print the service version
  model-info  Show the served model snapshot
  predict     Score feature records from a JSON file or stdin
  history     List recent journaled predictions
  insights    Aggregate stats for a stored route
  heuristic   Rule-based discount for a stored route
  generate    Run the synthetic data generator on the server

Run 'discountctl <command> -h' for command flags.
`)
}

// clientFlags registers the flags every command shares.
func clientFlags(fs *flag.FlagSet) (addr *string, timeout *time.Duration) {
	addr = fs.String("addr", defaultAddr, "Service base URL")
	timeout = fs.Duration("timeout", 30*time.Second, "Request timeout")
	return addr, timeout
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "discountctl:", err)
	os.Exit(1)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(out))
}

func runHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr, timeout := clientFlags(fs)
	fs.Parse(args)

	status, err := client.New(*addr, *timeout).Health()
	if err != nil {
		fatal(err)
	}
	fmt.Println(status)
}

func runVersion(args []string) {
	fs := flag.NewFlagSet("version", flag.ExitOnError)
	addr, timeout := clientFlags(fs)
	fs.Parse(args)

	version, err := client.New(*addr, *timeout).Version()
	if err != nil {
		fatal(err)
	}
	fmt.Println(version)
}

func runModelInfo(args []string) {
	fs := flag.NewFlagSet("model-info", flag.ExitOnError)
	addr, timeout := clientFlags(fs)
	fs.Parse(args)

	info, err := client.New(*addr, *timeout).ModelInfo()
	if err != nil {
		fatal(err)
	}
	printJSON(info)
}

func runPredict(args []string) {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	addr, timeout := clientFlags(fs)
	file := fs.String("file", "", "JSON file with feature records (default: read stdin)")
	fs.Parse(args)

	raw, err := readInput(*file)
	if err != nil {
		fatal(err)
	}
	records, err := parseRecords(raw)
	if err != nil {
		fatal(err)
	}

	resp, err := client.New(*addr, *timeout).Predict(records)
	if err != nil {
		fatal(err)
	}
	printJSON(resp)
}

func readInput(file string) ([]byte, error) {
	if file != "" {
		return os.ReadFile(file)
	}
	return io.ReadAll(os.Stdin)
}

// parseRecords accepts either a bare JSON array of records or the full
// request form {"records": [...]}.
func parseRecords(raw []byte) ([]map[string]any, error) {
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}
	var req api.PredictRequest
	if err := json.Unmarshal(raw, &req); err != nil || len(req.Records) == 0 {
		return nil, fmt.Errorf("input must be a JSON array of records or {\"records\": [...]}")
	}
	return req.Records, nil
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	addr, timeout := clientFlags(fs)
	limit := fs.Int("limit", 0, "Records to return (default: server default)")
	fs.Parse(args)

	resp, err := client.New(*addr, *timeout).History(*limit)
	if err != nil {
		fatal(err)
	}
	printJSON(resp)
}

func runInsights(args []string) {
	fs := flag.NewFlagSet("insights", flag.ExitOnError)
	addr, timeout := clientFlags(fs)
	routeID := fs.Int64("route", 0, "Route ID (required)")
	fs.Parse(args)

	if *routeID <= 0 {
		fatal(fmt.Errorf("a positive -route is required"))
	}
	resp, err := client.New(*addr, *timeout).RouteInsights(*routeID)
	if err != nil {
		fatal(err)
	}
	printJSON(resp)
}

func runHeuristic(args []string) {
	fs := flag.NewFlagSet("heuristic", flag.ExitOnError)
	addr, timeout := clientFlags(fs)
	routeID := fs.Int64("route", 0, "Route ID (required)")
	history := fs.String("history", "{}", "Travel history JSON, e.g. '{\"flights\": 10}'")
	fs.Parse(args)

	if *routeID <= 0 {
		fatal(fmt.Errorf("a positive -route is required"))
	}
	var travelHistory map[string]any
	if err := json.Unmarshal([]byte(*history), &travelHistory); err != nil {
		fatal(fmt.Errorf("invalid -history JSON: %w", err))
	}

	resp, err := client.New(*addr, *timeout).HeuristicDiscount(*routeID, travelHistory)
	if err != nil {
		fatal(err)
	}
	printJSON(resp)
}

func runGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	addr, timeout := clientFlags(fs)
	size := fs.Int("size", common.DefaultSynthSize, "Records per collection")
	seed := fs.Int("seed", common.DefaultSynthSeed, "Random seed")
	modelDir := fs.String("model-dir", "", "Schema directory (default: server default)")
	outDir := fs.String("out-dir", "", "Output directory on the server (default: server default)")
	fs.Parse(args)

	req := api.GenerateRequest{
		ModelDir: *modelDir,
		OutDir:   *outDir,
		Size:     size,
		Seed:     seed,
	}
	resp, err := client.New(*addr, *timeout).SynthGenerate(req)
	if err != nil {
		fatal(err)
	}
	printJSON(resp)
}
