// Command talon runs a challenge-aware web crawler: it seeds a
// Frontier with one site, wires Fetcher/Detector/Browser/Solvers into
// a page-acquisition pipeline, and drives an orchestrated worker pool
// until the process is interrupted or a Shutdown command arrives over
// the control plane; an empty frontier does not end the run.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/talonweb/talon/internal/acquire"
	"github.com/talonweb/talon/internal/browser"
	"github.com/talonweb/talon/internal/control"
	"github.com/talonweb/talon/internal/crawl"
	"github.com/talonweb/talon/internal/fetch"
	"github.com/talonweb/talon/internal/links"
	"github.com/talonweb/talon/internal/robots"
	"github.com/talonweb/talon/internal/solve"
	"github.com/talonweb/talon/internal/vision"
)

const (
	cliName = "talon"
	version = "v0.1.0"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp: true,
	})
}

var rootCmd = &cobra.Command{
	Use:   cliName,
	Short: fmt.Sprintf("talon %s - challenge-aware web crawler", version),
	RunE:  run,
}

func main() {
	rootCmd.Flags().StringP("site", "s", "", "Site to crawl (e.g. https://example.com)")
	rootCmd.Flags().IntP("concurrency", "c", 4, "Number of parallel workers")
	rootCmd.Flags().IntP("depth", "d", 0, "MaxDepth (0 = infinite)")
	rootCmd.Flags().DurationP("delay", "k", 0, "Fixed per-host delay between requests")
	rootCmd.Flags().DurationP("timeout", "m", 30*time.Second, "Per-request timeout")
	rootCmd.Flags().Bool("render", true, "Allow browser escalation for challenge pages")
	rootCmd.Flags().Int("render-pool", 2, "Max concurrent browser pages")
	rootCmd.Flags().Bool("solve-challenges", true, "Attempt to solve detected challenges")
	rootCmd.Flags().String("vision-provider", "auto", "Vision Oracle provider: auto, in-page, external")
	rootCmd.Flags().Bool("respect-robots", true, "Honor robots.txt")
	rootCmd.Flags().Bool("allow-subdomains", true, "Treat subdomains of the seed host as in-scope")
	rootCmd.Flags().Int64("max-size-bytes", 0, "Body size cap in bytes (0 = SPIDER_MAX_SIZE_BYTES env, default unlimited)")
	rootCmd.Flags().String("user-agent", "talon/"+version, "User-Agent header")
	rootCmd.Flags().Bool("json", false, "Emit structured JSON lines instead of plain text")
	rootCmd.Flags().Bool("quiet", false, "Suppress non-essential logging")
	rootCmd.Flags().String("control-addr", "", "Address to bind the HTTP control plane on (empty = disabled)")
	rootCmd.Flags().Float64("cpu-threshold", 0.70, "CPU-pressure fraction that swaps to the shared concurrency semaphore")
	rootCmd.Flags().String("output", "", "Append each result as a JSON line to this file (supports ~ expansion)")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

type lineOutput struct {
	Site   string `json:"site"`
	URL    string `json:"url"`
	Status int    `json:"status"`
	Bytes  int64  `json:"bytes"`
}

func run(cmd *cobra.Command, _ []string) error {
	siteRaw, _ := cmd.Flags().GetString("site")
	if siteRaw == "" {
		return fmt.Errorf("--site is required")
	}
	if !strings.Contains(siteRaw, "://") {
		siteRaw = "https://" + siteRaw
	}
	site, err := url.Parse(siteRaw)
	if err != nil {
		return fmt.Errorf("invalid --site: %w", err)
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	if quiet {
		log.SetLevel(logrus.WarnLevel)
	}
	jsonOut, _ := cmd.Flags().GetBool("json")

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	maxDepth, _ := cmd.Flags().GetInt("depth")
	delay, _ := cmd.Flags().GetDuration("delay")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	renderEnabled, _ := cmd.Flags().GetBool("render")
	renderPool, _ := cmd.Flags().GetInt("render-pool")
	solveEnabled, _ := cmd.Flags().GetBool("solve-challenges")
	respectRobots, _ := cmd.Flags().GetBool("respect-robots")
	allowSubs, _ := cmd.Flags().GetBool("allow-subdomains")
	maxSize, _ := cmd.Flags().GetInt64("max-size-bytes")
	userAgent, _ := cmd.Flags().GetString("user-agent")
	controlAddr, _ := cmd.Flags().GetString("control-addr")
	cpuThreshold, _ := cmd.Flags().GetFloat64("cpu-threshold")

	var outFile *os.File
	if outputRaw, _ := cmd.Flags().GetString("output"); outputRaw != "" {
		expanded, err := homedir.Expand(outputRaw)
		if err != nil {
			return fmt.Errorf("talon: expand --output path: %w", err)
		}
		outFile, err = os.OpenFile(expanded, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("talon: open --output file: %w", err)
		}
		defer outFile.Close()
	}

	fetcher := fetch.New(fetch.Options{
		UserAgent:    userAgent,
		Timeout:      timeout,
		MaxBodyBytes: maxSize,
		HTMLOnly:     true,
		CaptureMeta:  true,
	})

	robotsPolicy := robots.New(respectRobots, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pool *browser.Pool
	var solvers *solve.Registry
	if renderEnabled {
		pool, err = browser.NewPool(ctx, renderPool)
		if err != nil {
			log.WithError(err).Warn("talon: browser pool unavailable, challenges will surface as waf_flag only")
			pool = nil
		}
		if pool != nil {
			defer pool.Close()
		}
	}
	if solveEnabled && pool != nil {
		oracle := buildOracle(cmd)
		solvers = solve.NewRegistry(oracle, log)
	}

	acquirer := acquire.New(fetcher, pool, solvers, log)

	cfg := crawl.Config{
		Concurrency:   concurrency,
		DefaultDelay:  delay,
		UserAgent:     userAgent,
		HostPolicy:    links.HostPolicy{AllowSubdomains: allowSubs},
		RespectRobots: respectRobots,
		CPUThreshold:  cpuThreshold,
		MaxDepth:      maxDepth,
	}
	orchestrator := crawl.New(cfg, acquirer, robotsPolicy, log)
	orchestrator.Seed(site)

	if controlAddr != "" {
		plane := control.New(log)
		id := plane.Register(orchestrator.Commands(), cancel)
		log.Infof("talon: control plane listening on %s (target id %s)", controlAddr, id)
		srv := &http.Server{Addr: controlAddr, Handler: plane.Router()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Warn("talon: control plane stopped")
			}
		}()
		defer srv.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("talon: shutdown signal received")
		cancel()
	}()

	go func() {
		for result := range orchestrator.Results() {
			emit(result, jsonOut, site, outFile)
		}
	}()

	orchestrator.Run(ctx)
	return nil
}

func buildOracle(cmd *cobra.Command) vision.Oracle {
	provider, _ := cmd.Flags().GetString("vision-provider")
	external := vision.NewExternalOracle()
	// Tile classification sizes its own per-acquisition semaphore to the
	// tile count (internal/solve's RecaptchaEnterpriseSolver); this one
	// only guards LocateGap, which has no tile count to size against.
	sem := vision.NewSemaphore(1)

	switch provider {
	case "external":
		return external
	case "in-page":
		// An in-page oracle needs a live browser.Session, which only
		// exists once a solver holds a page; the solvers use the oracle
		// passed to solve.NewRegistry and never build an in-page one, so
		// this choice resolves to the external oracle.
		return external
	default:
		return &vision.FallbackOracle{External: external, Bound: sem}
	}
}

func emit(r crawl.Result, jsonOut bool, site *url.URL, outFile *os.File) {
	status := 0
	var nbytes int64
	if r.Record != nil {
		status = r.Record.Status
		nbytes = r.Record.BytesTransferred
	}

	if outFile != nil {
		out := lineOutput{Site: site.String(), URL: r.URL.String(), Status: status, Bytes: nbytes}
		if data, err := jsoniter.MarshalToString(out); err == nil {
			fmt.Fprintln(outFile, data)
		}
	}

	if jsonOut {
		out := lineOutput{Site: site.String(), URL: r.URL.String(), Status: status, Bytes: nbytes}
		if data, err := jsoniter.MarshalToString(out); err == nil {
			fmt.Println(data)
			return
		}
	}
	fmt.Printf("[%d] %s (%d bytes)\n", status, r.URL.String(), nbytes)
}
