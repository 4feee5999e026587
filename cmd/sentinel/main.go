package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"

	"github.com/krchat/sentinel/consumer"
	"github.com/krchat/sentinel/dedupestore"
	"github.com/krchat/sentinel/enforce"
	"github.com/krchat/sentinel/engine"
	"github.com/krchat/sentinel/fetch"
	"github.com/krchat/sentinel/phash"
	"github.com/krchat/sentinel/repeatstore"
	"github.com/krchat/sentinel/ruleset"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "sentinel",
		Usage:   "abuse detection and enforcement daemon",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "gateway-host",
			Usage:   "websocket URL of the gateway event stream",
			Value:   "ws://localhost:3990/events",
			EnvVars: []string{"SENTINEL_GATEWAY_HOST"},
		},
		&cli.StringFlag{
			Name:    "enforcer-url",
			Usage:   "base URL of the gateway action API; empty runs in shadow mode",
			EnvVars: []string{"SENTINEL_ENFORCER_URL"},
		},
		&cli.StringFlag{
			Name:    "rules-path",
			Usage:   "path to the JSON rule bundle",
			Value:   "rules.json",
			EnvVars: []string{"SENTINEL_RULES_PATH"},
		},
		&cli.StringFlag{
			Name:    "refs-dir",
			Usage:   "directory of known-bad avatar reference images",
			Value:   "refs",
			EnvVars: []string{"SENTINEL_REFS_DIR"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for shared state; empty uses in-process stores",
			EnvVars: []string{"SENTINEL_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "webhook-url",
			Usage:   "incoming webhook URL for decision notifications; empty logs instead",
			EnvVars: []string{"SENTINEL_WEBHOOK_URL"},
		},
		&cli.IntFlag{
			Name:    "window-days",
			Usage:   "only accounts which joined within this many days are scored",
			Value:   50,
			EnvVars: []string{"SENTINEL_WINDOW_DAYS"},
		},
		&cli.IntFlag{
			Name:    "timeout-hours",
			Usage:   "duration of the timeout sanction",
			Value:   24,
			EnvVars: []string{"SENTINEL_TIMEOUT_HOURS"},
		},
		&cli.Int64SliceFlag{
			Name:    "monitored-channels",
			Usage:   "channel ids subject to keyword detection",
			EnvVars: []string{"SENTINEL_MONITORED_CHANNELS"},
		},
		&cli.Int64SliceFlag{
			Name:    "qr-channels",
			Usage:   "channel ids subject to QR attachment scanning",
			EnvVars: []string{"SENTINEL_QR_CHANNELS"},
		},
		&cli.Int64SliceFlag{
			Name:    "log-only-channels",
			Usage:   "channel ids monitored but never enforced against",
			EnvVars: []string{"SENTINEL_LOG_ONLY_CHANNELS"},
		},
		&cli.StringFlag{
			Name:    "policy-message",
			Usage:   "policy verb for message detections (log, delete, timeout, delete_timeout)",
			Value:   "log",
			EnvVars: []string{"SENTINEL_POLICY_MESSAGE"},
		},
		&cli.StringFlag{
			Name:    "policy-thread",
			Usage:   "policy verb for thread detections",
			Value:   "log",
			EnvVars: []string{"SENTINEL_POLICY_THREAD"},
		},
		&cli.StringFlag{
			Name:    "policy-qr",
			Usage:   "policy verb for QR detections",
			Value:   "log",
			EnvVars: []string{"SENTINEL_POLICY_QR"},
		},
		&cli.StringFlag{
			Name:    "policy-avatar",
			Usage:   "policy verb for avatar match detections",
			Value:   "log",
			EnvVars: []string{"SENTINEL_POLICY_AVATAR"},
		},
		&cli.BoolFlag{
			Name:    "ban-on-qr",
			EnvVars: []string{"SENTINEL_BAN_ON_QR"},
		},
		&cli.BoolFlag{
			Name:    "ban-on-strict",
			EnvVars: []string{"SENTINEL_BAN_ON_STRICT"},
		},
		&cli.BoolFlag{
			Name:    "ban-on-normal",
			EnvVars: []string{"SENTINEL_BAN_ON_NORMAL"},
		},
		&cli.IntFlag{
			Name:    "phash-threshold",
			Usage:   "maximum Hamming distance counted as an avatar match",
			Value:   8,
			EnvVars: []string{"SENTINEL_PHASH_THRESHOLD"},
		},
		&cli.IntFlag{
			Name:    "phash-cooldown-hours",
			Usage:   "minimum spacing between on-demand avatar checks per account",
			Value:   6,
			EnvVars: []string{"SENTINEL_PHASH_COOLDOWN_HOURS"},
		},
		&cli.Int64Flag{
			Name:    "phash-concurrency",
			Usage:   "max simultaneous avatar fetch+hash operations",
			Value:   3,
			EnvVars: []string{"SENTINEL_PHASH_CONCURRENCY"},
		},
		&cli.Int64Flag{
			Name:    "qr-max-bytes",
			Usage:   "attachments above this size are not fetched for QR scanning",
			Value:   5 << 20,
			EnvVars: []string{"SENTINEL_QR_MAX_BYTES"},
		},
		&cli.BoolFlag{
			Name:    "qr-exclude-gif",
			Usage:   "skip GIF attachments during QR scanning",
			Value:   true,
			EnvVars: []string{"SENTINEL_QR_EXCLUDE_GIF"},
		},
		&cli.Int64Flag{
			Name:    "qr-concurrency",
			Usage:   "max simultaneous QR fetch+decode operations",
			Value:   2,
			EnvVars: []string{"SENTINEL_QR_CONCURRENCY"},
		},
		&cli.IntFlag{
			Name:    "parallelism",
			Usage:   "number of concurrent event workers",
			Value:   8,
			EnvVars: []string{"SENTINEL_PARALLELISM"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"SENTINEL_METRICS_LISTEN"},
		},
	},
	Action: runAction,
}

func runAction(cctx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := engine.EngineConfig{
		WindowDays:        cctx.Int("window-days"),
		TimeoutDuration:   time.Duration(cctx.Int("timeout-hours")) * time.Hour,
		MonitoredChannels: cctx.Int64Slice("monitored-channels"),
		QRChannels:        cctx.Int64Slice("qr-channels"),
		LogOnlyChannels:   cctx.Int64Slice("log-only-channels"),
		PolicyMessage:     cctx.String("policy-message"),
		PolicyThread:      cctx.String("policy-thread"),
		PolicyQR:          cctx.String("policy-qr"),
		PolicyAvatar:      cctx.String("policy-avatar"),
		BanOnQR:           cctx.Bool("ban-on-qr"),
		BanOnStrict:       cctx.Bool("ban-on-strict"),
		BanOnNormal:       cctx.Bool("ban-on-normal"),
		PhashThreshold:    cctx.Int("phash-threshold"),
		PhashCooldown:     time.Duration(cctx.Int("phash-cooldown-hours")) * time.Hour,
		PhashConcurrency:  cctx.Int64("phash-concurrency"),
		QRMaxBytes:        cctx.Int64("qr-max-bytes"),
		QRExcludeGIF:      cctx.Bool("qr-exclude-gif"),
		QRConcurrency:     cctx.Int64("qr-concurrency"),
	}
	for _, verb := range []string{cfg.PolicyMessage, cfg.PolicyThread, cfg.PolicyQR, cfg.PolicyAvatar} {
		if !engine.ValidVerb(verb) {
			return fmt.Errorf("invalid policy verb: %q", verb)
		}
	}

	// missing or malformed rules are fatal; everything downstream depends on them
	rules, err := ruleset.LoadFromFileJSON(cctx.String("rules-path"))
	if err != nil {
		return fmt.Errorf("loading rule bundle: %w", err)
	}

	refs, err := phash.LoadDir(cctx.String("refs-dir"), logger)
	if err != nil {
		return fmt.Errorf("loading reference hashes: %w", err)
	}

	eng := engine.NewEngine(logger, rules, cfg)
	eng.Refs = refs
	eng.Fetcher = fetch.NewClient(logger)

	if redisURL := cctx.String("redis-url"); redisURL != "" {
		dedupe, err := dedupestore.NewRedisDedupeStore(redisURL)
		if err != nil {
			return fmt.Errorf("connecting dedup store: %w", err)
		}
		repeats, err := repeatstore.NewRedisRepeatStore(redisURL)
		if err != nil {
			return fmt.Errorf("connecting repeat store: %w", err)
		}
		eng.Dedupe = dedupe
		eng.Repeats = repeats
	} else {
		eng.Dedupe = dedupestore.NewMemDedupeStore(0)
		eng.Repeats = repeatstore.NewMemRepeatStore()
	}

	if enforcerURL := cctx.String("enforcer-url"); enforcerURL != "" {
		eng.Enforcer = enforce.NewHTTPEnforcer(enforcerURL, fetch.RobustHTTPClient(logger))
	} else {
		logger.Info("no enforcer configured, running in shadow mode")
		eng.Enforcer = &enforce.NoopEnforcer{Logger: logger}
	}

	if webhookURL := cctx.String("webhook-url"); webhookURL != "" {
		eng.Notifier = &engine.WebhookNotifier{WebhookURL: webhookURL, HTTPClient: fetch.RobustHTTPClient(logger)}
	} else {
		eng.Notifier = &engine.SlogNotifier{Logger: logger}
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := cctx.String("metrics-listen")
		logger.Info("metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics listener failed", "err", err)
		}
	}()

	con := &consumer.EventConsumer{
		Logger:      logger,
		Engine:      eng,
		Host:        cctx.String("gateway-host"),
		Parallelism: cctx.Int("parallelism"),
	}
	logger.Info("starting sentinel", "version", versioninfo.Short(), "gateway", con.Host)
	return con.Run(ctx)
}
