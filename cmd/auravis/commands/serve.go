package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/auravis/auravis/pkg/cli"
	"github.com/auravis/auravis/pkg/config"
	"github.com/auravis/auravis/pkg/ingest"
	"github.com/auravis/auravis/pkg/kv"
	"github.com/auravis/auravis/pkg/server"
	"github.com/auravis/auravis/pkg/storage"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the visualization server",
	Long: `Run the HTTP/WebSocket server that turns inbound PCM chunks into
3D visualization frames. Without -c the built-in defaults are used
(listen on 127.0.0.1:8780, no snapshot or export persistence).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// .env first so ${VAR} expansion and AWS credentials see it.
		_ = godotenv.Load()

		cfg := config.Default()
		if serveConfigPath != "" {
			loaded, err := config.Load(serveConfigPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}

		logger, err := setupLogger(cfg.Log)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		hubOpts := []server.HubOption{server.WithHubLogger(logger)}

		store, err := openSnapshotStore(cfg.Snapshots)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
			hubOpts = append(hubOpts, server.WithSnapshotStore(store))
		}

		exportStore, err := openExportStore(cfg.Export)
		if err != nil {
			return err
		}
		if exportStore != nil {
			hubOpts = append(hubOpts, server.WithExportStore(exportStore))
		}

		hub := server.NewHub(cfg.Session, hubOpts...)
		srv := server.New(hub, cfg.Listen, server.WithServerLogger(logger))
		if err := srv.Start(); err != nil {
			return err
		}

		var receiver *ingest.Receiver
		if cfg.RTP.Enabled {
			receiver = ingest.NewReceiver(ingest.Config{
				Listen:      cfg.RTP.Listen,
				PayloadType: cfg.RTP.PayloadType,
				ClockRate:   cfg.RTP.ClockRate,
				SampleRate:  cfg.Session.SampleRate,
				Session:     cfg.RTP.Session,
			}, func(session string, chunk []byte) {
				hub.Process(session, chunk)
			}, ingest.WithLogger(logger))
			if err := receiver.Start(); err != nil {
				srv.Stop(context.Background())
				return err
			}
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		logger.Info("serve: shutting down", "signal", s.String())

		if receiver != nil {
			receiver.Stop()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "configuration file (YAML)")
	rootCmd.AddCommand(serveCmd)
}

func setupLogger(cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "", "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(handler), nil
}

// snapshotStore is the subset of kv stores that need closing on shutdown.
type snapshotStore interface {
	kv.Store
	Close() error
}

func openSnapshotStore(cfg config.SnapshotsConfig) (snapshotStore, error) {
	switch {
	case cfg.InMemory:
		return kv.NewMemory(nil), nil
	case cfg.Dir != "":
		return kv.NewBadger(kv.BadgerOptions{Dir: cfg.Dir})
	default:
		return nil, nil
	}
}

func openExportStore(cfg config.ExportConfig) (storage.FileStore, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "local":
		dir := cfg.Dir
		if dir == "" {
			paths, err := cli.NewPaths("serve")
			if err != nil {
				return nil, err
			}
			if err := paths.EnsureDataDir(); err != nil {
				return nil, err
			}
			dir = paths.DataDir()
		}
		return storage.NewLocal(dir)
	case "s3":
		opts := s3.Options{Region: cfg.Region}
		if opts.Region == "" {
			opts.Region = os.Getenv("AWS_REGION")
		}
		if cfg.Endpoint != "" {
			opts.BaseEndpoint = aws.String(cfg.Endpoint)
			opts.UsePathStyle = true
		}
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			}, nil
		})
		client := s3.New(opts)
		return storage.NewRetry(storage.NewS3(client, cfg.Bucket, cfg.Prefix), 3, gax.Backoff{}), nil
	default:
		return nil, fmt.Errorf("unknown export backend %q", cfg.Backend)
	}
}
