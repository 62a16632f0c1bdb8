// Package sitesafecli wires configuration, storage and services together
// behind the sitesafe command line.
package sitesafecli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elite6108/sitesafe/internal/assets"
	"github.com/elite6108/sitesafe/internal/config"
	"github.com/elite6108/sitesafe/internal/documents"
	"github.com/elite6108/sitesafe/internal/leave"
	"github.com/elite6108/sitesafe/internal/logging"
	"github.com/elite6108/sitesafe/internal/pdfgen"
	"github.com/elite6108/sitesafe/internal/storage"
	"github.com/elite6108/sitesafe/internal/store"
)

type app struct {
	envFile    string
	configPath string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
}

// Execute runs the command line with args.
func Execute(args []string) error {
	root := newRootCmd(os.Stdout)
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:           "sitesafe",
		Short:         "Health and safety records, documents and leave for small contractors",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "setup" {
				return nil
			}
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "path to .env file")
	root.PersistentFlags().StringVar(&a.configPath, "config", "sitesafe.yaml", "path to YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.setupCmd(),
		a.runCmd(),
		a.generateCmd(),
		a.exportCmd(),
		a.staffCmd(),
		a.leaveCmd(),
	)
	return root
}

// init loads .env and the config file, then builds the logger.
func (a *app) init() error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return fmt.Errorf("load %s: %w", a.envFile, err)
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// services is everything a command needs to read and render records.
type services struct {
	store    *store.Store
	files    storage.Store
	docs     *documents.Service
	calendar *leave.Calendar
}

func (s *services) Close() error {
	return s.store.Close()
}

func (a *app) openServices(ctx context.Context) (*services, error) {
	files, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}
	calendar, err := leave.NewCalendar(a.cfg.Leave.YearStartMonth, a.cfg.Leave.BankHolidays)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, a.cfg.DBPath, a.logger)
	if err != nil {
		return nil, err
	}
	fetcher := &assets.Resolver{
		HTTP: assets.NewHTTPFetcher(a.cfg.FetchTimeout(),
			assets.WithAllowedHosts(a.cfg.Documents.AllowedHosts...),
			assets.WithPrivateNetworks(a.cfg.Documents.AllowPrivateNetworks),
		),
		Objects:       files,
		PublicBaseURL: a.cfg.Storage.PublicBaseURL,
	}
	gen := pdfgen.New(fetcher, a.logger,
		pdfgen.WithCompression(a.cfg.Documents.Compress),
		pdfgen.WithParallelFetches(a.cfg.Documents.MaxParallelFetches),
	)
	return &services{
		store:    st,
		files:    files,
		docs:     documents.NewService(st, gen, a.logger, a.cfg.Documents.MaxParallelFetches),
		calendar: calendar,
	}, nil
}

func (a *app) openStorage(ctx context.Context) (storage.Store, error) {
	sc := a.cfg.Storage
	switch sc.Driver {
	case "s3":
		return storage.NewS3(ctx, storage.S3Options{
			Region:         sc.Region,
			Endpoint:       sc.Endpoint,
			ForcePathStyle: sc.ForcePathStyle,
			BucketPrefix:   sc.BucketPrefix,
			PublicBaseURL:  sc.PublicBaseURL,
		})
	case "local":
		secret := []byte(sc.SigningSecret)
		if len(secret) == 0 {
			a.logger.Warn("no signing secret configured; signed links will not survive a restart")
			secret = make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				return nil, err
			}
		}
		return storage.NewLocal(sc.LocalDir, sc.PublicBaseURL, secret)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func writeFile(path string, data []byte) error {
	if path == "" {
		return errors.New("output path is required")
	}
	if err := ensureParentDirs(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func ensureParentDirs(paths ...string) error {
	for _, p := range paths {
		dir := filepath.Dir(p)
		if dir == "." || dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
