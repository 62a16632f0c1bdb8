package sitesafecli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elite6108/sitesafe/internal/apiapp"
	"github.com/elite6108/sitesafe/internal/config"
	"github.com/elite6108/sitesafe/internal/documents"
	"github.com/elite6108/sitesafe/internal/leave"
	"github.com/elite6108/sitesafe/internal/security"
	"github.com/elite6108/sitesafe/internal/spreadsheet"
	"github.com/elite6108/sitesafe/internal/store"
)

func (a *app) setupCmd() *cobra.Command {
	var (
		username string
		password string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Hash the admin password and write a .env file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--admin-password is required")
			}
			hash, err := security.HashPassword(password)
			if err != nil {
				return fmt.Errorf("invalid admin password: %w", err)
			}
			secret, err := randomSecret()
			if err != nil {
				return err
			}
			defaults := config.Default()
			values := map[string]string{
				"SITESAFE_ADDR":                defaults.Addr,
				"SITESAFE_ADMIN_USERNAME":      username,
				"SITESAFE_DB_PATH":             defaults.DBPath,
				"SITESAFE_ADMIN_PASSWORD_HASH": hash,
				"SITESAFE_STORAGE_DRIVER":      defaults.Storage.Driver,
				"SITESAFE_STORAGE_DIR":         defaults.Storage.LocalDir,
				"SITESAFE_PUBLIC_BASE_URL":     defaults.Storage.PublicBaseURL,
				"SITESAFE_SIGNING_SECRET":      secret,
				"SITESAFE_LOG_LEVEL":           defaults.Logging.Level,
			}
			if err := ensureParentDirs(a.envFile); err != nil {
				return err
			}
			if err := config.WriteDotEnv(a.envFile, values, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", a.envFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "admin-username", "admin", "initial admin username")
	cmd.Flags().StringVar(&password, "admin-password", "", "admin password (min 12 chars)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing env file")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			svc, err := a.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			if a.cfg.AdminPasswordHash == "" {
				a.logger.Warn("no admin password hash configured; destructive operations are disabled")
			}
			err = apiapp.Run(ctx, a.cfg.Addr, apiapp.Config{
				AdminPasswordHash: a.cfg.AdminPasswordHash,
				MaxUploadBytes:    a.cfg.Storage.MaxUploadBytes,
				SignedURLTTL:      a.cfg.SignedURLTTL(),
				Calendar:          svc.calendar,
				DefaultAllowance:  a.cfg.Leave.DefaultAllowance,
			}, apiapp.Deps{
				Store:     svc.store,
				Files:     svc.files,
				Documents: svc.docs,
				Logger:    a.logger,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func (a *app) generateCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "generate <kind> <id>",
		Short: "Render one document to a PDF file",
		Long:  "Render one document to a PDF file. Kind is one of incidents, risk-assessments, sign-offs or dse-assessments.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := documents.ParseKind(args[0])
			if err != nil {
				return err
			}
			svc, err := a.openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.docs.Generate(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			if out == "" {
				out = result.FileName
			}
			if err := writeFile(out, result.PDF); err != nil {
				return err
			}
			for _, skipped := range result.Skipped() {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped %s %s: %s\n", skipped.Role, skipped.Source, skipped.Reason)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d pages)\n", out, result.Pages)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: the document's file name)")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every document and the file manifest to a tar.xz bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			var buf bytes.Buffer
			manifest, err := svc.docs.ExportBundle(cmd.Context(), &buf, time.Now())
			if err != nil {
				return err
			}
			if err := writeFile(out, buf.Bytes()); err != nil {
				return err
			}
			failed := 0
			for _, entry := range manifest.Documents {
				if entry.Error != "" {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "failed %s %s: %s\n", entry.Kind, entry.ID, entry.Error)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d documents, %d failed, %d files)\n",
				out, len(manifest.Documents), failed, len(manifest.Files))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "sitesafe-documents.tar.xz", "output bundle")
	return cmd
}

func (a *app) staffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.xlsx|file.xls>",
		Short: "Import staff from a spreadsheet, skipping emails that already exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			rows, err := spreadsheet.ParseStaff(f, args[0], a.cfg.Leave.DefaultAllowance)
			if err != nil {
				return err
			}

			svc, err := a.openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			created, skipped := 0, 0
			for i := range rows {
				member := &rows[i]
				if member.Email != "" {
					_, err := svc.store.StaffByEmail(cmd.Context(), member.Email)
					if err == nil {
						skipped++
						continue
					}
					if !errors.Is(err, store.ErrNotFound) {
						return err
					}
				}
				if err := svc.store.Staff.Create(cmd.Context(), member); err != nil {
					return err
				}
				created++
			}
			a.logger.Info("staff imported", zap.String("file", args[0]), zap.Int("created", created), zap.Int("skipped", skipped))
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, skipped %d\n", created, skipped)
			return nil
		},
	})
	return cmd
}

func (a *app) leaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leave",
		Short: "Annual leave reports",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Write the leave register and allowance summary to a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			staff, err := svc.store.Staff.List(cmd.Context())
			if err != nil {
				return err
			}
			requests, err := svc.store.Leave.List(cmd.Context())
			if err != nil {
				return err
			}
			now := time.Now()
			summaries := make([]leave.Summary, 0, len(staff))
			for _, member := range staff {
				summaries = append(summaries, svc.calendar.Summarise(member, requests, now))
			}
			var buf bytes.Buffer
			if err := spreadsheet.WriteLeaveRegister(&buf, staff, requests, summaries); err != nil {
				return err
			}
			if err := writeFile(args[0], buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d requests)\n", args[0], len(requests))
			return nil
		},
	})
	return cmd
}
