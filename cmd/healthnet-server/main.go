package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/healthnet/healthnet/internal/config"
	"github.com/healthnet/healthnet/internal/domain/admin"
	"github.com/healthnet/healthnet/internal/platform/blobstore"
	"github.com/healthnet/healthnet/internal/platform/db"
	"github.com/healthnet/healthnet/migrations"
)

const version = "1.0.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:          "healthnet-server",
		Short:        "HealthNet national EHR API server",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load env file %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file before reading config")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(adminCmd())
	root.AddCommand(storageCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HealthNet API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// loadConfig reads and validates configuration for CLI subcommands.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func migrationsFS(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			to, _ := cmd.Flags().GetInt("to")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationsFS(dir)).UpTo(ctx, to)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies everything)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationsFS(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	var in admin.CreateAdminInput
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			app, err := newApp(ctx, cfg, newLogger(cfg.IsDev()))
			if err != nil {
				return err
			}
			defer app.Close()

			created, err := app.admins.CreateAdmin(ctx, in)
			if err != nil {
				return err
			}
			fmt.Printf("Created admin %s (user %s, %s)\n", created.Admin.ID, created.User.ID, created.User.Email)
			return nil
		},
	}
	createCmd.Flags().StringVar(&in.Email, "email", "", "Login email")
	createCmd.Flags().StringVar(&in.Password, "password", "", "Initial password")
	createCmd.Flags().StringVar(&in.FirstName, "first-name", "", "First name")
	createCmd.Flags().StringVar(&in.LastName, "last-name", "", "Last name")
	for _, f := range []string{"email", "password", "first-name", "last-name"} {
		_ = createCmd.MarkFlagRequired(f)
	}

	cmd.AddCommand(createCmd)
	return cmd
}

func storageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Manage uploaded files",
	}

	var dryRun bool
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Copy local uploads to the S3 bucket and rewrite stored URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.S3Bucket == "" || cfg.S3Region == "" {
				return fmt.Errorf("S3_BUCKET and S3_REGION are required to migrate files")
			}

			ctx := context.Background()
			src, err := blobstore.NewLocalStore(cfg.UploadDir, cfg.UploadURLPrefix)
			if err != nil {
				return err
			}
			dst, err := blobstore.NewS3Store(ctx, s3Config(cfg))
			if err != nil {
				return err
			}

			app, err := newAppWithStore(ctx, cfg, newLogger(cfg.IsDev()), dst)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := migrateFiles(ctx, src, dst, fileIndexes(app), dryRun)
			if err != nil {
				return err
			}
			for _, r := range report.Results {
				switch {
				case r.Err != nil:
					fmt.Printf("FAIL  %s: %v\n", r.Key, r.Err)
				case r.Skipped:
					fmt.Printf("SKIP  %s (already in bucket)\n", r.Key)
				default:
					fmt.Printf("COPY  %s -> %s\n", r.OldURL, r.NewURL)
				}
			}
			fmt.Printf("%d file(s), %d failed, %d row(s) rewritten", len(report.Results), report.Failed, report.Rewritten)
			if dryRun {
				fmt.Print(" (dry run)")
			}
			fmt.Println()
			if report.Failed > 0 {
				return fmt.Errorf("%d file(s) failed to migrate", report.Failed)
			}
			return nil
		},
	}
	migrate.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be copied without writing anything")

	cmd.AddCommand(migrate)
	return cmd
}
