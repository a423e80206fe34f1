package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tainamorais/clinica-agenda/internal/app"
	"github.com/tainamorais/clinica-agenda/internal/backup"
	"github.com/tainamorais/clinica-agenda/internal/config"
	"github.com/tainamorais/clinica-agenda/internal/dates"
	"github.com/tainamorais/clinica-agenda/internal/logger"
	"github.com/tainamorais/clinica-agenda/internal/server"
	"github.com/tainamorais/clinica-agenda/internal/slots"
	"github.com/tainamorais/clinica-agenda/internal/store"
	"github.com/tainamorais/clinica-agenda/internal/worker"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinica-agenda",
		Short:        "Clinic scheduling API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(slotsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// deps are the long-lived resources shared by the commands.
type deps struct {
	cfg    *config.Config
	log    *zap.Logger
	loc    *time.Location
	pool   *pgxpool.Pool
	pg     *store.Postgres
	store  store.Store
	redis  *goredis.Client
	mirror *store.Mirrored
}

func (d *deps) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
	_ = d.log.Sync()
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func setup(ctx context.Context) (*deps, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	d := &deps{cfg: cfg, log: log, loc: loc}

	d.pool, err = store.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		d.Close()
		return nil, err
	}
	log.Info("connected to database")
	d.pg = store.NewPostgres(d.pool)
	d.store = d.pg

	if cfg.MirrorEnabled() {
		d.redis, err = store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.mirror = store.NewMirrored(d.pg, store.NewRedisMirror(d.redis), log)
		d.store = d.mirror
		log.Info("redis mirror enabled", zap.String("addr", cfg.RedisAddr))
	}
	return d, nil
}

// backupRunner returns nil when the storage bucket is not configured.
func (d *deps) backupRunner() (*backup.Runner, error) {
	if d.cfg.SupabaseURL == "" || d.cfg.SupabaseServiceKey == "" {
		return nil, nil
	}
	client, err := backup.NewSupabaseClient(d.cfg.SupabaseURL, d.cfg.SupabaseServiceKey)
	if err != nil {
		return nil, err
	}
	bucket := backup.NewSupabaseBucket(client, d.cfg.BackupBucket)
	return backup.NewRunner(d.pg, bucket, store.DumpTables, d.log), nil
}

// calendar returns the Google Calendar busy source, or nil when it is not
// configured or cannot be reached.
func (d *deps) calendar(ctx context.Context) app.BusySource {
	if !d.cfg.CalendarEnabled() {
		return nil
	}
	gc, err := app.NewGoogleCalendar(ctx, d.cfg.GoogleClientID, d.cfg.GoogleClientSecret, d.cfg.GoogleRefreshToken, d.cfg.GoogleCalendarID, d.loc)
	if err != nil {
		d.log.Warn("google calendar disabled", zap.Error(err))
		return nil
	}
	d.log.Info("google calendar busy time enabled", zap.String("calendar", d.cfg.GoogleCalendarID))
	return gc
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

func runServer(ctx context.Context) error {
	d, err := setup(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	a := &app.App{
		Store:        d.store,
		Logger:       d.log,
		Location:     d.loc,
		BackupSecret: d.cfg.BackupCronSecret,
		Production:   d.cfg.IsProduction(),
		Pool:         d.pool,
		Redis:        d.redis,
		OAuth:        app.NewOAuthConfig(d.cfg.GoogleClientID, d.cfg.GoogleClientSecret, d.cfg.GoogleRedirectURL),
	}

	runner, err := d.backupRunner()
	if err != nil {
		return err
	}
	if runner != nil {
		a.Backup = runner
	} else {
		d.log.Warn("backup storage not configured, /api/backup is disabled")
	}

	a.Busy = d.calendar(ctx)

	// the mirror must match the primary before the router takes writes
	if d.mirror != nil {
		syncCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		err := d.mirror.Sync(syncCtx)
		cancel()
		if err != nil {
			d.log.Warn("initial mirror sync failed", zap.Error(err))
		}
	}

	return server.Run(ctx, ":"+d.cfg.Port, a.Router(d.cfg), d.log)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(fn func(*store.Migrator) error) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		m, err := store.NewMigrator(cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer m.Close()
		return fn(m)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *store.Migrator) error {
				if err := m.Up(); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Println("Migrations applied.")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *store.Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Printf("version %d (dirty: %t)\n", v, dirty)
				return nil
			})
		},
	})

	return cmd
}

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Take a backup snapshot now",
		RunE: func(cmd *cobra.Command, args []string) error {
			enqueue, _ := cmd.Flags().GetBool("enqueue")
			ctx := context.Background()

			if enqueue {
				cfg, log, err := loadConfig()
				if err != nil {
					return err
				}
				if cfg.RedisAddr == "" {
					return errors.New("--enqueue requires REDIS_ADDR")
				}
				client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
				defer client.Close()
				info, err := worker.Enqueue(ctx, client)
				if err != nil {
					return err
				}
				log.Info("backup enqueued", zap.String("task_id", info.ID))
				return nil
			}

			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.Close()
			runner, err := d.backupRunner()
			if err != nil {
				return err
			}
			if runner == nil {
				return errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for backups")
			}
			res, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Backup written to %s\n", res.Prefix)
			return nil
		},
	}
	cmd.Flags().Bool("enqueue", false, "Hand the backup to a running worker instead of running it here")
	return cmd
}

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the scheduled backup worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.Close()
			if d.cfg.RedisAddr == "" {
				return errors.New("worker requires REDIS_ADDR")
			}
			runner, err := d.backupRunner()
			if err != nil {
				return err
			}
			if runner == nil {
				return errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for backups")
			}
			return worker.Run(ctx, worker.Options{
				RedisAddr:     d.cfg.RedisAddr,
				RedisPassword: d.cfg.RedisPassword,
				RedisDB:       d.cfg.RedisDB,
				Schedule:      d.cfg.BackupSchedule,
				Location:      d.loc,
				Concurrency:   concurrency,
			}, runner, d.log)
		},
	}
	cmd.Flags().Int("concurrency", 2, "Number of tasks processed in parallel")
	return cmd
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the free start times for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			duration, _ := cmd.Flags().GetInt("duration")
			if !slots.ValidDuration(duration) {
				return fmt.Errorf("--duration must be 30, 60 or 120")
			}

			ctx := context.Background()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if date == "" {
				date = dates.Today(d.loc)
			}
			day, err := dates.Parse(date, d.loc)
			if err != nil {
				return err
			}
			a := &app.App{Store: d.store, Logger: d.log, Location: d.loc}
			a.Busy = d.calendar(ctx)
			dd, err := a.LoadDay(ctx, day)
			if err != nil {
				return err
			}

			free := slots.Available(dd.Day, duration)
			if len(free) == 0 {
				fmt.Printf("%s: no free %d-minute slots\n", date, duration)
				return nil
			}
			fmt.Printf("%s (%d min): %s\n", date, duration, strings.Join(free, " "))
			return nil
		},
	}
	cmd.Flags().String("date", "", "Date as YYYY-MM-DD (default today)")
	cmd.Flags().Int("duration", slots.DefaultDuration, "Appointment length in minutes")
	return cmd
}
