package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/generallabsolutions/crm-backend/internal/activities"
	"github.com/generallabsolutions/crm-backend/internal/audit"
	"github.com/generallabsolutions/crm-backend/internal/auth"
	"github.com/generallabsolutions/crm-backend/internal/config"
	"github.com/generallabsolutions/crm-backend/internal/database"
	"github.com/generallabsolutions/crm-backend/internal/jobs"
	"github.com/generallabsolutions/crm-backend/internal/leads"
	"github.com/generallabsolutions/crm-backend/internal/logging"
	"github.com/generallabsolutions/crm-backend/internal/notes"
	"github.com/generallabsolutions/crm-backend/internal/seed"
	"github.com/generallabsolutions/crm-backend/internal/server"
	"github.com/generallabsolutions/crm-backend/internal/tasks"
	"github.com/generallabsolutions/crm-backend/internal/users"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "crm-api",
		Short: "CRM backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("audit-query-limit", defaults.GetInt("audit.query_limit"), "Maximum log entries returned per query")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("signing-secret", "", "Session token signing secret (overrides env)")
	cmd.PersistentFlags().String("api-key", "", "Dashboard API key for session issuance (overrides env)")
	cmd.PersistentFlags().Bool("seed-sample-data", defaults.GetBool("seed.sample_data"), "Insert demo data into an empty database")
	cmd.PersistentFlags().Bool("jobs-enabled", defaults.GetBool("jobs.enabled"), "Run the background scheduler")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "audit.query_limit", "audit-query-limit")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.api_key", "api-key")
	bindFlag(cmd, "seed.sample_data", "seed-sample-data")
	bindFlag(cmd, "jobs.enabled", "jobs-enabled")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	feed := server.NewEventFeed()

	auditService, err := audit.NewService(audit.ServiceConfig{
		Database:   db,
		Logger:     logger,
		Notifier:   feed,
		QueryLimit: appConfig.AuditQueryLimit,
	})
	if err != nil {
		return err
	}

	userService, err := users.NewService(db)
	if err != nil {
		return err
	}
	if err := userService.EnsureDefaultTeam(ctx); err != nil {
		return err
	}
	responsibles, err := userService.ResponsibleNames(ctx)
	if err != nil {
		return err
	}

	leadService, err := leads.NewService(leads.ServiceConfig{
		Database:     db,
		Audit:        auditService,
		Logger:       logger,
		Responsibles: responsibles,
	})
	if err != nil {
		return err
	}
	taskService, err := tasks.NewService(tasks.ServiceConfig{Database: db, Audit: auditService, Logger: logger})
	if err != nil {
		return err
	}
	activityService, err := activities.NewService(activities.ServiceConfig{Database: db, Audit: auditService, Logger: logger})
	if err != nil {
		return err
	}
	noteService, err := notes.NewService(notes.ServiceConfig{Database: db, Audit: auditService, Logger: logger})
	if err != nil {
		return err
	}

	if appConfig.SeedSampleData {
		if err := seed.Apply(ctx, db, logger); err != nil {
			return err
		}
	}

	var tokenManager server.SessionTokenManager
	if appConfig.SessionsEnabled() {
		tokenManager = auth.NewTokenIssuer(auth.TokenIssuerConfig{
			SigningSecret: []byte(appConfig.SigningSecret),
			Issuer:        "crm-api",
			Audience:      "crm-dashboard",
			TokenTTL:      time.Duration(appConfig.TokenTTLMinutes) * time.Minute,
		})
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Leads:      leadService,
		Tasks:      taskService,
		Activities: activityService,
		Notes:      noteService,
		Audit:      auditService,
		Users:      userService,
		Tokens:     tokenManager,
		APIKey:     appConfig.SessionAPIKey,
		Feed:       feed,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	if appConfig.JobsEnabled {
		scheduler, err := jobs.NewScheduler(jobs.SchedulerConfig{
			Tasks:  taskService,
			Audit:  auditService,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
