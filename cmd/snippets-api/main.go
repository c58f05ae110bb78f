package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/config"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/database"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/server"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/store"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/store/docstore"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "snippets-api",
		Short: "HTML snippet library backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newHashPasswordCommand(), newExportCommand(), newImportCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.Flags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.Flags().String("store-backend", defaults.GetString("store.backend"), "Record store backend (auto, sqlite, postgres, filesystem, localstore, s3)")
	cmd.Flags().String("database-driver", defaults.GetString("database.driver"), "SQL driver (sqlite, postgres)")
	cmd.Flags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.Flags().String("database-dsn", defaults.GetString("database.dsn"), "Postgres connection string")
	cmd.Flags().String("files-dir", defaults.GetString("files.dir"), "Directory of the filesystem backend")
	cmd.Flags().String("localstore-path", defaults.GetString("localstore.path"), "Snapshot file of the local key-value backend")
	cmd.Flags().String("s3-bucket", defaults.GetString("s3.bucket"), "S3 bucket of the object backend")
	cmd.Flags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Bearer token TTL in minutes")
	cmd.Flags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", defaults.GetString("log.format"), "Log encoding (json, console)")
	cmd.Flags().String("signing-secret", "", "Token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "store.backend", "store-backend")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "files.dir", "files-dir")
	bindFlag(cmd, "localstore.path", "localstore-path")
	bindFlag(cmd, "s3.bucket", "s3-bucket")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
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

func storeConfig(appConfig config.AppConfig) store.Config {
	return store.Config{
		Backend: appConfig.StoreBackend,
		Database: database.Config{
			Driver: appConfig.DatabaseDriver,
			Path:   appConfig.DatabasePath,
			DSN:    appConfig.DatabaseDSN,
		},
		FilesDir:       appConfig.FilesDir,
		LocalStorePath: appConfig.LocalStorePath,
		S3: docstore.S3Config{
			Bucket:          appConfig.S3Bucket,
			Prefix:          appConfig.S3Prefix,
			Region:          appConfig.S3Region,
			Endpoint:        appConfig.S3Endpoint,
			AccessKeyID:     appConfig.S3AccessKeyID,
			SecretAccessKey: appConfig.S3SecretAccessKey,
		},
	}
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	handle, err := store.Open(ctx, storeConfig(appConfig), logger)
	if err != nil {
		return err
	}
	defer handle.Close()

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}
	passwords, err := auth.NewPasswordVerifier(appConfig.PasswordHash)
	if err != nil {
		return err
	}

	feed := library.NewChangeFeed()
	libraryService, err := library.NewService(library.ServiceConfig{
		Store:  handle.Store,
		Clock:  time.Now,
		Logger: logger,
		Feed:   feed,
	})
	if err != nil {
		return err
	}

	if appConfig.SeedDefaults {
		if _, err := libraryService.SeedDefaults(ctx); err != nil {
			return err
		}
	}

	// Other writers bypass the in-process feed, so a shared backend is read through.
	var cache *library.Cache
	if appConfig.CacheReads && !handle.Shared {
		cache = library.NewCache(libraryService)
		defer cache.Close()
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager:       tokenManager,
		Passwords:          passwords,
		Library:            libraryService,
		Cache:              cache,
		Logger:             logger,
		CORSAllowedOrigins: appConfig.CORSAllowedOrigins,
		HeartbeatInterval:  appConfig.HeartbeatInterval,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("backend", string(handle.Backend)),
			zap.Bool("cache", cache != nil))
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
