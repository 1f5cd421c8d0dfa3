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

	"github.com/fentro/cms-console/internal/apiclient"
	"github.com/fentro/cms-console/internal/auth"
	"github.com/fentro/cms-console/internal/config"
	"github.com/fentro/cms-console/internal/content"
	"github.com/fentro/cms-console/internal/database"
	"github.com/fentro/cms-console/internal/kvstore"
	"github.com/fentro/cms-console/internal/leads"
	"github.com/fentro/cms-console/internal/logging"
	"github.com/fentro/cms-console/internal/media"
	"github.com/fentro/cms-console/internal/metrics"
	"github.com/fentro/cms-console/internal/notifications"
	"github.com/fentro/cms-console/internal/server"
	"github.com/fentro/cms-console/internal/shell"
	"github.com/fentro/cms-console/internal/toast"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fentro-console",
		Short: "Fentro CMS admin console",
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
	cmd.PersistentFlags().String("api-base-url", "", "CMS service base URL, e.g. https://cms.example.com/api")
	cmd.PersistentFlags().String("push-url", "", "Push websocket URL (derived from the API URL when empty)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path for local session state")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", "", "Rotate logs into this file instead of stderr")
	cmd.PersistentFlags().Duration("poll-interval", defaults.GetDuration("notifications.poll_interval"), "Notification poll interval")
	cmd.PersistentFlags().String("upload-dir", "", "Directory for upload previews")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "api.base_url", "api-base-url")
	bindFlag(cmd, "push.url", "push-url")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.file", "log-file")
	bindFlag(cmd, "notifications.poll_interval", "poll-interval")
	bindFlag(cmd, "uploads.dir", "upload-dir")
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

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFile)
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

	store, err := kvstore.NewGormStore(db)
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := apiclient.New(apiclient.Config{
		BaseURL:    appConfig.APIBaseURL,
		HTTPClient: &http.Client{Timeout: appConfig.RequestTimeout},
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	session, err := auth.NewSession(auth.SessionConfig{
		Gateway: auth.NewAPIGateway(client),
		Store:   store,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	client.UseTokenSource(session)
	client.OnUnauthorized(session.Invalidate)
	snapshot := session.Initialize(signalCtx)
	logger.Info("session restored", zap.String("status", string(snapshot.Status)))

	toasts := toast.NewHost(time.Now)
	toasts.Observe(func(level toast.Level) {
		metrics.Toasts.WithLabelValues(string(level)).Inc()
	})

	bookkeeping, err := notifications.LoadBookkeeping(signalCtx, store)
	if err != nil {
		return err
	}
	push, err := notifications.NewPushClient(notifications.PushConfig{
		URL:    appConfig.PushURL,
		Tokens: session,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	center, err := notifications.NewCenter(notifications.Config{
		Gateway:      notifications.NewAPIGateway(client),
		Push:         push,
		Bookkeeping:  bookkeeping,
		Toasts:       toasts,
		PollInterval: appConfig.PollInterval,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	board, err := leads.NewBoard(leads.BoardConfig{
		Gateway:        leads.NewAPIGateway(client),
		Toasts:         toasts,
		Actor:          currentUserID(session),
		PageSize:       appConfig.LeadPageSize,
		SearchDebounce: appConfig.SearchDebounce,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer board.Close()

	mediaGateway := media.NewAPIGateway(client)
	library, err := media.NewLibrary(media.LibraryConfig{
		Gateway:        mediaGateway,
		BaseURL:        appConfig.APIBaseURL,
		Toasts:         toasts,
		Logger:         logger,
		SearchDebounce: appConfig.SearchDebounce,
	})
	if err != nil {
		return err
	}
	defer library.Close()

	previewer, err := media.NewThumbnailPreviewer(appConfig.UploadDir, appConfig.PreviewSize)
	if err != nil {
		return err
	}
	uploads := func() (*media.Session, error) {
		return media.NewSession(media.SessionConfig{
			Uploader:      mediaGateway,
			Previewer:     previewer,
			Toasts:        toasts,
			Logger:        logger,
			BaseURL:       appConfig.APIBaseURL,
			AdvisoryBytes: appConfig.MaxUploadFileBytes,
		})
	}

	collections := content.NewService(content.EditorConfig{
		Gateway:        content.NewAPIGateway(client),
		Toasts:         toasts,
		Logger:         logger,
		SearchDebounce: appConfig.SearchDebounce,
	})
	defer collections.Close()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Session:           session,
		Shell:             shell.New(),
		Toasts:            toasts,
		Center:            center,
		Leads:             board,
		Library:           library,
		Uploads:           uploads,
		Content:           collections,
		Events:            server.NewEventDispatcher(),
		Logger:            logger,
		AllowedOrigins:    appConfig.AllowedOrigins,
		MaxSelectionBytes: appConfig.MaxSelectionBytes,
	})
	if err != nil {
		return err
	}

	stopLifecycle := server.BindLifecycle(signalCtx, session, center, logger)
	defer stopLifecycle()

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("console starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("api", appConfig.APIBaseURL),
		)
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

func currentUserID(session *auth.Session) func() string {
	return func() string {
		if user := session.Snapshot().User; user != nil {
			return user.ID
		}
		return ""
	}
}
