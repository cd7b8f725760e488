package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	gohandlers "github.com/gorilla/handlers"
	"github.com/iantal/miniapp/internal/files"
	"github.com/iantal/miniapp/internal/github"
	"github.com/iantal/miniapp/internal/repository"
	"github.com/iantal/miniapp/internal/rest/handlers"
	"github.com/iantal/miniapp/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API and serve the Mini App page",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	// create the storage class, use local storage
	stor, err := files.NewLocal(logger, cfg.Store.ProjectsDir, cfg.Store.MaxFileSize)
	if err != nil {
		logger.WithField("error", err).Error("Unable to create storage")
		return err
	}
	lock, err := files.NewLocker(filepath.Join(cfg.Store.DataDir, "locks"), cfg.Store.Locking)
	if err != nil {
		return err
	}

	var activity service.ActivityRecorder = service.NoActivity{}
	if cfg.Database.Enabled() {
		db, err := repository.Open(cfg.Database)
		if err != nil {
			logger.WithField("error", err).Error("Unable to open activity database")
			return err
		}
		defer db.Close()
		activity = repository.NewActivityDB(logger, db)
	} else {
		logger.Info("POSTGRES_HOST not set, activity log disabled")
	}

	gh := github.NewClient(logger, cfg.GitHub.APIURL, cfg.GitHub.Token, cfg.GitHub.Timeout)
	if !cfg.GitHub.Configured() {
		logger.Warn("GITHUB_TOKEN or GITHUB_OWNER not set, publishing is disabled")
	}

	pm := service.NewProjectManager(logger, stor, lock)
	exp, err := service.NewExporter(logger, pm, stor, cfg.Store.ExportsDir)
	if err != nil {
		return err
	}
	imp := service.NewImporter(logger, pm, stor, gh, activity, cfg.GitHub.MaxArchiveBytes)
	pub := service.NewPublisher(logger, pm, stor, gh, activity, cfg.GitHub)

	projH := handlers.NewProjects(logger, pm, exp, imp, pub, activity)
	sm := handlers.NewRouter(projH, handlers.NewStatic(cfg.Server.StaticDir))

	ch := gohandlers.CORS(
		gohandlers.AllowedOrigins([]string{"*"}),
		gohandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		gohandlers.AllowedHeaders([]string{"Content-Type"}),
	)
	accessLog := logger.Writer()
	defer accessLog.Close()
	handler := gohandlers.RecoveryHandler(gohandlers.RecoveryLogger(logger))(
		gohandlers.CombinedLoggingHandler(accessLog, ch(sm)),
	)

	// create a new server
	s := http.Server{
		Addr:         cfg.Server.Addr,   // configure the bind address
		Handler:      handler,           // set the default handler
		ReadTimeout:  30 * time.Second,  // uploads and JSON bodies
		WriteTimeout: 300 * time.Second, // import and publish wait on GitHub
		IdleTimeout:  120 * time.Second, // max time for connections using TCP Keep-Alive
	}

	errc := make(chan error, 1)
	go func() {
		logger.WithField("bind_address", cfg.Server.Addr).Info("Starting server")
		if err := s.ListenAndServe(); err != nil && !xerrors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// trap sigterm or interupt and gracefully shutdown the server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		logger.WithField("error", err).Error("Unable to start server")
		return err
	case sig := <-c:
		logger.WithField("signal", sig).Info("Shutting down server with signal")
	}

	// gracefully shutdown the server, waiting max 30 seconds for current operations to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
