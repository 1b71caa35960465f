package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/richnote/internal/config"
	"github.com/xxxsen/richnote/internal/db"
	"github.com/xxxsen/richnote/internal/entrycache"
	"github.com/xxxsen/richnote/internal/filestore"
	"github.com/xxxsen/richnote/internal/fragment"
	"github.com/xxxsen/richnote/internal/handler"
	"github.com/xxxsen/richnote/internal/job"
	"github.com/xxxsen/richnote/internal/middleware"
	"github.com/xxxsen/richnote/internal/pkg/jwt"
	"github.com/xxxsen/richnote/internal/repo"
	"github.com/xxxsen/richnote/internal/richtext"
	"github.com/xxxsen/richnote/internal/schedule"
	"github.com/xxxsen/richnote/internal/service"
)

type app struct {
	cfg        *config.Config
	store      filestore.Store
	content    *service.ContentFactory
	documents  *service.DocumentService
	entries    *service.EntryService
	duplicates *service.DuplicateService
	publisher  *service.PublishService
	scheduler  *schedule.CronScheduler
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "richnote",
		Short: "richnote content server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run richnote server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath, true)
			if err != nil {
				return err
			}
			defer conn.Close()
			a, err := newApp(cfg, conn)
			if err != nil {
				return err
			}
			return a.runServer()
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := setup(configPath, true)
			if err != nil {
				return err
			}
			defer conn.Close()
			logutil.GetLogger(context.Background()).Info("migrations applied")
			return nil
		},
	}

	var userID, docID string
	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "render a document to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" || docID == "" {
				return fmt.Errorf("--user and --doc are required")
			}
			cfg, conn, err := setup(configPath, false)
			if err != nil {
				return err
			}
			defer conn.Close()
			a, err := newApp(cfg, conn)
			if err != nil {
				return err
			}
			res, err := a.documents.Render(cmd.Context(), userID, docID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.HTML)
			return err
		},
	}
	renderCmd.Flags().StringVar(&userID, "user", "", "owner user id")
	renderCmd.Flags().StringVar(&docID, "doc", "", "document id")

	var tokenUser string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "mint an API token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tokenUser == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			token, err := jwt.GenerateToken(tokenUser, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id to embed in the token")

	var jobName string
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "run a background job once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath, false)
			if err != nil {
				return err
			}
			defer conn.Close()
			a, err := newApp(cfg, conn)
			if err != nil {
				return err
			}
			return a.scheduler.RunOnce(cmd.Context(), jobName)
		},
	}
	jobCmd.Flags().StringVar(&jobName, "name", "reference_sync", "job name: reference_sync or publish")

	rootCmd.AddCommand(runCmd, migrateCmd, renderCmd, tokenCmd, jobCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string, migrate bool) (*config.Config, *sql.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if migrate {
		if err := db.ApplyMigrations(conn); err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
	}
	return cfg, conn, nil
}

func newApp(cfg *config.Config, conn *sql.DB) (*app, error) {
	docRepo := repo.NewDocumentRepo(conn)
	entryRepo := repo.NewEntryRepo(conn)
	refRepo := repo.NewDocumentEntryRepo(conn)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}
	cache := entrycache.New(cfg.EntryCache.Size, time.Duration(cfg.EntryCache.TTLSeconds)*time.Second)
	content := service.NewContentFactory(service.ContentConfig{
		Syntax:        richtext.Syntax{Tag: cfg.RichText.Tag, IDAttr: cfg.RichText.IDAttr},
		SiteHandle:    cfg.RichText.SiteHandle,
		DefaultLocale: cfg.RichText.DefaultLocale,
		EntryURLBase:  cfg.RichText.EntryURLBase,
	}, entryRepo, cache, fragment.NewRenderer())

	documents := service.NewDocumentService(docRepo, refRepo, entryRepo, content)
	entries := service.NewEntryService(entryRepo, refRepo, content)
	duplicates := service.NewDuplicateService(docRepo, entries, content, documents)
	publisher := service.NewPublishService(documents, store, cfg.BaseURL, cfg.Jobs.PublishConcurrency)

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewReferenceSyncJob(documents), cfg.Jobs.ReferenceSyncCron); err != nil {
		return nil, fmt.Errorf("schedule reference sync: %w", err)
	}
	if err := scheduler.AddJob(job.NewPublishJob(documents, publisher), cfg.Jobs.PublishCron); err != nil {
		return nil, fmt.Errorf("schedule publish: %w", err)
	}
	return &app{
		cfg:        cfg,
		store:      store,
		content:    content,
		documents:  documents,
		entries:    entries,
		duplicates: duplicates,
		publisher:  publisher,
		scheduler:  scheduler,
	}, nil
}

func (a *app) runServer() error {
	cfg := a.cfg
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", a.store.Type()),
		zap.String("site", cfg.RichText.SiteHandle),
		zap.String("locale", cfg.RichText.DefaultLocale),
	)

	deps := handler.RouterDeps{
		Documents:     handler.NewDocumentHandler(a.documents, a.duplicates),
		Entries:       handler.NewEntryHandler(a.entries),
		Publish:       handler.NewPublishHandler(a.publisher),
		Files:         handler.NewFileHandler(a.store),
		Properties:    handler.NewPropertiesHandler(a.content),
		JWTSecret:     []byte(cfg.JWTSecret),
		PublishWindow: time.Duration(cfg.Jobs.PublishWindowSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
