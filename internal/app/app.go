package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"livemenu/internal/bot"
	"livemenu/internal/config"
	"livemenu/internal/database"
	"livemenu/internal/domain"
	"livemenu/internal/events"
	"livemenu/internal/export"
	"livemenu/internal/google"
	"livemenu/internal/models"
	"livemenu/internal/plan"
	"livemenu/internal/render"
	"livemenu/internal/repository"
	"livemenu/internal/service"
	"livemenu/internal/storage"
	"livemenu/internal/worker"
)

// App holds the components shared by the API server and the CLI.
type App struct {
	Config  *config.Config
	Logger  *zerolog.Logger
	Store   domain.MenuStore
	Redis   *redis.Client
	State   domain.StateRepository
	Bus     *events.EventBus
	Sink    storage.Sink
	Menu    *service.MenuService
	Exports *service.ExportService

	closers []func() error
}

// New wires storage, caching, rendering and the services. Optional
// integrations (redis, google sheets) degrade with a warning.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Bus: events.NewEventBus()}
	a.Bus.OnError(func(e *events.Event, err error) {
		logger.Warn().Err(err).Str("event", e.Type).Msg("event handler failed")
	})

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	a.State = a.initState(ctx)

	sink, err := openSink(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Sink = sink

	menu := service.NewMenuService(store, a.State, a.Bus, logger)
	if cfg.Menu.SeedFile != "" {
		path := cfg.Menu.SeedFile
		menu.SetSeed(func() (models.Snapshot, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return models.Snapshot{}, fmt.Errorf("read seed file: %w", err)
			}
			return models.ParseSnapshotYAML(data)
		})
	}
	if sheet := initPriceListSheet(ctx, cfg, logger); sheet != nil {
		menu.SetPriceListWriter(sheet)
	}
	a.Menu = menu

	builder, err := NewPlanBuilder(cfg.Exports)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	assembler, err := NewAssembler(cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Exports = service.NewExportService(menu, builder, assembler, sink, a.State, a.Bus, logger)

	return a, nil
}

// Close releases what New opened, last opened first.
func (a *App) Close() error {
	if a.Menu != nil {
		a.Menu.WaitSync()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewExportWorker creates the export worker and makes it the export queue.
func (a *App) NewExportWorker() *worker.ExportWorker {
	w := worker.NewExportWorker(
		a.Exports,
		a.State,
		a.Redis,
		worker.PolicyFromConfig(a.Config.Worker),
		a.Config.Worker.QueueSize,
		a.Logger,
	)
	a.Exports.SetQueue(w)
	return w
}

// InitTelegram connects the bot and forwards events and finished documents
// to the admin chats. It returns nil when telegram is not configured.
func (a *App) InitTelegram() (*bot.BotWrapper, error) {
	if !a.Config.Telegram.Enabled() {
		return nil, nil
	}
	tg, err := bot.NewBotWrapper(a.Config.Telegram.BotToken, a.Config.Telegram.Debug)
	if err != nil {
		return nil, err
	}
	notifier := bot.NewNotifier(tg, a.Config.Telegram.AdminChatIDs, a.Logger)
	notifier.Subscribe(a.Bus)
	a.Exports.SetDocumentSender(notifier)
	a.Logger.Info().Str("bot", tg.Username()).Int("chats", len(a.Config.Telegram.AdminChatIDs)).Msg("telegram notifications enabled")
	return tg, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.MenuStore, error) {
	switch cfg.Database.Driver {
	case "postgres":
		store, err := database.NewPGStore(ctx, cfg.Database.Postgres.DSN, int32(cfg.Database.Postgres.MaxConnections), logger)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		return store, nil
	default:
		db, err := database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		return db, nil
	}
}

// initState returns the memory repository, fronted by redis when it answers.
func (a *App) initState(ctx context.Context) domain.StateRepository {
	memory := repository.NewMemoryStateRepository(a.Config.Menu.SnapshotTTL)
	if a.Config.Redis.Address == "" {
		return memory
	}

	client := repository.NewRedisClient(a.Config.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		a.Logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return memory
	}
	a.Logger.Info().Str("addr", a.Config.Redis.Address).Msg("redis connected")
	a.Redis = client
	a.closers = append(a.closers, func() error { return repository.Close(client) })

	primary := repository.NewRedisStateRepository(client, a.Config.Menu.SnapshotTTL, a.Config.Worker.JobTTL)
	return repository.NewFailoverStateRepository(primary, memory, a.Logger)
}

func openSink(ctx context.Context, cfg *config.Config) (storage.Sink, error) {
	if cfg.Exports.Storage.Driver == "s3" {
		sink, err := storage.NewS3Sink(ctx, storage.S3Config(cfg.Exports.Storage.S3))
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return sink, nil
	}
	return storage.NewLocalSink(cfg.Exports.Path)
}

func initPriceListSheet(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.PriceListSheet {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.PriceListSpreadsheetID == "" {
		return nil
	}
	sheet, err := google.NewPriceListSheet(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.PriceListSpreadsheetID, cfg.Google.PriceListSheet)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without price list sync")
		return nil
	}
	if err := sheet.TestConnection(ctx); err != nil {
		ev := logger.Warn().Err(err)
		if email, emailErr := google.ServiceAccountEmail(cfg.Google.GoogleCredentialsFile); emailErr == nil {
			ev = ev.Str("share_with", email)
		}
		ev.Msg("spreadsheet not reachable, continuing without price list sync")
		return nil
	}
	logger.Info().Str("spreadsheet", cfg.Google.PriceListSpreadsheetID).Msg("google sheets connected")
	return sheet
}

// NewPlanBuilder uses the plan file when one is configured.
func NewPlanBuilder(cfg config.ExportConfig) (*plan.Builder, error) {
	entries := plan.DefaultEntries()
	if cfg.PlanFile != "" {
		loaded, err := plan.LoadFile(cfg.PlanFile)
		if err != nil {
			return nil, err
		}
		entries = loaded
	}
	return plan.NewBuilder(entries, cfg.SplitThreshold, cfg.BackCover())
}

// NewAssembler builds the renderer, its assets and the printer from config.
func NewAssembler(cfg *config.Config, logger *zerolog.Logger) (*export.Assembler, error) {
	rasterPage, err := render.PageSizeByName(cfg.Exports.RasterPage)
	if err != nil {
		return nil, err
	}
	documentPage, err := render.PageSizeByName(cfg.Exports.DocumentPage)
	if err != nil {
		return nil, err
	}
	raster, err := render.NewRasterizer(cfg.Exports.Scale)
	if err != nil {
		return nil, err
	}

	composer := render.Composer{Size: rasterPage, Branding: Branding(cfg.Branding)}
	renderer := render.NewRenderer(composer, raster, NewAssetLoader(cfg, logger), logger)

	var printer export.Printer
	if cfg.Exports.Print.SpoolDir != "" {
		printer = export.SpoolPrinter{Dir: cfg.Exports.Print.SpoolDir, Command: cfg.Exports.Print.Command}
	}

	return export.NewAssembler(renderer, printer, export.Config{
		Product:      cfg.Exports.Product,
		DocumentPage: documentPage,
		JPEGQuality:  cfg.Exports.JPEGQuality,
	}, logger), nil
}

// NewAssetLoader registers the logo and the QR codes that are configured.
func NewAssetLoader(cfg *config.Config, logger *zerolog.Logger) *render.AssetLoader {
	assets := render.NewAssetLoader(cfg.Exports.AssetTimeout, logger)
	switch {
	case cfg.Branding.LogoPath != "":
		assets.Register(render.AssetLogo, render.FileSource{Path: cfg.Branding.LogoPath})
	case cfg.Branding.LogoURL != "":
		assets.Register(render.AssetLogo, render.HTTPSource{
			URL:    cfg.Branding.LogoURL,
			Client: render.NewHTTPClient(cfg.Exports.AssetTimeout, 1),
		})
	}
	if cfg.Branding.LocationURL != "" {
		assets.Register(render.AssetLocationQR, render.QRSource{Content: cfg.Branding.LocationURL})
	}
	if cfg.Branding.FeedbackURL != "" {
		assets.Register(render.AssetFeedbackQR, render.QRSource{Content: cfg.Branding.FeedbackURL})
	}
	return assets
}

// Branding overlays configured values on the house defaults.
func Branding(cfg config.BrandingConfig) render.Branding {
	b := render.DefaultBranding()
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&b.Name, cfg.Name)
	set(&b.Subtitle, cfg.Subtitle)
	set(&b.Tagline, cfg.Tagline)
	set(&b.Phone, cfg.Phone)
	set(&b.Handle, cfg.Handle)
	set(&b.Address, cfg.Address)
	set(&b.LocationURL, cfg.LocationURL)
	set(&b.FeedbackURL, cfg.FeedbackURL)
	if len(cfg.Narrative) > 0 {
		b.Narrative = append([]string(nil), cfg.Narrative...)
	}
	return b
}
