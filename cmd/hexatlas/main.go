package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/hexatlas/engine/internal/api"
	"github.com/hexatlas/engine/internal/cache"
	"github.com/hexatlas/engine/internal/config"
	"github.com/hexatlas/engine/internal/dispatcher"
	"github.com/hexatlas/engine/internal/engine"
	"github.com/hexatlas/engine/internal/logging"
	"github.com/hexatlas/engine/internal/notify"
	"github.com/hexatlas/engine/internal/projection"
	"github.com/hexatlas/engine/internal/render"
	"github.com/hexatlas/engine/internal/search"
	"github.com/hexatlas/engine/internal/store"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	Version   string = "2.0.0"
	BuildDate string = "unknown"

	AppName string = "hexatlas"
)

// global variables
var (
	SessionStartTime time.Time = time.Now()

	LogFilePath string
	LogFile     *os.File

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// Services
	session         *engine.Session
	client          *api.Client
	markerStore     *store.Store
	scheduler       *render.Scheduler
	snapshots       *cache.Store
	hub             *notify.Hub
	eng             *engine.Engine
	workflow        *search.Workflow
	eventDispatcher *dispatcher.Dispatcher
)

// logSurface is the headless rendering target of the command-line build.
// Visual mutations are logged instead of drawn.
type logSurface struct {
	log *slog.Logger
}

func (s *logSurface) Place(v render.Visual) {
	s.log.Debug("Visual placed", "id", v.ID, "x", v.Center.X, "y", v.Center.Y, "radius", v.Radius)
}

func (s *logSurface) Update(v render.Visual) {
	s.log.Debug("Visual updated", "id", v.ID, "x", v.Center.X, "y", v.Center.Y, "radius", v.Radius)
}

func (s *logSurface) Remove(id uint) {
	s.log.Debug("Visual removed", "id", id)
}

func (s *logSurface) Clear() {
	s.log.Debug("Surface cleared")
}

func setupLogging() {
	session = engine.NewSession()

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, viper.GetString("logLevel"), nil, nil)
	Logger = SlogManager.Logger()

	if err := config.Load("."); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.Mkdir(logsDir, 0755)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)

	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
	}

	var gelfWriter io.Writer
	gelfCfg := config.GetGraylogConfig()
	if gelfCfg.Enabled {
		w, err := logging.NewGelfWriter(gelfCfg.Address)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err, "address", gelfCfg.Address)
		} else {
			gelfWriter = w
			Logger.Info("Shipping logs to Graylog", "address", gelfCfg.Address)
		}
	}

	// Re-setup logging with file output, optional GELF, and dynamic
	// session state on every record
	SlogManager.Setup(LogFile, viper.GetString("logLevel"), gelfWriter, func() []slog.Attr {
		return []slog.Attr{
			slog.Bool("editMode", session.EditMode()),
			slog.Bool("addMode", session.AddMode()),
		}
	})
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)
}

func buildServices() error {
	mapCfg := config.GetMapConfig()
	proj := projection.Projection{
		WorldWidth:    mapCfg.WorldWidth,
		WorldHeight:   mapCfg.WorldHeight,
		TileSize:      mapCfg.TileSize,
		MinZoom:       mapCfg.MinZoom,
		MaxNativeZoom: mapCfg.MaxNativeZoom,
		MaxZoom:       mapCfg.MaxZoom,
	}

	client = api.New(viper.GetString("api.serverUrl"))
	markerStore = store.New(Logger)

	renderCfg := config.GetRenderConfig()
	scheduler = render.NewScheduler(proj, &logSurface{log: Logger}, Logger,
		render.WithBatchSize(renderCfg.BatchSize),
		render.WithBaseRadius(renderCfg.BaseRadius),
	)

	cacheCfg := config.GetCacheConfig()
	cacheLog := zerolog.New(LogFile).With().Timestamp().Logger()
	var err error
	snapshots, err = cache.Open(cacheCfg.Path, cacheCfg.Slot, cacheLog)
	if err != nil {
		// the engine degrades gracefully without a local cache
		Logger.Error("Failed to open snapshot cache", "error", err, "path", cacheCfg.Path)
		snapshots = nil
	}

	hub = notify.NewHub(notify.DefaultTTL, Logger, func(n notify.Notification) {
		fmt.Printf("[%s] %s\n", n.Severity, n.Message)
	})

	searchCfg := config.GetSearchConfig()
	workflow, err = search.NewWorkflow(client, markerStore, Logger,
		search.WithDelay(searchCfg.Debounce),
		search.WithResultLimit(searchCfg.ResultLimit),
	)
	if err != nil {
		return fmt.Errorf("failed to create search workflow: %w", err)
	}

	eng = engine.New(engine.Dependencies{
		Projection: proj,
		Store:      markerStore,
		Scheduler:  scheduler,
		Remote:     client,
		Snapshots:  snapshots,
		Details:    workflow,
		Notifier:   hub,
		Session:    session,
		Log:        Logger,
	})

	eventDispatcher, err = dispatcher.New(Logger)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	registerInteractionHandlers(eventDispatcher)
	wireSurfaceGestures()

	return nil
}

// movePayload carries a finished drag.
type movePayload struct {
	ID uint
	At geom.XY
}

// attachPayload carries a selected file for upload.
type attachPayload struct {
	ID       uint
	Filename string
	MimeType string
	Path     string
}

// registerInteractionHandlers binds surface commands to engine operations.
func registerInteractionHandlers(d *dispatcher.Dispatcher) {
	d.Register("map:click", func(e dispatcher.Event) (any, error) {
		at, ok := e.Payload.(geom.XY)
		if !ok {
			return nil, fmt.Errorf("map:click expects a screen point")
		}
		if !session.AddMode() {
			return "ignored", nil
		}
		entry, ok := session.Placement()
		if !ok {
			return nil, fmt.Errorf("add mode armed without a selected entry")
		}
		created, err := workflow.Place(eng, at, entry)
		if err != nil {
			return nil, err
		}
		// one click, one marker
		session.ClearPlacement()
		session.SetAddMode(false)
		return created, nil
	}, dispatcher.Logged())

	d.Register("marker:dragend", func(e dispatcher.Event) (any, error) {
		p, ok := e.Payload.(movePayload)
		if !ok {
			return nil, fmt.Errorf("marker:dragend expects a move payload")
		}
		return nil, eng.Move(p.ID, p.At)
	}, dispatcher.Logged())

	d.Register("marker:delete", func(e dispatcher.Event) (any, error) {
		id, ok := e.Payload.(uint)
		if !ok {
			return nil, fmt.Errorf("marker:delete expects a marker identifier")
		}
		return nil, eng.Delete(id, confirmDelete)
	}, dispatcher.Logged())

	d.Register("image:attach", func(e dispatcher.Event) (any, error) {
		p, ok := e.Payload.(attachPayload)
		if !ok {
			return nil, fmt.Errorf("image:attach expects an attach payload")
		}
		f, err := os.Open(p.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return nil, eng.AttachImage(p.ID, p.Filename, p.MimeType, f)
	}, dispatcher.Logged())

	d.Register("search:input", func(e dispatcher.Event) (any, error) {
		query, ok := e.Payload.(string)
		if !ok {
			return nil, fmt.Errorf("search:input expects a query string")
		}
		workflow.Input(query, printRanked)
		return "queued", nil
	}, dispatcher.Buffered(64))

	d.Register("snapshot:save", func(e dispatcher.Event) (any, error) {
		return nil, eng.SaveSnapshot()
	}, dispatcher.Logged())

	d.Register("collection:reset", func(e dispatcher.Event) (any, error) {
		return nil, eng.Reset()
	}, dispatcher.Logged())
}

// wireSurfaceGestures routes raw surface gestures through the dispatcher.
func wireSurfaceGestures() {
	scheduler.OnInteraction(func(kind render.EventKind, id uint, at geom.XY) {
		switch kind {
		case render.EventDragEnd:
			if !session.EditMode() {
				return
			}
			eventDispatcher.Dispatch(dispatcher.Event{
				Command:   "marker:dragend",
				Payload:   movePayload{ID: id, At: at},
				Timestamp: time.Now(),
			})
		case render.EventSecondaryAction:
			if !session.EditMode() {
				return
			}
			eventDispatcher.Dispatch(dispatcher.Event{
				Command:   "marker:delete",
				Payload:   id,
				Timestamp: time.Now(),
			})
		case render.EventClick:
			if session.AddMode() {
				eventDispatcher.Dispatch(dispatcher.Event{
					Command:   "map:click",
					Payload:   at,
					Timestamp: time.Now(),
				})
				return
			}
			if session.EditMode() {
				session.SetEditTarget(id)
			}
		}
	})
}

func confirmDelete() bool {
	fmt.Print("Delete this marker? [y/N] ")
	var answer string
	fmt.Scanln(&answer)
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

func main() {
	setupLogging()
	if err := buildServices(); err != nil {
		Logger.Error("Startup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if snapshots != nil {
			snapshots.Close()
		}
	}()

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "pull":
		err = runPull()
	case "export":
		if len(args) < 2 {
			fmt.Println("No output file provided.")
			return
		}
		err = runExport(args[1])
	case "import":
		if len(args) < 2 {
			fmt.Println("No input file provided.")
			return
		}
		err = runImport(args[1])
	case "search":
		err = runSearch(strings.Join(args[1:], " "))
	case "status":
		err = runStatus()
	default:
		printUsage()
		return
	}
	if err != nil {
		Logger.Error("Command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("%s %s (built %s)\n", AppName, Version, BuildDate)
	fmt.Println("usage: hexatlas <pull|export FILE|import FILE|search QUERY|status>")
}
