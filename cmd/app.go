package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-signin/internal/auth"
	"github.com/kozaktomas/face-signin/internal/capture"
	"github.com/kozaktomas/face-signin/internal/config"
	"github.com/kozaktomas/face-signin/internal/detector"
	"github.com/kozaktomas/face-signin/internal/logging"
	"github.com/kozaktomas/face-signin/internal/photostore"
	"github.com/kozaktomas/face-signin/internal/registry"
	"github.com/kozaktomas/face-signin/internal/registry/memory"
	"github.com/kozaktomas/face-signin/internal/registry/postgres"
	"github.com/kozaktomas/face-signin/internal/signin"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	pool    *postgres.Pool // nil for the in-memory registry
	store   registry.Store
	photos  photostore.Store
	tokens  *auth.Manager
	index   *registry.NearestIndex
	service *signin.Service
}

// appOptions select how much of the stack a command needs.
type appOptions struct {
	inMemory bool // allow running without DATABASE_URL
	throttle bool // rate-limit detector calls, for the kiosk server only
	metrics  prometheus.Registerer
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	calibration, err := cfg.Match.Calibration()
	if err != nil {
		return nil, fmt.Errorf("invalid match calibration: %w", err)
	}

	a := &app{cfg: cfg, log: log, index: registry.NewNearestIndex()}

	switch {
	case cfg.Database.URL != "":
		fmt.Printf("Connecting to PostgreSQL database...\n")
		a.pool, err = postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		a.store = postgres.NewStore(a.pool)
	case opts.inMemory:
		log.Warn("DATABASE_URL not set, registrations are kept in memory only")
		a.store = memory.New()
	default:
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	if a.photos, err = newPhotoStore(ctx, cfg.Storage, opts.inMemory, log); err != nil {
		a.Close()
		return nil, err
	}

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = randomSecret()
		log.Warn("AUTH_SECRET not set, tokens will not survive a restart")
	}
	if a.tokens, err = auth.NewManager(secret, cfg.Auth.TokenTTL); err != nil {
		a.Close()
		return nil, err
	}

	var det detector.Detector = detector.NewClient(cfg.Detector.URL, cfg.Detector.Timeout)
	if opts.throttle {
		det = capture.NewThrottle(det, capture.Options{
			MinInterval:   cfg.Capture.MinInterval,
			FrameDistance: cfg.Capture.FrameDistance,
		})
	}

	a.service, err = signin.NewService(signin.Options{
		Detector:    det,
		Store:       a.store,
		Photos:      a.photos,
		Tokens:      a.tokens,
		Calibration: calibration,
		Index:       a.index,
		Metrics:     signin.NewMetrics(opts.metrics),
		Logger:      log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"mode":      calibration.Mode,
		"metric":    calibration.Metric,
		"threshold": calibration.Threshold,
	}).Debug("face matching configured")
	return a, nil
}

func newPhotoStore(ctx context.Context, cfg config.StorageConfig, inMemory bool, log logrus.FieldLogger) (photostore.Store, error) {
	if cfg.Endpoint == "" {
		if !inMemory {
			return nil, errors.New("STORAGE_ENDPOINT environment variable is required")
		}
		log.Warn("STORAGE_ENDPOINT not set, profile photos are kept in memory only")
		return photostore.NewMemory(), nil
	}
	store, err := photostore.NewMinio(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// initIndex loads the persisted nearest-identity index, or builds it from the gallery.
func (a *app) initIndex(ctx context.Context) {
	path := a.cfg.Database.HNSWIndexPath
	if path != "" {
		fmt.Printf("Loading face HNSW index from %s...\n", path)
		if err := a.index.Load(path); err != nil {
			fmt.Printf("Warning: %v, rebuilding\n", err)
		}
	}
	if a.index.Len() == 0 {
		if err := a.service.RefreshIndex(ctx); err != nil {
			fmt.Printf("Warning: Failed to build face HNSW index: %v\n", err)
			return
		}
	}
	fmt.Printf("Face HNSW index ready with %d clients\n", a.index.Len())
}

// saveIndex persists the index when a path is configured.
func (a *app) saveIndex() {
	path := a.cfg.Database.HNSWIndexPath
	if path == "" {
		return
	}
	if err := a.index.Save(path); err != nil {
		fmt.Printf("Warning: failed to save face HNSW index: %v\n", err)
		return
	}
	fmt.Println("Face HNSW index saved to disk")
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
