package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-signin/internal/facematch"
	"gopkg.in/yaml.v3"
)

// unset marks a float setting that was not provided.
const unset = -1

type Config struct {
	Database DatabaseConfig
	Detector DetectorConfig
	Storage  StorageConfig
	Match    MatchConfig
	Capture  CaptureConfig
	Auth     AuthConfig
	Web      WebConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the nearest-identity HNSW index (optional)
}

type DetectorConfig struct {
	URL     string        // defaults to http://localhost:8000
	Timeout time.Duration // per-request timeout (default 30s)
}

type StorageConfig struct {
	Endpoint  string // MinIO / S3 endpoint, e.g. localhost:9000
	AccessKey string
	SecretKey string
	Bucket    string // defaults to face-signin
	UseSSL    bool
}

// MatchConfig holds the face-matching calibration. Threshold has no default: the right value depends
// on the metric, so it must be supplied by env or the calibration file.
type MatchConfig struct {
	EncoderMode        string  // geometry or vector (default vector)
	Metric             string  // mean_abs_diff, cosine or euclidean
	Threshold          float64 // required
	DuplicateThreshold float64 // registration duplicate check, defaults to Threshold
	CalibrationFile    string  // optional YAML file with metric and thresholds
}

// Calibration is the parsed, validated form of MatchConfig.
type Calibration struct {
	Mode               facematch.Mode
	Metric             facematch.Metric
	Threshold          float64
	DuplicateThreshold float64
}

type CaptureConfig struct {
	MinInterval   time.Duration // minimum time between detector calls (default 1.5s)
	FrameDistance int           // dHash bits under which a frame counts as unchanged; 0 disables
}

type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration // default 12h
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // CORS origins besides localhost
	MaxUploadBytes int64    // multipart photo limit (default 10 MiB)
}

type LogConfig struct {
	Level  string // logrus level name (default info)
	Format string // text or json
}

// calibrationFile is the YAML layout of MATCH_CALIBRATION_FILE.
type calibrationFile struct {
	EncoderMode        string   `yaml:"encoder_mode"`
	Metric             string   `yaml:"metric"`
	Threshold          *float64 `yaml:"threshold"`
	DuplicateThreshold *float64 `yaml:"duplicate_threshold"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float, falling back on empty or invalid input.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envDuration reads a Go duration string (e.g. "1500ms"), falling back on empty, invalid or
// non-positive input.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load reads configuration from the environment and the optional calibration file.
// Environment values win over the file.
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Detector: DetectorConfig{
			URL:     os.Getenv("DETECTOR_URL"),
			Timeout: envDuration("DETECTOR_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:    envString("STORAGE_BUCKET", "face-signin"),
			UseSSL:    envBool("STORAGE_USE_SSL"),
		},
		Match: MatchConfig{
			EncoderMode:        os.Getenv("ENCODER_MODE"),
			Metric:             os.Getenv("MATCH_METRIC"),
			Threshold:          envFloat("MATCH_THRESHOLD", unset),
			DuplicateThreshold: envFloat("MATCH_DUPLICATE_THRESHOLD", unset),
			CalibrationFile:    os.Getenv("MATCH_CALIBRATION_FILE"),
		},
		Capture: CaptureConfig{
			MinInterval:   envDuration("CAPTURE_MIN_INTERVAL", 1500*time.Millisecond),
			FrameDistance: envInt("CAPTURE_FRAME_DISTANCE", 0),
		},
		Auth: AuthConfig{
			Secret:   os.Getenv("AUTH_SECRET"),
			TokenTTL: envDuration("AUTH_TOKEN_TTL", 12*time.Hour),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
			MaxUploadBytes: int64(envInt("WEB_MAX_UPLOAD_BYTES", 10<<20)),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
	}

	if cfg.Match.CalibrationFile != "" {
		if err := cfg.Match.mergeFile(cfg.Match.CalibrationFile); err != nil {
			return nil, err
		}
	}
	if cfg.Match.EncoderMode == "" {
		cfg.Match.EncoderMode = facematch.ModeVector.String()
	}

	return cfg, nil
}

// mergeFile fills settings that the environment left empty from a YAML calibration file.
func (m *MatchConfig) mergeFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("reading calibration file: %w", err)
	}

	var file calibrationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing calibration file %s: %w", path, err)
	}

	if m.EncoderMode == "" {
		m.EncoderMode = file.EncoderMode
	}
	if m.Metric == "" {
		m.Metric = file.Metric
	}
	if m.Threshold == unset && file.Threshold != nil {
		m.Threshold = *file.Threshold
	}
	if m.DuplicateThreshold == unset && file.DuplicateThreshold != nil {
		m.DuplicateThreshold = *file.DuplicateThreshold
	}
	return nil
}

// Calibration parses and validates the match settings.
func (m *MatchConfig) Calibration() (Calibration, error) {
	mode, err := facematch.ParseMode(m.EncoderMode)
	if err != nil {
		return Calibration{}, fmt.Errorf("ENCODER_MODE: %w", err)
	}
	if m.Metric == "" {
		return Calibration{}, errors.New("MATCH_METRIC is required")
	}
	metric, err := facematch.ParseMetric(m.Metric)
	if err != nil {
		return Calibration{}, fmt.Errorf("MATCH_METRIC: %w", err)
	}
	if !metric.Supports(mode.Kind()) {
		return Calibration{}, fmt.Errorf("metric %s cannot compare %s encodings", metric, mode.Kind())
	}
	if m.Threshold == unset {
		return Calibration{}, errors.New("MATCH_THRESHOLD is required")
	}
	if err := facematch.ValidateThreshold(m.Threshold); err != nil {
		return Calibration{}, fmt.Errorf("MATCH_THRESHOLD: %w", err)
	}

	dup := m.DuplicateThreshold
	if dup == unset {
		dup = m.Threshold
	}
	if err := facematch.ValidateThreshold(dup); err != nil {
		return Calibration{}, fmt.Errorf("MATCH_DUPLICATE_THRESHOLD: %w", err)
	}

	return Calibration{
		Mode:               mode,
		Metric:             metric,
		Threshold:          m.Threshold,
		DuplicateThreshold: dup,
	}, nil
}

// Addr returns the host:port the web server listens on.
func (w WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}
