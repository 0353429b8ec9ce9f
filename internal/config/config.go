package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/radar-tile-bmp/internal/tile"
)

var validate = validator.New()

type AppConfig struct {
	Port      string `validate:"required,numeric"`
	ImagesDir string `validate:"required"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json text"`

	// Tiles regenerated by every sweep.
	Tiles []tile.Coordinate `validate:"dive"`

	// SchedulerInterval controls how often the configured tiles are regenerated.
	SchedulerInterval time.Duration `validate:"gt=0"`
	// GenerationTimeout bounds one tile's generation within a sweep.
	GenerationTimeout time.Duration `validate:"gt=0"`
	HTTPTimeout       time.Duration `validate:"gt=0"`
	FetchRetries      int           `validate:"gte=0,lte=10"`
	ShutdownTimeout   time.Duration `validate:"gt=0"`

	WeatherIndexURL  string `validate:"required,url"`
	RadarTileBaseURL string `validate:"required,url"`
	RadarTileSize    int    `validate:"oneof=256 512"`
	RadarColorScheme int    `validate:"gte=0,lte=8"`
	RadarSmooth      bool
	RadarSnow        bool

	// The cloud overlay is off unless explicitly enabled.
	CloudLayerEnabled bool
	CloudTileBaseURL  string `validate:"required,url"`
	OpenWeatherAPIKey string `validate:"required_if=CloudLayerEnabled true"`

	// BaseTileURL, when set, is an XYZ template used to download missing base tiles.
	BaseTileURL string `validate:"omitempty,contains={z}"`

	OutputSize     int           `validate:"gte=1,lte=1024"`
	PaletteReducer string        `validate:"oneof=builtin imagemagick"`
	ConvertBinary  string        `validate:"required"`
	ConvertTimeout time.Duration `validate:"gt=0"`

	// GenerateOnRequest makes /generate regenerate the tile before serving it.
	GenerateOnRequest bool

	ErrorLogDir string `validate:"required"`

	// In-memory generation history retention.
	HistoryMax    int           // max number of results per tile (0 = unlimited)
	HistoryMaxAge time.Duration // max age of results (0 = unlimited)
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "7000")
	cfg.ImagesDir = getenvDefault("IMAGES_DIR", "images")
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "json"))

	cfg.Tiles, err = ParseTiles(getenvDefault("TILES", "9/131/193,9/132/193"))
	if err != nil {
		return nil, fmt.Errorf("invalid TILES: %w", err)
	}

	// Scheduler interval: default 10 minutes.
	if cfg.SchedulerInterval, err = getenvDuration("SCHEDULER_INTERVAL", "10m"); err != nil {
		return nil, err
	}
	if cfg.GenerationTimeout, err = getenvDuration("GENERATION_TIMEOUT", "2m"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.ConvertTimeout, err = getenvDuration("CONVERT_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.HistoryMaxAge, err = getenvDuration("HISTORY_MAX_AGE", "24h"); err != nil {
		return nil, err
	}
	cfg.FetchRetries = getenvInt("FETCH_RETRIES", 2)

	cfg.WeatherIndexURL = getenvDefault("WEATHER_INDEX_URL", "https://api.rainviewer.com/public/weather-maps.json")
	cfg.RadarTileBaseURL = getenvDefault("RADAR_TILE_BASE_URL", "https://tilecache.rainviewer.com")
	cfg.RadarTileSize = getenvInt("RADAR_TILE_SIZE", 256)
	cfg.RadarColorScheme = getenvInt("RADAR_COLOR_SCHEME", 4)
	cfg.RadarSmooth = getenvBool("RADAR_SMOOTH", true)
	cfg.RadarSnow = getenvBool("RADAR_SNOW", true)

	cfg.CloudLayerEnabled = getenvBool("CLOUD_LAYER_ENABLED", false)
	cfg.CloudTileBaseURL = getenvDefault("CLOUD_TILE_BASE_URL", "https://tile.openweathermap.org/map/clouds_new")
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.BaseTileURL = os.Getenv("BASE_TILE_URL")

	cfg.OutputSize = getenvInt("OUTPUT_SIZE", 32)
	cfg.PaletteReducer = strings.ToLower(getenvDefault("PALETTE_REDUCER", "builtin"))
	cfg.ConvertBinary = getenvDefault("CONVERT_BINARY", "convert")
	cfg.GenerateOnRequest = getenvBool("GENERATE_ON_REQUEST", false)
	cfg.ErrorLogDir = getenvDefault("ERROR_LOG_DIR", "logs")

	// Roughly 24h at 10-minute intervals.
	cfg.HistoryMax = getenvInt("HISTORY_MAX", 144)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ParseTiles parses a comma-separated list of "zoom/x/y" triples.
func ParseTiles(s string) ([]tile.Coordinate, error) {
	var tiles []tile.Coordinate
	seen := make(map[tile.Coordinate]bool)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, "/")
		if len(parts) != 3 {
			return nil, fmt.Errorf("tile %q must be zoom/x/y", item)
		}
		c, err := tile.ParseCoordinate(parts[0], parts[1], parts[2])
		if err != nil {
			return nil, fmt.Errorf("tile %q: %w", item, err)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		tiles = append(tiles, c)
	}
	return tiles, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
