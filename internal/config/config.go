package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// MapConfig describes the tile pyramid of the deployed map image.
type MapConfig struct {
	WorldWidth    float64 `json:"worldWidth" mapstructure:"worldWidth"`
	WorldHeight   float64 `json:"worldHeight" mapstructure:"worldHeight"`
	TileSize      int     `json:"tileSize" mapstructure:"tileSize"`
	MinZoom       int     `json:"minZoom" mapstructure:"minZoom"`
	MaxNativeZoom int     `json:"maxNativeZoom" mapstructure:"maxNativeZoom"`
	MaxZoom       int     `json:"maxZoom" mapstructure:"maxZoom"`
}

// TilesConfig locates the static tile pyramid.
type TilesConfig struct {
	URLTemplate string `json:"urlTemplate" mapstructure:"urlTemplate"`
	Placeholder string `json:"placeholder" mapstructure:"placeholder"`
}

// RenderConfig tunes marker materialization.
type RenderConfig struct {
	BatchSize  int     `json:"batchSize" mapstructure:"batchSize"`
	BaseRadius float64 `json:"baseRadius" mapstructure:"baseRadius"`
}

// SearchConfig tunes the catalog search dialog.
type SearchConfig struct {
	Debounce    time.Duration `json:"debounce" mapstructure:"debounce"`
	ResultLimit int           `json:"resultLimit" mapstructure:"resultLimit"`
}

// CacheConfig locates the local snapshot database.
type CacheConfig struct {
	Path string `json:"path" mapstructure:"path"`
	Slot string `json:"slot" mapstructure:"slot"`
}

// GraylogConfig configures optional GELF log shipping.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./hexatlaslogs")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")

	viper.SetDefault("map.worldWidth", 1024)
	viper.SetDefault("map.worldHeight", 1024)
	viper.SetDefault("map.tileSize", 128)
	viper.SetDefault("map.minZoom", 2)
	viper.SetDefault("map.maxNativeZoom", 8)
	viper.SetDefault("map.maxZoom", 10)

	viper.SetDefault("tiles.urlTemplate", "/static/tiles/{z}/{x}/{y}.png")
	viper.SetDefault("tiles.placeholder", "/static/tiles/placeholder.png")

	viper.SetDefault("render.batchSize", 50)
	viper.SetDefault("render.baseRadius", 5)

	viper.SetDefault("search.debounce", "300ms")
	viper.SetDefault("search.resultLimit", 20)

	viper.SetDefault("cache.path", "./hexatlas_cache.db")
	viper.SetDefault("cache.slot", "hexagram_coordinates")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetConfigName("hexatlas.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetMapConfig returns the tile pyramid settings.
func GetMapConfig() MapConfig {
	return MapConfig{
		WorldWidth:    viper.GetFloat64("map.worldWidth"),
		WorldHeight:   viper.GetFloat64("map.worldHeight"),
		TileSize:      viper.GetInt("map.tileSize"),
		MinZoom:       viper.GetInt("map.minZoom"),
		MaxNativeZoom: viper.GetInt("map.maxNativeZoom"),
		MaxZoom:       viper.GetInt("map.maxZoom"),
	}
}

// GetTilesConfig returns the tile source settings.
func GetTilesConfig() TilesConfig {
	return TilesConfig{
		URLTemplate: viper.GetString("tiles.urlTemplate"),
		Placeholder: viper.GetString("tiles.placeholder"),
	}
}

// GetRenderConfig returns the render scheduler settings.
func GetRenderConfig() RenderConfig {
	return RenderConfig{
		BatchSize:  viper.GetInt("render.batchSize"),
		BaseRadius: viper.GetFloat64("render.baseRadius"),
	}
}

// GetSearchConfig returns the search dialog settings.
func GetSearchConfig() SearchConfig {
	return SearchConfig{
		Debounce:    viper.GetDuration("search.debounce"),
		ResultLimit: viper.GetInt("search.resultLimit"),
	}
}

// GetCacheConfig returns the local snapshot store settings.
func GetCacheConfig() CacheConfig {
	return CacheConfig{
		Path: viper.GetString("cache.path"),
		Slot: viper.GetString("cache.slot"),
	}
}

// GetGraylogConfig returns the GELF shipping settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
