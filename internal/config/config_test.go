package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"logLevel": "debug",
		"api": { "serverUrl": "http://atlas.example.com:8080" },
		"map": { "maxZoom": 12 }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hexatlas.cfg.json"), []byte(cfg), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "http://atlas.example.com:8080", viper.GetString("api.serverUrl"))
	assert.Equal(t, 12, viper.GetInt("map.maxZoom"))
	// untouched keys keep their defaults
	assert.Equal(t, 2, viper.GetInt("map.minZoom"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hexatlas.cfg.json"), []byte(`{}`), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./hexatlaslogs", viper.GetString("logsDir"))
	assert.Equal(t, "http://localhost:5000", viper.GetString("api.serverUrl"))
	assert.Equal(t, float64(1024), viper.GetFloat64("map.worldWidth"))
	assert.Equal(t, float64(1024), viper.GetFloat64("map.worldHeight"))
	assert.Equal(t, 128, viper.GetInt("map.tileSize"))
	assert.Equal(t, 2, viper.GetInt("map.minZoom"))
	assert.Equal(t, 8, viper.GetInt("map.maxNativeZoom"))
	assert.Equal(t, 10, viper.GetInt("map.maxZoom"))
	assert.Equal(t, "/static/tiles/{z}/{x}/{y}.png", viper.GetString("tiles.urlTemplate"))
	assert.Equal(t, "/static/tiles/placeholder.png", viper.GetString("tiles.placeholder"))
	assert.Equal(t, 50, viper.GetInt("render.batchSize"))
	assert.Equal(t, float64(5), viper.GetFloat64("render.baseRadius"))
	assert.Equal(t, "300ms", viper.GetString("search.debounce"))
	assert.Equal(t, 20, viper.GetInt("search.resultLimit"))
	assert.Equal(t, "./hexatlas_cache.db", viper.GetString("cache.path"))
	assert.Equal(t, "hexagram_coordinates", viper.GetString("cache.slot"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetMapConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hexatlas.cfg.json"), []byte(`{}`), 0644))
	require.NoError(t, Load(dir))

	mc := GetMapConfig()
	assert.Equal(t, float64(1024), mc.WorldWidth)
	assert.Equal(t, float64(1024), mc.WorldHeight)
	assert.Equal(t, 128, mc.TileSize)
	assert.Equal(t, 2, mc.MinZoom)
	assert.Equal(t, 8, mc.MaxNativeZoom)
	assert.Equal(t, 10, mc.MaxZoom)
}

func TestGetSearchConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"search": { "debounce": "150ms", "resultLimit": 5 }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hexatlas.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	sc := GetSearchConfig()
	assert.Equal(t, 150*time.Millisecond, sc.Debounce)
	assert.Equal(t, 5, sc.ResultLimit)
}

func TestGetCacheConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hexatlas.cfg.json"), []byte(`{}`), 0644))
	require.NoError(t, Load(dir))

	cc := GetCacheConfig()
	assert.Equal(t, "./hexatlas_cache.db", cc.Path)
	assert.Equal(t, "hexagram_coordinates", cc.Slot)
}

func TestGetGraylogConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"graylog": { "enabled": true, "address": "graylog.internal:12201" }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hexatlas.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	gc := GetGraylogConfig()
	assert.Equal(t, true, gc.Enabled)
	assert.Equal(t, "graylog.internal:12201", gc.Address)
}

func TestGetRenderConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"render": { "batchSize": 25, "baseRadius": 8 }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hexatlas.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	rc := GetRenderConfig()
	assert.Equal(t, 25, rc.BatchSize)
	assert.Equal(t, float64(8), rc.BaseRadius)
}
