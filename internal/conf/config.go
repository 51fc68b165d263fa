// config.go: application settings and loading
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Input kinds
const (
	InputRaw       = "raw"
	InputWAV       = "wav"
	InputSoundcard = "soundcard"
	InputRTLSDR    = "rtlsdr"
	InputSynthetic = "synthetic"
)

// ToneSettings describes one synthetic carrier, offset from the centre frequency
type ToneSettings struct {
	Frequency float64 `yaml:"frequency"` // Hz, may be negative
	Amplitude float64 `yaml:"amplitude"`
}

// InputSettings selects and configures the sample source
type InputSettings struct {
	Kind       string `yaml:"kind"`
	SampleRate int    `yaml:"samplerate"`
	Path       string `yaml:"path"`
	Device     string `yaml:"device"`
	RTLSDR     struct {
		Index     int    `yaml:"index"`
		Frequency int    `yaml:"frequency"`
		Gain      int    `yaml:"gain"`
	} `yaml:"rtlsdr"`
	Synthetic struct {
		Tones []ToneSettings `yaml:"tones"`
		Noise float64        `yaml:"noise"`
		Seed  int64          `yaml:"seed"`
		Limit int64          `yaml:"limit"`
	} `yaml:"synthetic"`
}

// SpectralSettings configures the FFT pipeline
type SpectralSettings struct {
	Bins       int     `yaml:"bins"`
	Overlap    float64 `yaml:"overlap"`
	LogScale   int     `yaml:"logscale"`
	TileWidth  int     `yaml:"tilewidth"`
	TileHeight int     `yaml:"tileheight"`
}

// DisplaySettings configures the canvas, colour map and render loop
type DisplaySettings struct {
	MagLo         float64 `yaml:"maglo"`
	MagHi         float64 `yaml:"maghi"`
	HeightSeconds float64 `yaml:"heightseconds"`
	QueueCapacity int     `yaml:"queuecapacity"`
	DrainLimit    int     `yaml:"drainlimit"`
	FPS           int     `yaml:"fps"`
	Snapshot      string  `yaml:"snapshot"`
}

// DetectorSettings attaches one detector script
type DetectorSettings struct {
	Name    string             `yaml:"name"`
	Kind    string             `yaml:"kind"`
	Enabled bool               `yaml:"enabled"`
	Params  map[string]float64 `yaml:"params"`
}

// EventSettings configures the event bus
type EventSettings struct {
	BufferSize int `yaml:"buffersize"`
	Workers    int `yaml:"workers"`
}

// IngestSettings configures out-of-band event sources
type IngestSettings struct {
	SysEx struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"sysex"`
	MQTT struct {
		Enabled bool   `yaml:"enabled"`
		Topic   string `yaml:"topic"`
	} `yaml:"mqtt"`
}

// MQTTSettings configures the broker connection shared by publishing and ingestion
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"clientid"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

// DatastoreSettings configures event persistence
type DatastoreSettings struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"`
	SQLite  struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
}

// WebServerSettings configures the HTTP API
type WebServerSettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// SentrySettings configures optional error telemetry
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Settings contains all configuration options
type Settings struct {
	Main struct {
		Name string `yaml:"name"`
	} `yaml:"main"`

	Logging   logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Input     InputSettings        `yaml:"input"`
	Spectral  SpectralSettings     `yaml:"spectral"`
	Display   DisplaySettings      `yaml:"display"`
	Detectors []DetectorSettings   `yaml:"detectors"`
	Events    EventSettings        `yaml:"events"`
	Ingest    IngestSettings       `yaml:"ingest"`
	MQTT      MQTTSettings         `yaml:"mqtt"`
	Datastore DatastoreSettings    `yaml:"datastore"`
	WebServer WebServerSettings    `yaml:"webserver"`
	Sentry    SentrySettings       `yaml:"sentry"`
}

// ReadsStdin reports whether the sample input is standard input
func (s *Settings) ReadsStdin() bool {
	return s.Input.Kind == InputRaw && isStdin(s.Input.Path)
}

// SysExReadsStdin reports whether SysEx ingestion is enabled on standard input
func (s *Settings) SysExReadsStdin() bool {
	return s.Ingest.SysEx.Enabled && isStdin(s.Ingest.SysEx.Path)
}

func isStdin(path string) bool { return path == "" || path == "-" }

// OverlapBins converts the configured overlap fraction into a sample count
func (s *Settings) OverlapBins() int {
	return int(float64(s.Spectral.Bins) * s.Spectral.Overlap)
}

// RowDuration is the time covered by one spectral frame at the given sample rate
func (s *Settings) RowDuration(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(s.Spectral.Bins-s.OverlapBins()) / float64(sampleRate)
}

// CanvasRows is the retained history in rows: at least HeightSeconds worth, rounded
// up to whole tiles, and never less than one tile.
func (s *Settings) CanvasRows(sampleRate int) int {
	tile := s.Spectral.TileHeight
	if tile <= 0 {
		tile = 1024
	}
	rowDuration := s.RowDuration(sampleRate)
	if s.Display.HeightSeconds <= 0 || rowDuration <= 0 {
		return tile
	}
	rows := int(math.Ceil(s.Display.HeightSeconds / rowDuration))
	tiles := max((rows+tile-1)/tile, 1)
	return tiles * tile
}

// configSearchPaths is swapped in tests to keep the working directory out of the search
var configSearchPaths = GetDefaultConfigPaths

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment into Settings and validates it
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_config").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, search paths and environment bindings, then reads the config file
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := configSearchPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()
	bindEnvVars()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Defaults are complete; run without a file.
			return nil
		}
		return errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Build()
	}

	return nil
}

// WriteDefaultConfig writes the embedded default configuration to path
func WriteDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(path, []byte(getDefaultConfig()), 0o644); err != nil {
		return errors.New(err).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		// The file is embedded at build time.
		panic(fmt.Sprintf("embedded config.yaml missing: %v", err))
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
