// defaults.go: default values for every configuration key
package conf

import (
	"strings"

	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for the configuration
func setDefaultConfig() {
	viper.SetDefault("main.name", "pysdr")

	// Logging
	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/pysdr.log")
	viper.SetDefault("logging.file_output.level", "debug")

	// Input
	viper.SetDefault("input.kind", InputSoundcard)
	viper.SetDefault("input.samplerate", 48000)
	viper.SetDefault("input.path", "-")
	viper.SetDefault("input.device", "")
	viper.SetDefault("input.rtlsdr.index", 0)
	viper.SetDefault("input.rtlsdr.frequency", 100_000_000)
	viper.SetDefault("input.rtlsdr.gain", 0)
	viper.SetDefault("input.synthetic.tones", []map[string]any{
		{"frequency": 10600.0, "amplitude": 0.5},
	})
	viper.SetDefault("input.synthetic.noise", 0.05)
	viper.SetDefault("input.synthetic.seed", 1)
	viper.SetDefault("input.synthetic.limit", 0)

	// Spectral pipeline
	viper.SetDefault("spectral.bins", 4096)
	viper.SetDefault("spectral.overlap", 0.75)
	viper.SetDefault("spectral.logscale", 10)
	viper.SetDefault("spectral.tilewidth", 1024)
	viper.SetDefault("spectral.tileheight", 1024)

	// Display
	viper.SetDefault("display.maglo", -45.0)
	viper.SetDefault("display.maghi", 5.0)
	viper.SetDefault("display.heightseconds", 0.0)
	viper.SetDefault("display.queuecapacity", 256)
	viper.SetDefault("display.drainlimit", 64)
	viper.SetDefault("display.fps", 30)
	viper.SetDefault("display.snapshot", "waterfall.png")

	// Detectors
	viper.SetDefault("detectors", []map[string]any{
		{"name": "meteor_echo", "kind": "meteor_echo", "enabled": true, "params": map[string]float64{}},
	})

	// Event bus
	viper.SetDefault("events.buffersize", 1000)
	viper.SetDefault("events.workers", 2)

	// Ingestion
	viper.SetDefault("ingest.sysex.enabled", false)
	viper.SetDefault("ingest.sysex.path", "")
	viper.SetDefault("ingest.mqtt.enabled", false)
	viper.SetDefault("ingest.mqtt.topic", "pysdr/ingest")

	// MQTT
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientid", "pysdr")
	viper.SetDefault("mqtt.topic", "pysdr/events")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retain", false)

	// Datastore
	viper.SetDefault("datastore.enabled", false)
	viper.SetDefault("datastore.type", "sqlite")
	viper.SetDefault("datastore.sqlite.path", "pysdr.db")
	viper.SetDefault("datastore.mysql.dsn", "")

	// Web server
	viper.SetDefault("webserver.enabled", false)
	viper.SetDefault("webserver.listen", ":8080")

	// Sentry
	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}

// bindEnvVars lets PYSDR_SPECTRAL_BINS style variables override any key
func bindEnvVars() {
	viper.SetEnvPrefix("PYSDR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}
