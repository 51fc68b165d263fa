// conf/validate.go

package conf

import (
	"fmt"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct and reports every problem at once
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) []string{
		validateInputSettings,
		validateSpectralSettings,
		validateDisplaySettings,
		validateDetectorSettings,
		validateMQTTSettings,
		validateDatastoreSettings,
		validateWebServerSettings,
	}
	for _, validate := range validators {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateInputSettings(s *Settings) []string {
	var errs []string
	switch s.Input.Kind {
	case InputRaw:
		if s.Input.SampleRate <= 0 {
			errs = append(errs, "input.samplerate must be positive for raw input")
		}
		if s.Input.Path == "" {
			errs = append(errs, "input.path is required for raw input")
		}
	case InputWAV:
		if s.Input.Path == "" || s.Input.Path == "-" {
			errs = append(errs, "input.path must name a WAV file")
		}
	case InputSoundcard, InputRTLSDR, InputSynthetic:
		if s.Input.SampleRate <= 0 {
			errs = append(errs, fmt.Sprintf("input.samplerate must be positive for %s input", s.Input.Kind))
		}
	default:
		errs = append(errs, fmt.Sprintf("input.kind %q is not one of raw, wav, soundcard, rtlsdr, synthetic", s.Input.Kind))
	}
	if s.ReadsStdin() && s.SysExReadsStdin() {
		errs = append(errs, "raw input and sysex ingest cannot both read standard input")
	}
	return errs
}

func validateSpectralSettings(s *Settings) []string {
	var errs []string
	sp := s.Spectral

	if sp.TileWidth <= 0 || sp.TileHeight <= 0 {
		errs = append(errs, "spectral tile dimensions must be positive")
		return errs
	}
	if sp.Bins <= 0 || sp.Bins%sp.TileWidth != 0 {
		errs = append(errs, fmt.Sprintf("spectral.bins (%d) must be a positive multiple of %d", sp.Bins, sp.TileWidth))
	}
	if overlap := s.OverlapBins(); overlap < 0 || overlap >= sp.Bins {
		errs = append(errs, fmt.Sprintf("spectral.overlap %.3f gives %d overlapping bins, outside [0, %d)", sp.Overlap, overlap, sp.Bins))
	}
	if sp.LogScale != 10 && sp.LogScale != 20 {
		errs = append(errs, fmt.Sprintf("spectral.logscale must be 10 or 20, got %d", sp.LogScale))
	}
	return errs
}

func validateDisplaySettings(s *Settings) []string {
	var errs []string
	d := s.Display

	if d.QueueCapacity < 1 {
		errs = append(errs, "display.queuecapacity must be at least 1")
	}
	if d.DrainLimit < 1 {
		errs = append(errs, "display.drainlimit must be at least 1")
	}
	if d.FPS < 1 || d.FPS > 240 {
		errs = append(errs, fmt.Sprintf("display.fps must be between 1 and 240, got %d", d.FPS))
	}
	if d.HeightSeconds < 0 {
		errs = append(errs, "display.heightseconds cannot be negative")
	}
	// A zero-width magnitude range is clamped at use time; an inverted one is a typo.
	if d.MagHi < d.MagLo {
		errs = append(errs, fmt.Sprintf("display.maghi (%g) is below display.maglo (%g)", d.MagHi, d.MagLo))
	}
	return errs
}

func validateDetectorSettings(s *Settings) []string {
	var errs []string
	seen := make(map[string]bool, len(s.Detectors))
	for i, d := range s.Detectors {
		if d.Name == "" {
			errs = append(errs, fmt.Sprintf("detectors[%d].name is required", i))
			continue
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Sprintf("detector name %q is used twice", d.Name))
		}
		seen[d.Name] = true
		if d.Kind == "" {
			errs = append(errs, fmt.Sprintf("detectors[%d].kind is required", i))
		}
	}
	return errs
}

func validateMQTTSettings(s *Settings) []string {
	var errs []string
	if (s.MQTT.Enabled || s.Ingest.MQTT.Enabled) && s.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when MQTT publishing or ingestion is enabled")
	}
	if s.MQTT.QoS > 2 {
		errs = append(errs, fmt.Sprintf("mqtt.qos must be 0, 1 or 2, got %d", s.MQTT.QoS))
	}
	if s.Ingest.MQTT.Enabled && s.Ingest.MQTT.Topic == "" {
		errs = append(errs, "ingest.mqtt.topic is required when MQTT ingestion is enabled")
	}
	return errs
}

func validateDatastoreSettings(s *Settings) []string {
	if !s.Datastore.Enabled {
		return nil
	}
	switch s.Datastore.Type {
	case "sqlite":
		if s.Datastore.SQLite.Path == "" {
			return []string{"datastore.sqlite.path is required"}
		}
	case "mysql":
		if s.Datastore.MySQL.DSN == "" {
			return []string{"datastore.mysql.dsn is required"}
		}
	default:
		return []string{fmt.Sprintf("datastore.type %q is not sqlite or mysql", s.Datastore.Type)}
	}
	return nil
}

func validateWebServerSettings(s *Settings) []string {
	if s.WebServer.Enabled && s.WebServer.Listen == "" {
		return []string{"webserver.listen is required when the web server is enabled"}
	}
	return nil
}
