package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for both front ends.
type Config struct {
	Service ServiceConfig
	Audio   AudioConfig
	Session SessionConfig
	Log     LogConfig
	Chart   ChartConfig

	// EnvFiles lists the env files that were applied, in load order.
	EnvFiles []string
}

type ServiceConfig struct {
	APIBaseURL string
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	Container       string
}

type SessionConfig struct {
	ChunkSize     int
	RecordingName string
}

type LogConfig struct {
	Level  string
	Format string
	Dir    string
}

type ChartConfig struct {
	Width  int
	Height int
}

// Load resolves configuration from env files, environment variables and
// sensible defaults. Variables already present in the environment win over
// env file entries.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	envFiles, err := loadEnvFiles(home)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Service: ServiceConfig{
			APIBaseURL: strings.TrimRight(envOrDefault("FLOWMIC_API_BASE", "http://127.0.0.1:5000"), "/"),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("FLOWMIC_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("FLOWMIC_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("FLOWMIC_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("FLOWMIC_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("FLOWMIC_CHANNELS", 1),
			Container:       strings.ToLower(envOrDefault("FLOWMIC_AUDIO_CONTAINER", "wav")),
		},
		Session: SessionConfig{
			ChunkSize:     envOrDefaultInt("FLOWMIC_AUDIO_CHUNK_SIZE", 4096),
			RecordingName: strings.TrimSpace(os.Getenv("FLOWMIC_RECORDING_NAME")),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envOrDefault("FLOWMIC_LOG_LEVEL", "info")),
			Format: strings.ToLower(envOrDefault("FLOWMIC_LOG_FORMAT", "text")),
			Dir:    strings.TrimSpace(os.Getenv("FLOWMIC_LOG_DIR")),
		},
		Chart: ChartConfig{
			Width:  envOrDefaultInt("FLOWMIC_CHART_WIDTH", 480),
			Height: envOrDefaultInt("FLOWMIC_CHART_HEIGHT", 320),
		},
		EnvFiles: envFiles,
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.RecordingName == "" {
		cfg.Session.RecordingName = "recording." + cfg.Audio.Container
	}
	if cfg.Log.Format != "json" {
		cfg.Log.Format = "text"
	}
	if cfg.Chart.Width < 64 {
		cfg.Chart.Width = 480
	}
	if cfg.Chart.Height < 64 {
		cfg.Chart.Height = 320
	}

	return cfg, nil
}

// loadEnvFiles applies FLOWMIC_ENV_FILE, the per-user env file and ./.env in
// that order. An explicitly named file must exist; the others are optional.
func loadEnvFiles(home string) ([]string, error) {
	var loaded []string

	if explicit := strings.TrimSpace(os.Getenv("FLOWMIC_ENV_FILE")); explicit != "" {
		if err := godotenv.Load(explicit); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", explicit, err)
		}
		loaded = append(loaded, explicit)
	}

	for _, candidate := range []string{
		filepath.Join(home, ".config", "flowmic", "flowmic.env"),
		".env",
	} {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", candidate, err)
		}
		loaded = append(loaded, candidate)
	}
	return loaded, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
