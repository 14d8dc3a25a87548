package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerURL       string
	ListenAddr      string
	GRPCAddr        string
	Slots           int
	StatsInterval   time.Duration
	PollInterval    time.Duration
	LockMouse       bool
	RecordDir       string
	CodecPrefs      bool
	AudioBufferSec  int
	STUNServers     []string
	AutoPlay        []int
	VideoAspect     float64
	ShutdownTimeout time.Duration
}

func Load() *Config {
	return &Config{
		ServerURL:       strings.TrimRight(getEnv("SERVER_URL", "http://localhost"), "/"),
		ListenAddr:      getEnv("LISTEN_ADDR", ":8090"),
		GRPCAddr:        getEnv("GRPC_ADDR", ":8091"),
		Slots:           getEnvInt("SLOTS", 2),
		StatsInterval:   time.Duration(getEnvInt("STATS_INTERVAL_MS", 1000)) * time.Millisecond,
		PollInterval:    time.Duration(getEnvInt("POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		LockMouse:       getEnvBool("LOCK_MOUSE", false),
		RecordDir:       getEnv("RECORD_DIR", ""),
		CodecPrefs:      getEnvBool("CODEC_PREFERENCES", true),
		AudioBufferSec:  getEnvInt("AUDIO_BUFFER_SEC", 5),
		STUNServers:     getEnvList("STUN_SERVERS", []string{"stun:stun.l.google.com:19302"}),
		AutoPlay:        getEnvInts("AUTO_PLAY"),
		VideoAspect:     getEnvFloat("VIDEO_ASPECT", 16.0/9.0),
		ShutdownTimeout: 5 * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getEnvInts parses a comma list of positive integers, skipping anything else.
func getEnvInts(key string) []int {
	var out []int
	for _, s := range getEnvList(key, nil) {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			out = append(out, n)
		}
	}
	return out
}
