package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration parses values like "5s" or "250ms". Unset or invalid values
// yield fallback.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// GetEnvBool accepts anything strconv.ParseBool does.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// SDP delivery modes.
const (
	SDPDeliveryDirect = "direct"
	SDPDeliveryFile   = "file"
)

// RTP port modes.
const (
	PortModeFixed   = "fixed"
	PortModeDynamic = "dynamic"
)

// Server is the full runtime configuration of the distribution server.
type Server struct {
	ListenAddr string
	AdminAddr  string
	MediaDir   string
	SDPDir     string
	FFmpegBin  string

	MaxConnections int
	ReadTimeout    time.Duration

	SDPDelivery    string
	SDPWaitTimeout time.Duration

	RTPPortMode string
	RTPPortMin  int
	RTPPortMax  int

	SkipBuild bool

	LogLevel  string
	LogFormat string
}

// FromEnv assembles a Server config from the process environment.
func FromEnv() Server {
	return Server{
		ListenAddr:     GetEnv("LISTEN_ADDR", ":9000"),
		AdminAddr:      adminAddr(),
		MediaDir:       GetEnv("MEDIA_DIR", "videos"),
		SDPDir:         GetEnv("SDP_DIR", "."),
		FFmpegBin:      GetEnv("FFMPEG_BIN", "ffmpeg"),
		MaxConnections: GetEnvInt("MAX_CONNECTIONS", 0),
		ReadTimeout:    GetEnvDuration("READ_TIMEOUT", 0),
		SDPDelivery:    strings.ToLower(GetEnv("SDP_DELIVERY", SDPDeliveryDirect)),
		SDPWaitTimeout: GetEnvDuration("SDP_WAIT_TIMEOUT", 5*time.Second),
		RTPPortMode:    strings.ToLower(GetEnv("RTP_PORT_MODE", PortModeFixed)),
		RTPPortMin:     GetEnvInt("RTP_PORT_MIN", 5004),
		RTPPortMax:     GetEnvInt("RTP_PORT_MAX", 5998),
		SkipBuild:      GetEnvBool("SKIP_BUILD", false),
		LogLevel:       GetEnv("LOG_LEVEL", "info"),
		LogFormat:      GetEnv("LOG_FORMAT", "json"),
	}
}

// adminAddr returns "" when ADMIN_ADDR is "off", which disables the admin listener.
func adminAddr() string {
	addr := GetEnv("ADMIN_ADDR", ":9090")
	if strings.EqualFold(addr, "off") {
		return ""
	}
	return addr
}

// Validate reports every invalid setting at once.
func (c Server) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("LISTEN_ADDR must not be empty"))
	}
	if c.MediaDir == "" {
		errs = append(errs, errors.New("MEDIA_DIR must not be empty"))
	}
	if c.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("MAX_CONNECTIONS must be >= 0, got %d", c.MaxConnections))
	}
	switch c.SDPDelivery {
	case SDPDeliveryDirect, SDPDeliveryFile:
	default:
		errs = append(errs, fmt.Errorf("SDP_DELIVERY must be %q or %q, got %q", SDPDeliveryDirect, SDPDeliveryFile, c.SDPDelivery))
	}
	switch c.RTPPortMode {
	case PortModeFixed, PortModeDynamic:
	default:
		errs = append(errs, fmt.Errorf("RTP_PORT_MODE must be %q or %q, got %q", PortModeFixed, PortModeDynamic, c.RTPPortMode))
	}
	if c.RTPPortMode == PortModeDynamic && (c.RTPPortMin <= 0 || c.RTPPortMax > 65531 || c.RTPPortMin > c.RTPPortMax) {
		errs = append(errs, fmt.Errorf("invalid RTP port range %d-%d", c.RTPPortMin, c.RTPPortMax))
	}
	return errors.Join(errs...)
}
