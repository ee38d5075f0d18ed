package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Keys recognized in env files. Process environment variables with the
// same names take precedence.
const (
	keyRedisCLI         = "REDIS_CLI"
	keyClientMode       = "CLIENT_MODE"
	keyCommandTimeout   = "COMMAND_TIMEOUT"
	keyDiscoveryTimeout = "DISCOVERY_TIMEOUT"
	keyNodeQPS          = "NODE_QPS"
	keyDebug            = "DEBUG"
	keyLogLevel         = "LOG_LEVEL"
	keyLogFile          = "LOG_FILE"
	keyDupsTempDir      = "DUPS_TEMP_DIR"
	keyDupsCompression  = "DUPS_COMPRESSION"
)

func loadEnvFile(path string) (*Config, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return values[key]
	}

	var (
		cfg  Config
		errs []string
	)
	parseCluster := func(prefix string, out *ClusterConfig) {
		out.Host = lookup(prefix + "_CLUSTER")
		out.Auth = lookup(prefix + "_AUTH")
		if v := lookup(prefix + "_PORT"); v != "" {
			port, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s_PORT: %q is not a number", prefix, v))
			}
			out.Port = port
		}
		if b, err := ParseBoolish(lookup(prefix + "_TLS")); err != nil {
			errs = append(errs, fmt.Sprintf("%s_TLS: %v", prefix, err))
		} else {
			out.TLS = b
		}
		if b, err := ParseBoolish(lookup(prefix + "_TLS_INSECURE")); err != nil {
			errs = append(errs, fmt.Sprintf("%s_TLS_INSECURE: %v", prefix, err))
		} else {
			out.TLSInsecure = b
		}
	}
	parseCluster("SOURCE", &cfg.Source)
	parseCluster("TARGET", &cfg.Target)

	cfg.Client.Binary = lookup(keyRedisCLI)
	cfg.Client.Mode = lookup(keyClientMode)
	parseDuration := func(key string, out *time.Duration) {
		v := lookup(key)
		if v == "" {
			return
		}
		d, err := parseSeconds(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*out = d
	}
	parseDuration(keyCommandTimeout, &cfg.Client.Timeout)
	parseDuration(keyDiscoveryTimeout, &cfg.Client.DiscoveryTimeout)
	if v := lookup(keyNodeQPS); v != "" {
		qps, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not a number", keyNodeQPS, v))
		}
		cfg.Client.QPS = qps
	}

	if b, err := ParseBoolish(lookup(keyDebug)); err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", keyDebug, err))
	} else {
		cfg.Debug = b
	}
	cfg.Log.Level = lookup(keyLogLevel)
	cfg.Log.File = lookup(keyLogFile)
	cfg.Dups.TempDir = lookup(keyDupsTempDir)
	cfg.Dups.Compression = lookup(keyDupsCompression)

	if len(errs) > 0 {
		return nil, &ValidationError{Path: path, Errors: errs}
	}
	return &cfg, nil
}

// parseSeconds accepts a Go duration ("90s", "2m") or a bare number of seconds.
func parseSeconds(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%q is neither seconds nor a duration", v)
	}
	return d, nil
}
