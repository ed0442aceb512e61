package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	backend      string
	serialDev    string
	baud         int
	serialReadTO time.Duration

	txMTU int

	logFormat string
	logLevel  string

	metricsAddr     string
	logMetricsEvery time.Duration

	linkEventBuffer int
	linkEventPolicy string

	mdnsEnable bool
	mdnsName   string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	backend := flag.String("backend", "serial", "Transport backend: serial|loop (loop self-tests client against server with no hardware)")
	serialDev := flag.String("serial", "/dev/ttyACM0", "Serial device path")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	serialReadTO := flag.Duration("serial-read-timeout", 50*time.Millisecond, "Serial read timeout")
	txMTU := flag.Int("tx-mtu", 64, "Maximum endpoint packet payload size, including header and trailer")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	linkEventBuffer := flag.Int("link-event-buffer", 16, "Per-subscriber link-event queue depth")
	linkEventPolicy := flag.String("link-event-policy", "drop", "Backpressure policy for slow link-event subscribers: drop|kick")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default legacylink-bridge-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.backend = *backend
	cfg.serialDev = *serialDev
	cfg.baud = *baud
	cfg.serialReadTO = *serialReadTO
	cfg.txMTU = *txMTU
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.linkEventBuffer = *linkEventBuffer
	cfg.linkEventPolicy = *linkEventPolicy
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open devices or listeners — only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.backend {
	case "serial", "loop":
	default:
		return fmt.Errorf("invalid backend: %s", c.backend)
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.linkEventPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid link-event-policy: %s", c.linkEventPolicy)
	}
	if c.txMTU < 8 {
		return fmt.Errorf("tx-mtu must be >= 8 (got %d)", c.txMTU)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	if c.linkEventBuffer <= 0 {
		return fmt.Errorf("link-event-buffer must be > 0 (got %d)", c.linkEventBuffer)
	}
	return nil
}

// applyEnvOverrides maps LEGACYLINK_* environment variables to config fields
// unless a corresponding flag was explicitly set. Boolean & numeric parsing is
// lax: empty values ignored. Duration accepts Go time.ParseDuration format.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	if _, ok := set["backend"]; !ok {
		if v, ok := get("LEGACYLINK_BACKEND"); ok && v != "" {
			c.backend = v
		}
	}
	if _, ok := set["serial"]; !ok {
		if v, ok := get("LEGACYLINK_SERIAL"); ok && v != "" {
			c.serialDev = v
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("LEGACYLINK_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.baud = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LEGACYLINK_BAUD: %w", err)
			}
		}
	}
	if _, ok := set["serial-read-timeout"]; !ok {
		if v, ok := get("LEGACYLINK_SERIAL_READ_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.serialReadTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LEGACYLINK_SERIAL_READ_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["tx-mtu"]; !ok {
		if v, ok := get("LEGACYLINK_TX_MTU"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.txMTU = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LEGACYLINK_TX_MTU: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("LEGACYLINK_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("LEGACYLINK_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("LEGACYLINK_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("LEGACYLINK_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LEGACYLINK_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["link-event-buffer"]; !ok {
		if v, ok := get("LEGACYLINK_LINK_EVENT_BUFFER"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.linkEventBuffer = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LEGACYLINK_LINK_EVENT_BUFFER: %w", err)
			}
		}
	}
	if _, ok := set["link-event-policy"]; !ok {
		if v, ok := get("LEGACYLINK_LINK_EVENT_POLICY"); ok && v != "" {
			c.linkEventPolicy = v
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("LEGACYLINK_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("LEGACYLINK_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return firstErr
}
