// Package config loads the indexer's environment-variable bootstrap into
// a validated Config value.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config is the indexer's complete environment-variable configuration.
type Config struct {
	BtcDataDir             string
	OrdiDataDir            string
	BtcRPCHost             string
	BtcRPCUser             string
	BtcRPCPass             string
	IndexPreviousOutputVal bool
	LogLevel               string
	MetricsAddr            string
}

// Error names the environment variable that was missing or invalid, so
// startup can abort with a user-visible message naming the variable.
type Error struct {
	Var string
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Var, e.Msg)
}

// Load reads the recognized environment variables via getenv (so tests can
// supply a fake environment without touching the real one) and returns a
// validated Config.
func Load(getenv func(string) string) (Config, error) {
	cfg := Config{
		LogLevel:    "info",
		MetricsAddr: "",
	}

	cfg.BtcDataDir = strings.TrimSpace(getenv("btc_data_dir"))
	if cfg.BtcDataDir == "" {
		return Config{}, &Error{Var: "btc_data_dir", Msg: "required"}
	}

	cfg.OrdiDataDir = strings.TrimSpace(getenv("ordi_data_dir"))
	if cfg.OrdiDataDir == "" {
		return Config{}, &Error{Var: "ordi_data_dir", Msg: "required"}
	}

	cfg.BtcRPCHost = strings.TrimSpace(getenv("btc_rpc_host"))
	cfg.BtcRPCUser = getenv("btc_rpc_user")
	cfg.BtcRPCPass = getenv("btc_rpc_pass")

	if raw := strings.TrimSpace(getenv("index_previous_output_value")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, &Error{Var: "index_previous_output_value", Msg: "must be a boolean"}
		}
		cfg.IndexPreviousOutputVal = v
	}

	if raw := strings.TrimSpace(getenv("log_level")); raw != "" {
		cfg.LogLevel = strings.ToLower(raw)
	}
	if !allowedLogLevels[cfg.LogLevel] {
		return Config{}, &Error{Var: "log_level", Msg: fmt.Sprintf("invalid level %q", cfg.LogLevel)}
	}

	cfg.MetricsAddr = strings.TrimSpace(getenv("metrics_addr"))

	return cfg, nil
}

var allowedLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}
