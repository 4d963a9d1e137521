package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"trademaker/internal/config"
)

// SetupLogger configures logx from the application config. Logs go to
// rotating files when a log directory is configured, to the console
// otherwise.
func SetupLogger(cfg *config.Config) error {
	logCfg := logx.LogConf{
		ServiceName: "trademaker",
		Mode:        "console",
		Encoding:    "plain",
		Level:       normalizeLevel(cfg.ConsoleLogLevel),
	}
	if strings.TrimSpace(cfg.LogDir) != "" {
		logCfg.Mode = "file"
		logCfg.Path = cfg.LogDir
		logCfg.Level = normalizeLevel(cfg.FileLogLevel)
		logCfg.KeepDays = 7
		logCfg.Rotation = "daily"
	}
	if err := logx.SetUp(logCfg); err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	return nil
}

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return "debug"
	case "warn", "warning":
		return "error" // logx has no warn level; map upwards
	case "error":
		return "error"
	case "severe", "fatal":
		return "severe"
	default:
		return "info"
	}
}

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Broker: %s (queue=%s exchange=%s routing_key=%s max_length=%d)",
			redactAMQP(cfg.Rabbit.URL), cfg.Rabbit.QueueName, cfg.Rabbit.Exchange, cfg.Rabbit.RoutingKey, cfg.Rabbit.QueueLength),
		fmt.Sprintf("Thresholds: open=%.4f%% close=%.4f%% (history=%d, base amount=%.2f)",
			cfg.Trading.ThresholdPct, cfg.Trading.AlignmentThresholdPct, cfg.Trading.HistorySize, cfg.Trading.BaseTradeAmount),
		fmt.Sprintf("Postgres mirror: %s", presence(strings.TrimSpace(cfg.PostgresDSN) != "")),
		fmt.Sprintf("Metrics: %s", presence(strings.TrimSpace(cfg.MetricsAddr) != "")),
		venueSectionLine(cfg),
	}
	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func venueSectionLine(cfg *config.Config) string {
	switch {
	case strings.TrimSpace(cfg.Venues.File) != "":
		return fmt.Sprintf("Venues config: %s", cfg.Venues.File)
	case cfg.Venues.Value != nil:
		return "Venues config: inline"
	default:
		return "Venues config: not configured"
	}
}

// redactAMQP hides credentials embedded in an AMQP URL.
func redactAMQP(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return url
	}
	return url[:scheme+3] + "***" + url[at:]
}
