package config

import (
	"errors"
	"os"
	"runtime"
	"strings"
	"time"

	coreerrors "connascence/internal/core/errors"

	"github.com/BurntSushi/toml"
)

// Load reads, defaults and validates a TOML config file. Every failure is a
// CONFIGURATION_ERROR so callers can abort before analysing anything.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, coreerrors.AddContext(
			coreerrors.Wrap(err, coreerrors.CodeConfiguration, "read config"),
			coreerrors.CtxPath, path,
		)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, coreerrors.AddContext(err, coreerrors.CtxPath, path)
	}
	return cfg, nil
}

// Parse decodes TOML text the same way Load does.
func Parse(data string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeConfiguration, "decode config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, coreerrors.Newf(coreerrors.CodeConfiguration, "unknown config keys: %s", strings.Join(keys, ", "))
	}

	ApplyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	normalize(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, coreerrors.Wrap(errors.Join(errs...), coreerrors.CodeConfiguration, "invalid config")
	}
	return &cfg, nil
}

// Default returns a validated config with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	normalize(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if len(cfg.WatchPaths) == 0 {
		cfg.WatchPaths = []string{"."}
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "node_modules", "vendor", "__pycache__", ".venv", "dist", "build"}
	}

	if strings.TrimSpace(cfg.Analysis.Mode) == "" {
		cfg.Analysis.Mode = "batch"
	}
	if cfg.Analysis.Workers <= 0 {
		cfg.Analysis.Workers = runtime.NumCPU()
	}
	if cfg.Analysis.FileTimeout <= 0 {
		cfg.Analysis.FileTimeout = 30 * time.Second
	}
	if cfg.Analysis.IncludeTests == nil {
		cfg.Analysis.IncludeTests = boolPtr(true)
	}

	if cfg.Cache.MaxEntries <= 0 {
		cfg.Cache.MaxEntries = 2048
	}
	if cfg.Pool.MaxPerCategory <= 0 {
		cfg.Pool.MaxPerCategory = cfg.Analysis.Workers
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if cfg.Watch.MaxEventsPerSecond <= 0 {
		cfg.Watch.MaxEventsPerSecond = 20
	}
	if cfg.Watch.Burst <= 0 {
		cfg.Watch.Burst = 10
	}

	applyDetectorDefaults(&cfg.Detectors)

	if cfg.Compliance.MaxFunctionLines <= 0 {
		cfg.Compliance.MaxFunctionLines = 60
	}
	if cfg.Compliance.MaxNesting <= 0 {
		cfg.Compliance.MaxNesting = 4
	}
	if cfg.Compliance.FlagRecursion == nil {
		cfg.Compliance.FlagRecursion = boolPtr(true)
	}
	if cfg.Compliance.FlagUnboundedLoops == nil {
		cfg.Compliance.FlagUnboundedLoops = boolPtr(true)
	}
	if cfg.Duplication.MinBlockStatements <= 0 {
		cfg.Duplication.MinBlockStatements = 5
	}

	if strings.TrimSpace(cfg.Policy.Mode) == "" {
		cfg.Policy.Mode = PolicyModeStandard
	}
	if cfg.Policy.SeverityWeights == nil {
		cfg.Policy.SeverityWeights = map[string]float64{}
	}
	for sev, weight := range map[string]float64{"low": 0.5, "medium": 1, "high": 2.5, "critical": 5} {
		if _, ok := cfg.Policy.SeverityWeights[sev]; !ok {
			cfg.Policy.SeverityWeights[sev] = weight
		}
	}
	for i := range cfg.Policy.Rules {
		if strings.TrimSpace(cfg.Policy.Rules[i].Severity) == "" {
			cfg.Policy.Rules[i].Severity = "high"
		}
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "connascence-history.db"
	}
	if strings.TrimSpace(cfg.History.ProjectKey) == "" {
		cfg.History.ProjectKey = "default"
	}
	if cfg.History.BusyTimeout <= 0 {
		cfg.History.BusyTimeout = 5 * time.Second
	}
	if cfg.History.Retention <= 0 {
		cfg.History.Retention = 200
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "connascence"
	}
}

func applyDetectorDefaults(d *Detectors) {
	if d.MagicLiteral.AllowedNumbers == nil {
		d.MagicLiteral.AllowedNumbers = []float64{0, 1, -1, 2, 10, 100, 1000}
	}
	if d.MagicLiteral.AllowedStrings == nil {
		d.MagicLiteral.AllowedStrings = []string{"", " ", "\n", ",", ".", "/", ":", "-", "_", "utf-8", "utf8", "r", "w", "rb", "wb", "__main__"}
	}
	if d.MagicLiteral.RepeatThreshold <= 0 {
		d.MagicLiteral.RepeatThreshold = 3
	}

	if d.Position.MaxPositionalParams <= 0 {
		d.Position.MaxPositionalParams = 3
	}
	if d.Position.MediumAt <= 0 {
		d.Position.MediumAt = 4
	}
	if d.Position.HighAt <= 0 {
		d.Position.HighAt = 7
	}
	if d.Position.CriticalAt <= 0 {
		d.Position.CriticalAt = 11
	}

	if d.GodObject.MaxMethods <= 0 {
		d.GodObject.MaxMethods = 20
	}
	if d.GodObject.MaxFields <= 0 {
		d.GodObject.MaxFields = 15
	}
	if d.GodObject.MaxLines <= 0 {
		d.GodObject.MaxLines = 500
	}

	if d.Algorithm.MinBlockStatements <= 0 {
		d.Algorithm.MinBlockStatements = 4
	}
	if d.Timing.SleepCalls == nil {
		d.Timing.SleepCalls = []string{"time.sleep", "sleep", "asyncio.sleep", "time.Sleep", "setTimeout", "setInterval", "Thread.sleep"}
	}
	if d.Values.MinOccurrences <= 0 {
		d.Values.MinOccurrences = 3
	}
	if d.Execution.MinSequence <= 0 {
		d.Execution.MinSequence = 4
	}
}

func normalize(cfg *Config) {
	cfg.Analysis.Mode = strings.ToLower(strings.TrimSpace(cfg.Analysis.Mode))
	cfg.Policy.Mode = strings.ToLower(strings.TrimSpace(cfg.Policy.Mode))

	weights := make(map[string]float64, len(cfg.Policy.SeverityWeights))
	for sev, w := range cfg.Policy.SeverityWeights {
		weights[strings.ToLower(strings.TrimSpace(sev))] = w
	}
	cfg.Policy.SeverityWeights = weights

	for i := range cfg.Policy.Rules {
		rule := &cfg.Policy.Rules[i]
		rule.ID = strings.TrimSpace(rule.ID)
		rule.Metric = strings.ToLower(strings.TrimSpace(rule.Metric))
		rule.Severity = strings.ToLower(strings.TrimSpace(rule.Severity))
	}

	if len(cfg.Languages) > 0 {
		langs := make(map[string]Language, len(cfg.Languages))
		for id, lang := range cfg.Languages {
			exts := make([]string, 0, len(lang.Extensions))
			for _, ext := range lang.Extensions {
				ext = strings.ToLower(strings.TrimSpace(ext))
				if ext != "" && !strings.HasPrefix(ext, ".") {
					ext = "." + ext
				}
				exts = append(exts, ext)
			}
			lang.Extensions = exts
			langs[strings.ToLower(strings.TrimSpace(id))] = lang
		}
		cfg.Languages = langs
	}
}
