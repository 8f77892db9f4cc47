package config

import (
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"currency-ledger/shared"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"

	DefaultWALDir       = "./wal/ledger"
	DefaultSnapshotPath = "./wal/ledger.snapshot"
)

type Config struct {
	Commission     decimal.Decimal
	MinValue       decimal.Decimal
	MasterAccounts map[shared.Currency]string
	Currencies     []shared.CurrencyInfo
	Rates          map[shared.Currency]decimal.Decimal
	Storage        StorageConfig
	Log            LogConfig
}

type StorageConfig struct {
	Driver       string
	WALDir       string
	SnapshotPath string
	DatabaseURL  string
}

type LogConfig struct {
	Level       string
	Development bool
}

// ConfigTmp mirrors the yaml file. Decimals are kept as strings so that no
// precision is lost before they reach decimal.NewFromString.
type ConfigTmp struct {
	Commission     string            `yaml:"commission,omitempty"`
	MinValue       string            `yaml:"min_value,omitempty"`
	MasterAccounts map[string]string `yaml:"master_accounts,omitempty"`
	Currencies     map[string]string `yaml:"currencies,omitempty"`
	Rates          map[string]string `yaml:"rates,omitempty"`
	Storage        struct {
		Driver       string `yaml:"driver,omitempty"`
		WALDir       string `yaml:"wal_dir,omitempty"`
		SnapshotPath string `yaml:"snapshot_path,omitempty"`
		DatabaseURL  string `yaml:"database_url,omitempty"`
	} `yaml:"storage"`
	Log struct {
		Level       string `yaml:"level,omitempty"`
		Development bool   `yaml:"development,omitempty"`
	} `yaml:"log"`
}

func Default() Config {
	return Config{
		Commission:     decimal.RequireFromString("0.05"),
		MinValue:       decimal.RequireFromString("0.00001"),
		MasterAccounts: map[shared.Currency]string{},
		Currencies: []shared.CurrencyInfo{
			{Code: shared.EUR, Name: "Euro"},
			{Code: shared.RUB, Name: "Russian ruble"},
			{Code: shared.USD, Name: "US dollar"},
		},
		Rates: map[shared.Currency]decimal.Decimal{
			shared.USD: decimal.NewFromInt(65),
			shared.EUR: decimal.NewFromInt(75),
			shared.RUB: decimal.NewFromInt(1),
		},
		Storage: StorageConfig{
			Driver:       DriverMemory,
			WALDir:       DefaultWALDir,
			SnapshotPath: DefaultSnapshotPath,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the optional yaml file at path,
// and finally the environment (a .env file in the working directory is loaded
// first if present).
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := getYaml(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	// a missing .env is normal outside development
	_ = godotenv.Load()
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getYaml(path string, cfg *Config) error {
	f, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}

	if tmp.Commission != "" {
		if cfg.Commission, err = decimal.NewFromString(tmp.Commission); err != nil {
			return errors.Wrapf(err, "incorrect 'commission' param in yaml config (correct format is 0.05)")
		}
	}
	if tmp.MinValue != "" {
		if cfg.MinValue, err = decimal.NewFromString(tmp.MinValue); err != nil {
			return errors.Wrapf(err, "incorrect 'min_value' param in yaml config (correct format is 0.00001)")
		}
	}

	for code, id := range tmp.MasterAccounts {
		cfg.MasterAccounts[shared.NormalizeCurrency(code)] = strings.TrimSpace(id)
	}

	if len(tmp.Currencies) > 0 {
		cfg.Currencies = cfg.Currencies[:0]
		for code, name := range tmp.Currencies {
			cfg.Currencies = append(cfg.Currencies, shared.CurrencyInfo{Code: shared.NormalizeCurrency(code), Name: name})
		}
		sort.Slice(cfg.Currencies, func(i, j int) bool { return cfg.Currencies[i].Code < cfg.Currencies[j].Code })
	}

	if len(tmp.Rates) > 0 {
		cfg.Rates = make(map[shared.Currency]decimal.Decimal, len(tmp.Rates))
		for code, raw := range tmp.Rates {
			rate, err := decimal.NewFromString(raw)
			if err != nil {
				return errors.Wrapf(err, "incorrect rate for %s in yaml config", code)
			}
			cfg.Rates[shared.NormalizeCurrency(code)] = rate
		}
	}

	if tmp.Storage.Driver != "" {
		cfg.Storage.Driver = strings.ToLower(tmp.Storage.Driver)
	}
	if tmp.Storage.WALDir != "" {
		cfg.Storage.WALDir = tmp.Storage.WALDir
	}
	if tmp.Storage.SnapshotPath != "" {
		cfg.Storage.SnapshotPath = tmp.Storage.SnapshotPath
	}
	if tmp.Storage.DatabaseURL != "" {
		cfg.Storage.DatabaseURL = tmp.Storage.DatabaseURL
	}
	if tmp.Log.Level != "" {
		cfg.Log.Level = tmp.Log.Level
	}
	cfg.Log.Development = cfg.Log.Development || tmp.Log.Development
	return nil
}

// applyEnv overrides selected keys from LEDGER_* variables.
func applyEnv(cfg *Config) error {
	cfg.Storage.Driver = strings.ToLower(getEnv("LEDGER_STORAGE_DRIVER", cfg.Storage.Driver))
	cfg.Storage.DatabaseURL = getEnv("LEDGER_DATABASE_URL", cfg.Storage.DatabaseURL)
	cfg.Storage.WALDir = getEnv("LEDGER_WAL_DIR", cfg.Storage.WALDir)
	cfg.Storage.SnapshotPath = getEnv("LEDGER_SNAPSHOT_PATH", cfg.Storage.SnapshotPath)
	cfg.Log.Level = getEnv("LEDGER_LOG_LEVEL", cfg.Log.Level)
	if raw, ok := os.LookupEnv("LEDGER_LOG_DEVELOPMENT"); ok {
		cfg.Log.Development = raw == "true" || raw == "1"
	}

	if raw, ok := os.LookupEnv("LEDGER_COMMISSION"); ok {
		commission, err := decimal.NewFromString(raw)
		if err != nil {
			return errors.Wrap(err, "incorrect LEDGER_COMMISSION")
		}
		cfg.Commission = commission
	}

	// LEDGER_MASTER_ACCOUNTS=USD=id1,EUR=id2
	if raw, ok := os.LookupEnv("LEDGER_MASTER_ACCOUNTS"); ok && raw != "" {
		for _, pair := range strings.Split(raw, ",") {
			code, id, found := strings.Cut(pair, "=")
			if !found {
				return errors.Errorf("incorrect LEDGER_MASTER_ACCOUNTS entry %q (correct format is USD=<id>)", pair)
			}
			cfg.MasterAccounts[shared.NormalizeCurrency(code)] = strings.TrimSpace(id)
		}
	}
	return nil
}

func (c Config) Validate() error {
	if c.Commission.IsNegative() || c.Commission.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.Errorf("commission must be in [0, 1), got %s", c.Commission.String())
	}
	if !c.MinValue.IsPositive() {
		return errors.Errorf("min_value must be positive, got %s", c.MinValue.String())
	}
	if len(c.Currencies) == 0 {
		return errors.New("currency catalog is empty")
	}
	for _, info := range c.Currencies {
		rate, ok := c.Rates[info.Code]
		if !ok || !rate.IsPositive() {
			return errors.Errorf("no positive rate configured for %s", info.Code)
		}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrapf(err, "incorrect log level")
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("storage.database_url is required for the postgres driver")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// NewLogger builds a zap logger writing to stderr, so command output stays
// machine readable.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if c.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.OutputPaths = []string{"stderr"}

	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "incorrect log level")
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
