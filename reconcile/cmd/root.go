package cmd

import (
	"fmt"
	"os"

	"github.com/ivanpirog/coloredcobra"
	"github.com/pelletier/go-toml"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/howeyc/reconcile"
	"github.com/howeyc/reconcile/session"
	"github.com/howeyc/reconcile/source"
	csvsource "github.com/howeyc/reconcile/source/csv"
	iifsource "github.com/howeyc/reconcile/source/iif"
	qifsource "github.com/howeyc/reconcile/source/qif"
)

var configPath string
var journalPath string
var ignorePath string
var rulesPath string

// sourceConfig is one statement file declaration in the config.
type sourceConfig struct {
	Name       string  `toml:"name"`
	File       string  `toml:"file"`
	Account    string  `toml:"account"`
	Currency   string  `toml:"currency"`
	DateFormat string  `toml:"date_format"`
	Delimiter  string  `toml:"delimiter"`
	Negate     bool    `toml:"negate"`
	Scale      float64 `toml:"scale"`
}

type appConfig struct {
	Journal    string  `toml:"journal"`
	IgnoreFile string  `toml:"ignore_file"`
	Rules      string  `toml:"rules"`
	WindowDays int     `toml:"window_days"`
	Tolerance  float64 `toml:"tolerance"`

	QIF []sourceConfig `toml:"qif"`
	CSV []sourceConfig `toml:"csv"`
	IIF []sourceConfig `toml:"iif"`
}

func loadConfig() (*appConfig, error) {
	cfg := &appConfig{}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// flags, then environment, override the file
	if journalPath != "" {
		cfg.Journal = journalPath
	}
	if ignorePath != "" {
		cfg.IgnoreFile = ignorePath
	}
	if rulesPath != "" {
		cfg.Rules = rulesPath
	}
	if cfg.Journal == "" {
		cfg.Journal = os.Getenv("RECONCILE_JOURNAL")
	}
	if cfg.IgnoreFile == "" {
		cfg.IgnoreFile = os.Getenv("RECONCILE_IGNORE_FILE")
	}
	if cfg.Journal == "" {
		return nil, fmt.Errorf("no journal configured: set journal in %s or pass --journal", configPath)
	}
	return cfg, nil
}

func (cfg *appConfig) registry() *source.Registry {
	registry := source.NewRegistry()
	for _, c := range cfg.QIF {
		registry.Register(&qifsource.Source{
			SourceName: c.Name,
			File:       c.File,
			Account:    c.Account,
			Currency:   c.Currency,
			DateFormat: c.DateFormat,
			Negate:     c.Negate,
		})
	}
	for _, c := range cfg.CSV {
		scale := decimal.Zero
		if c.Scale != 0 {
			scale = decimal.NewFromFloat(c.Scale)
		}
		registry.Register(&csvsource.Source{
			SourceName: c.Name,
			File:       c.File,
			Account:    c.Account,
			Currency:   c.Currency,
			DateFormat: c.DateFormat,
			Delimiter:  c.Delimiter,
			Negate:     c.Negate,
			Scale:      scale,
		})
	}
	for _, c := range cfg.IIF {
		registry.Register(&iifsource.Source{
			SourceName: c.Name,
			File:       c.File,
			Account:    c.Account,
			Currency:   c.Currency,
		})
	}
	return registry
}

func openSession() (*session.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	scfg := session.DefaultConfig(cfg.Journal)
	scfg.IgnoreFile = cfg.IgnoreFile
	scfg.Rules = cfg.Rules
	if cfg.WindowDays > 0 {
		scfg.Match.WindowDays = cfg.WindowDays
	}
	if cfg.Tolerance > 0 {
		scfg.Match.Tolerance = decimal.NewFromFloat(cfg.Tolerance)
		scfg.BalanceTolerance = decimal.NewFromFloat(cfg.Tolerance)
	} else {
		scfg.BalanceTolerance = reconcile.DefaultTolerance
	}
	return session.Open(scfg, cfg.registry())
}

var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile external statements against a plain-text journal",
	Long: `reconcile matches bank, card and accounting exports against a
beancount-style journal, proposes merge candidates for each statement
record, and applies the accepted ones as journal edits.`,
	SilenceUsage: true,
}

func Execute() {
	coloredcobra.Init(&coloredcobra.Config{
		RootCmd:         rootCmd,
		Headings:        coloredcobra.HiCyan + coloredcobra.Bold,
		Commands:        coloredcobra.HiYellow + coloredcobra.Bold,
		ExecName:        coloredcobra.Bold,
		Flags:           coloredcobra.Bold,
		NoExtraNewlines: true,
	})
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "reconcile.toml", "Configuration file.")
	rootCmd.PersistentFlags().StringVarP(&journalPath, "journal", "f", "", "Journal file (overrides config).")
	rootCmd.PersistentFlags().StringVar(&ignorePath, "ignore-file", "", "Ignored-entry file (overrides config).")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Account prediction rules file (overrides config).")
}
