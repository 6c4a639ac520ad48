package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cbodonnell/wordrush/pkg/game/constants"
	"github.com/cbodonnell/wordrush/pkg/log"
	"github.com/cbodonnell/wordrush/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	AuthAnonymous = "anonymous"
	AuthFirebase  = "firebase"

	// EnvPrefix is prepended to the upper-cased flag name to form its environment variable
	EnvPrefix = "WORDRUSH"
)

type Config struct {
	Bind        string
	Port        int
	Prefix      string
	TLSCert     string
	TLSKey      string
	DatabaseURL string

	WordsFile     string
	VectorsFile   string
	OracleURL     string
	OracleTimeout time.Duration
	Lemmatize     bool

	Auth                string
	FirebaseProjectID   string
	FirebaseCredentials string

	LeaderboardSize int
	SaveInterval    time.Duration
	LogLevel        string
	Profile         bool
	Version         bool
}

func (c *Config) Validate() error {
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.Prefix != "" && !strings.HasPrefix(c.Prefix, "/") {
		return fmt.Errorf("invalid prefix (must start with /): %s", c.Prefix)
	}
	if _, err := url.Parse(c.DatabaseURL); err != nil {
		return fmt.Errorf("invalid database url: %v", err)
	}
	if c.VectorsFile != "" && c.OracleURL != "" {
		return errors.New("--vectors-file and --oracle-url are mutually exclusive")
	}
	if c.OracleTimeout <= 0 {
		return fmt.Errorf("invalid oracle timeout: %s", c.OracleTimeout)
	}
	switch c.Auth {
	case AuthAnonymous:
	case AuthFirebase:
		if c.FirebaseProjectID == "" && c.FirebaseCredentials == "" {
			return errors.New("--auth=firebase requires --firebase-project-id or --firebase-credentials")
		}
	default:
		return fmt.Errorf("invalid auth provider (must be %s or %s): %s", AuthAnonymous, AuthFirebase, c.Auth)
	}
	if c.LeaderboardSize < 1 {
		return fmt.Errorf("invalid leaderboard size: %d", c.LeaderboardSize)
	}
	if c.SaveInterval <= 0 {
		return fmt.Errorf("invalid save interval: %s", c.SaveInterval)
	}
	if _, err := log.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) Scheme() string {
	if c.TLSCert != "" && c.TLSKey != "" {
		return "https"
	}
	return "http"
}

// RunFunc starts the server once flags and environment have been resolved.
type RunFunc func(ctx context.Context, cfg *Config) error

// NewCommand builds the root command. Every flag can also be set through
// the environment, e.g. --database-url as WORDRUSH_DATABASE_URL.
func NewCommand(cfg *Config, run RunFunc) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "wordrush",
		Short:         "A real-time multiplayer word association race.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       version.Get(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: WORDRUSH_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: WORDRUSH_PORT)")
	fs.StringVar(&cfg.Prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: WORDRUSH_PREFIX)")
	fs.StringVar(&cfg.TLSCert, "tls-cert", "", "path to tls certificate (env: WORDRUSH_TLS_CERT)")
	fs.StringVar(&cfg.TLSKey, "tls-key", "", "path to tls keyfile (env: WORDRUSH_TLS_KEY)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "memory://", "memory://, sqlite://path or postgres://... (env: WORDRUSH_DATABASE_URL)")
	fs.StringVar(&cfg.WordsFile, "words-file", "", "toml file with starter, targets and neighbors (env: WORDRUSH_WORDS_FILE)")
	fs.StringVar(&cfg.VectorsFile, "vectors-file", "", "word2vec or GloVe text vectors used for options (env: WORDRUSH_VECTORS_FILE)")
	fs.StringVar(&cfg.OracleURL, "oracle-url", "", "remote nearest-neighbour service (env: WORDRUSH_ORACLE_URL)")
	fs.DurationVar(&cfg.OracleTimeout, "oracle-timeout", constants.OracleTimeout, "time allowed for a single neighbour lookup (env: WORDRUSH_ORACLE_TIMEOUT)")
	fs.BoolVar(&cfg.Lemmatize, "lemmatize", true, "reduce options to their base form (env: WORDRUSH_LEMMATIZE)")
	fs.StringVar(&cfg.Auth, "auth", AuthAnonymous, "identity provider: anonymous or firebase (env: WORDRUSH_AUTH)")
	fs.StringVar(&cfg.FirebaseProjectID, "firebase-project-id", "", "firebase project id (env: WORDRUSH_FIREBASE_PROJECT_ID)")
	fs.StringVar(&cfg.FirebaseCredentials, "firebase-credentials", "", "path to a firebase service account key (env: WORDRUSH_FIREBASE_CREDENTIALS)")
	fs.IntVar(&cfg.LeaderboardSize, "leaderboard-size", constants.LeaderboardSize, "number of players shown on the leaderboard (env: WORDRUSH_LEADERBOARD_SIZE)")
	fs.DurationVar(&cfg.SaveInterval, "save-interval", 30*time.Second, "time between full state snapshots (env: WORDRUSH_SAVE_INTERVAL)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "error, warn, info, debug or trace (env: WORDRUSH_LOG_LEVEL)")
	fs.BoolVar(&cfg.Profile, "profile", false, "register net/http/pprof handlers (env: WORDRUSH_PROFILE)")
	fs.BoolVarP(&cfg.Version, "version", "V", false, "display version and exit (env: WORDRUSH_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("wordrush {{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
