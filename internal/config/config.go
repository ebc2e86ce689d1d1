package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/validation"
)

// Config holds the cinerank API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Cache      CacheConfig      `yaml:"cache"`
	Rewrite    RewriteConfig    `yaml:"rewrite"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Ranking    RankingConfig    `yaml:"ranking"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Feedback   FeedbackConfig   `yaml:"feedback"`
	Search     SearchConfig     `yaml:"search"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"` // default: determined by env
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys" validate:"dive,required"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port               int `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeoutSec     int `yaml:"read_timeout_sec"`
	WriteTimeoutSec    int `yaml:"write_timeout_sec"`
	ShutdownSec        int `yaml:"shutdown_timeout_sec"`
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" validate:"min=0"` // per client IP, 0 = off
	MaxBodyBytes       int `yaml:"max_body_bytes"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs" validate:"required,min=1,dive,required"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db" validate:"min=0"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig shapes the movie vector index.
type StorageConfig struct {
	VectorDim       int    `yaml:"vector_dim" validate:"min=1"`
	Algorithm       string `yaml:"algorithm" validate:"omitempty,oneof=HNSW FLAT"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	SeedFile        string `yaml:"seed_file"` // optional JSON catalog loaded at startup
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit" validate:"min=0"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit" validate:"min=0"` // 0 = unlimited
	Action            string `yaml:"action" validate:"omitempty,oneof=warn reject"`
}

// EmbeddingConfig holds the query embedding provider settings.
type EmbeddingConfig struct {
	Provider         string        `yaml:"provider" validate:"required"`
	APIKey           string        `yaml:"api_key"`
	BaseURL          string        `yaml:"base_url"`
	Model            string        `yaml:"model" validate:"required"`
	Dimensions       int           `yaml:"dimensions" validate:"min=0"`
	QueryInstruction string        `yaml:"query_instruction"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	Budget           BudgetConfig  `yaml:"budget"`
}

// CacheConfig holds the two-level cache settings.
type CacheConfig struct {
	L1MaxEntries  int           `yaml:"l1_max_entries" validate:"min=0"`
	L1MaxBytes    int64         `yaml:"l1_max_bytes" validate:"min=0"`
	L1TTL         time.Duration `yaml:"l1_ttl"`
	L2Enabled     bool          `yaml:"l2_enabled"`
	L2TTL         time.Duration `yaml:"l2_ttl"`
	L2Timeout     time.Duration `yaml:"l2_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	ResultTTL     time.Duration `yaml:"result_ttl"`
	MovieTTL      time.Duration `yaml:"movie_ttl"`
}

// RewriteConfig holds query rewrite strategy weights.
type RewriteConfig struct {
	Disabled       bool    `yaml:"disabled"`
	Expansion      float64 `yaml:"expansion" validate:"min=0,max=1"`
	Simplification float64 `yaml:"simplification" validate:"min=0,max=1"`
	Intent         float64 `yaml:"intent" validate:"min=0,max=1"`
	Profile        float64 `yaml:"profile" validate:"min=0,max=1"`
}

// ScoringConfig holds the candidate blend weights.
type ScoringConfig struct {
	SemanticWeight float64 `yaml:"semantic_weight" validate:"min=0"`
	LexicalWeight  float64 `yaml:"lexical_weight" validate:"min=0"`
	MetadataWeight float64 `yaml:"metadata_weight" validate:"min=0"`
	MinSemantic    float64 `yaml:"min_semantic" validate:"min=0,max=1"`
}

// RankingWeights are the hybrid feature weights.
type RankingWeights struct {
	Semantic   float64 `yaml:"semantic" validate:"min=0"`
	Lexical    float64 `yaml:"lexical" validate:"min=0"`
	Metadata   float64 `yaml:"metadata" validate:"min=0"`
	Title      float64 `yaml:"title" validate:"min=0"`
	Genre      float64 `yaml:"genre" validate:"min=0"`
	Popularity float64 `yaml:"popularity" validate:"min=0"`
	Rating     float64 `yaml:"rating" validate:"min=0"`
	VoteCount  float64 `yaml:"vote_count" validate:"min=0"`
	Year       float64 `yaml:"year" validate:"min=0"`
	Freshness  float64 `yaml:"freshness" validate:"min=0"`
	Feedback   float64 `yaml:"feedback" validate:"min=0"`
}

// DefaultRankingWeights returns the stock hybrid feature weights. A YAML
// weights table only overrides the features it names.
func DefaultRankingWeights() RankingWeights {
	return RankingWeights{
		Semantic:   1.0,
		Lexical:    1.0,
		Metadata:   1.0,
		Title:      2.0,
		Genre:      1.5,
		Popularity: 1.1,
		Rating:     1.3,
		VoteCount:  1.0,
		Year:       1.2,
		Freshness:  0.9,
		Feedback:   1.0,
	}
}

// RankingConfig holds ranker settings. All-zero Weights mean the stock weights.
type RankingConfig struct {
	Strategy              string         `yaml:"strategy" validate:"omitempty,oneof=hybrid semantic popularity temporal diversity"`
	Weights               RankingWeights `yaml:"weights"`
	PersonalizationWeight float64        `yaml:"personalization_weight" validate:"min=0,max=1"`
	RelevanceWeight       float64        `yaml:"relevance_weight" validate:"min=0,max=1"`
	DiversityWeight       float64        `yaml:"diversity_weight" validate:"min=0,max=1"`
	GuardWindow           int            `yaml:"guard_window" validate:"min=0"`
}

// EvaluationConfig holds relevance evaluation settings.
type EvaluationConfig struct {
	Threshold float64 `yaml:"threshold" validate:"min=0,max=1"`
	Ks        []int   `yaml:"ks" validate:"dive,min=1"`
}

// FeedbackConfig holds interaction learning settings. A zero half-life
// keeps signals until cleared.
type FeedbackConfig struct {
	HistoryLimit  int           `yaml:"history_limit" validate:"min=0"`
	DecayHalfLife time.Duration `yaml:"decay_half_life"`
	DecayInterval time.Duration `yaml:"decay_interval"`
}

// SearchConfig holds orchestrator settings.
type SearchConfig struct {
	CandidatePoolSize int      `yaml:"candidate_pool_size" validate:"min=0,max=1000"`
	SessionCapacity   int      `yaml:"session_capacity" validate:"min=0"`
	WarmOnStart       bool     `yaml:"warm_on_start"`
	WarmConcurrency   int      `yaml:"warm_concurrency" validate:"min=0"`
	WarmQueries       []string `yaml:"warm_queries" validate:"dive,required"`
}

// RetrievalConfig holds upstream timeouts and the ANN circuit breaker.
type RetrievalConfig struct {
	EmbedTimeout    time.Duration `yaml:"embed_timeout"`
	ANNTimeout      time.Duration `yaml:"ann_timeout"`
	CatalogTimeout  time.Duration `yaml:"catalog_timeout"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerOpenFor  time.Duration `yaml:"breaker_open_for"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	cfg := Config{Ranking: RankingConfig{Weights: DefaultRankingWeights()}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	setInt(&c.HTTP.ReadTimeoutSec, 10)
	setInt(&c.HTTP.WriteTimeoutSec, 10)
	setInt(&c.HTTP.ShutdownSec, 10)
	setInt(&c.HTTP.MaxBodyBytes, 1<<20)
	setInt(&c.Database.ReadinessTimeout, 10)

	setInt(&c.Storage.VectorDim, 1536)
	if c.Storage.Algorithm == "" {
		c.Storage.Algorithm = "HNSW"
	}
	setInt(&c.Storage.HNSWM, 16)
	setInt(&c.Storage.HNSWEFConstruct, 200)

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Budget.Action == "" {
		c.Embedding.Budget.Action = "warn"
	}
	setDuration(&c.Embedding.CacheTTL, 7*24*time.Hour)

	setInt(&c.Cache.L1MaxEntries, 10000)
	if c.Cache.L1MaxBytes <= 0 {
		c.Cache.L1MaxBytes = 64 << 20
	}
	setDuration(&c.Cache.L1TTL, 30*time.Minute)
	setDuration(&c.Cache.L2TTL, 24*time.Hour)
	setDuration(&c.Cache.L2Timeout, 50*time.Millisecond)
	setDuration(&c.Cache.SweepInterval, 5*time.Minute)
	setDuration(&c.Cache.ResultTTL, 30*time.Minute)
	setDuration(&c.Cache.MovieTTL, 6*time.Hour)

	if c.Rewrite == (RewriteConfig{Disabled: c.Rewrite.Disabled}) {
		c.Rewrite.Expansion = 0.3
		c.Rewrite.Simplification = 0.2
		c.Rewrite.Intent = 0.4
		c.Rewrite.Profile = 0.5
	}

	if c.Scoring == (ScoringConfig{}) {
		c.Scoring = ScoringConfig{SemanticWeight: 0.7, LexicalWeight: 0.2, MetadataWeight: 0.1, MinSemantic: 0.1}
	}

	if c.Ranking.Strategy == "" {
		c.Ranking.Strategy = "hybrid"
	}
	if c.Ranking.Weights == (RankingWeights{}) {
		c.Ranking.Weights = DefaultRankingWeights()
	}
	if c.Ranking.RelevanceWeight == 0 && c.Ranking.DiversityWeight == 0 {
		c.Ranking.RelevanceWeight = 0.6
		c.Ranking.DiversityWeight = 0.4
	}
	setInt(&c.Ranking.GuardWindow, 5)

	if c.Evaluation.Threshold == 0 {
		c.Evaluation.Threshold = 0.5
	}
	if len(c.Evaluation.Ks) == 0 {
		c.Evaluation.Ks = []int{1, 3, 5, 10}
	}

	setInt(&c.Feedback.HistoryLimit, 100)
	if c.Feedback.DecayHalfLife > 0 {
		setDuration(&c.Feedback.DecayInterval, time.Hour)
	}

	setInt(&c.Search.CandidatePoolSize, 50)
	setInt(&c.Search.SessionCapacity, 1000)
	setInt(&c.Search.WarmConcurrency, 4)

	setDuration(&c.Retrieval.EmbedTimeout, 2*time.Second)
	setDuration(&c.Retrieval.ANNTimeout, time.Second)
	setDuration(&c.Retrieval.CatalogTimeout, 500*time.Millisecond)
	if c.Retrieval.BreakerFailures == 0 {
		c.Retrieval.BreakerFailures = 5
	}
	setDuration(&c.Retrieval.BreakerOpenFor, 30*time.Second)
}

// Validate checks the configuration for correctness. Every problem found is
// reported as a domain.ConfigError.
func (c *Config) Validate() error {
	var errs []error
	for _, fe := range validation.Struct(c) {
		errs = append(errs, domain.NewConfigError(fe.Field, fe.Reason()))
	}

	if c.Scoring.SemanticWeight+c.Scoring.LexicalWeight+c.Scoring.MetadataWeight == 0 {
		errs = append(errs, domain.NewConfigError("scoring", "weights must not all be zero"))
	}
	if c.Ranking.RelevanceWeight+c.Ranking.DiversityWeight == 0 {
		errs = append(errs, domain.NewConfigError("ranking", "relevance_weight and diversity_weight must not both be zero"))
	}
	if c.Embedding.Dimensions > 0 && c.Embedding.Dimensions != c.Storage.VectorDim {
		errs = append(errs, domain.NewConfigError("embedding.dimensions",
			fmt.Sprintf("must match storage.vector_dim (%d)", c.Storage.VectorDim)))
	}
	if c.Embedding.Budget.MonthlyTokenLimit > 0 && c.Embedding.Budget.DailyTokenLimit > c.Embedding.Budget.MonthlyTokenLimit {
		errs = append(errs, domain.NewConfigError("embedding.budget.daily_token_limit",
			"must not exceed monthly_token_limit"))
	}
	if c.Cache.L2Enabled && c.Cache.L2TTL < c.Cache.L1TTL {
		errs = append(errs, domain.NewConfigError("cache.l2_ttl", "must not be shorter than l1_ttl"))
	}

	return domain.JoinConfigErrors(errs)
}

func setInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func setDuration(v *time.Duration, def time.Duration) {
	if *v <= 0 {
		*v = def
	}
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// relative to this source file, for tests run from package dirs
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
