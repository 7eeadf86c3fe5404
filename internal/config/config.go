package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Env   string `envconfig:"ENV" default:"dev"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL      string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMinConns int32  `envconfig:"DATABASE_MIN_CONNS" default:"2"`

	// Optional Redis backend for the session and embedding caches.
	// When unset both caches run in-memory.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`
	CheapModel          string `envconfig:"CHEAP_MODEL" default:"gpt-4o-mini"`
	PremiumModel        string `envconfig:"PREMIUM_MODEL" default:"gpt-4o"`
	ProviderTimeout     time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`

	// Retrieval tuning. The similarity threshold and boost multipliers were
	// calibrated on a small labeled fixture set and are expected to move as
	// the relevance corpus grows.
	MinSimilarity     float64 `envconfig:"MIN_SIMILARITY" default:"0.25"`
	RRFConstant       int     `envconfig:"RRF_CONSTANT" default:"60"`
	TitleExactBoost   float64 `envconfig:"TITLE_EXACT_BOOST" default:"3.0"`
	TitleMatchBoost   float64 `envconfig:"TITLE_MATCH_BOOST" default:"2.0"`
	OrgMatchBoost     float64 `envconfig:"ORG_MATCH_BOOST" default:"2.0"`
	CandidatePoolSize int     `envconfig:"CANDIDATE_POOL_SIZE" default:"50"`

	// Conversation tuning.
	ContextGrants      int     `envconfig:"CONTEXT_GRANTS" default:"5"`
	ClarifyAbove       int     `envconfig:"CLARIFY_ABOVE" default:"20"`
	ClarifyBelow       int     `envconfig:"CLARIFY_BELOW" default:"3"`
	EscalateThreshold  int     `envconfig:"ESCALATE_THRESHOLD" default:"30"`
	PremiumThreshold   int     `envconfig:"PREMIUM_THRESHOLD" default:"60"`
	MinConfidence      float64 `envconfig:"MIN_CONFIDENCE" default:"0.6"`

	SessionTTL        time.Duration `envconfig:"SESSION_TTL" default:"1h"`
	EmbeddingCacheTTL time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"1h"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CONVOCA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
