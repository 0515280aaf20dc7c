// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
	Gold      GoldConfig      `mapstructure:"gold"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Sitemap   SitemapConfig   `mapstructure:"sitemap"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Vector    VectorConfig    `mapstructure:"vector"`
	RAG       RAGConfig       `mapstructure:"rag"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the search/metrics HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// WarehouseConfig controls access to the Postgres warehouse and names the
// bronze/silver tables it holds.
type WarehouseConfig struct {
	DSN         string `mapstructure:"dsn"`
	URLTable    string `mapstructure:"url_table"`
	BronzeTable string `mapstructure:"bronze_table"`
	SilverTable string `mapstructure:"silver_table"`
	LinksTable  string `mapstructure:"links_table"`
}

// GoldConfig controls the SQLite gold store.
type GoldConfig struct {
	Path            string `mapstructure:"path"`
	ArticleTable    string `mapstructure:"article_table"`
	LinkStatusTable string `mapstructure:"link_status_table"`
	BatchSize       int    `mapstructure:"batch_size"`
}

// StorageConfig sets the GCS bucket and prefix for raw NDJSON partitions.
type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// SitemapConfig governs sitemap discovery.
type SitemapConfig struct {
	IndexURL   string `mapstructure:"index_url"`
	HostMarker string `mapstructure:"host_marker"`
	PostMarker string `mapstructure:"post_marker"`
	UserAgent  string `mapstructure:"user_agent"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	MaxParallel   int `mapstructure:"max_parallel"`
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
}

// ProbeConfig governs link liveness checking.
type ProbeConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	Concurrency    int `mapstructure:"concurrency"`
}

// ChunkingConfig sizes the token windows fed to the embedding model.
type ChunkingConfig struct {
	Size     int    `mapstructure:"size"`
	Overlap  int    `mapstructure:"overlap"`
	Encoding string `mapstructure:"encoding"`
}

// OpenAIConfig holds embedding API access.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// VectorConfig controls the SQLite vector store.
type VectorConfig struct {
	Path       string `mapstructure:"path"`
	Collection string `mapstructure:"collection"`
	Dims       int    `mapstructure:"dims"`
}

// RAGConfig governs the chunk/embed ingestion stage.
type RAGConfig struct {
	GroupSize   int `mapstructure:"group_size"`
	Concurrency int `mapstructure:"concurrency"`
}

// PubSubConfig holds metadata for run-summary notifications. Both fields
// empty disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BLOGPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("warehouse.url_table", "sitemap_urls")
	v.SetDefault("warehouse.bronze_table", "bronze_blogs")
	v.SetDefault("warehouse.silver_table", "silver_blogs")
	v.SetDefault("warehouse.links_table", "silver_content_links")
	v.SetDefault("gold.path", "gold.db")
	v.SetDefault("gold.article_table", "gold_blogs")
	v.SetDefault("gold.link_status_table", "gold_link_statuses")
	v.SetDefault("gold.batch_size", 1000)
	v.SetDefault("storage.prefix", "blogs")
	v.SetDefault("sitemap.index_url", "https://pybit.es/sitemap_index.xml")
	v.SetDefault("sitemap.host_marker", "pybit.es")
	v.SetDefault("sitemap.post_marker", "post-sitemap")
	v.SetDefault("sitemap.user_agent", "blogpipe/0.1")
	v.SetDefault("headless.max_parallel", 4)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("probe.timeout_seconds", 30)
	v.SetDefault("probe.concurrency", 16)
	v.SetDefault("chunking.size", 400)
	v.SetDefault("chunking.overlap", 50)
	v.SetDefault("chunking.encoding", "cl100k_base")
	v.SetDefault("openai.model", "text-embedding-3-small")
	v.SetDefault("vector.path", "vectors.db")
	v.SetDefault("vector.collection", "pybites_blogs")
	v.SetDefault("vector.dims", 1536)
	v.SetDefault("rag.group_size", 5)
	v.SetDefault("rag.concurrency", 2)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Connection
// details are checked where they are used; this catches the knobs that
// would otherwise fail deep inside a run.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Gold.BatchSize <= 0 {
		return fmt.Errorf("gold.batch_size must be > 0")
	}
	if c.Probe.TimeoutSeconds <= 0 {
		return fmt.Errorf("probe.timeout_seconds must be > 0")
	}
	if c.Probe.Concurrency <= 0 {
		return fmt.Errorf("probe.concurrency must be > 0")
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be > 0")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, chunking.size)")
	}
	if c.Vector.Dims <= 0 {
		return fmt.Errorf("vector.dims must be > 0")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// ProbeTimeout converts the probe timeout config into a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
