package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// App mode & server
	Mode        string
	ServerAddr  string
	TLSCertFile string
	TLSKeyFile  string
	LogLevel    string

	// Auth
	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	// Storage
	StoreDriver    string
	DatabaseDSN    string
	MigrationsPath string

	// Kafka
	KafkaBroker    string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaPartition int
	KafkaReadTO    time.Duration
	KafkaWriteTO   time.Duration
	WorkerCount    int

	// Cassandra
	CassandraHost     string
	CassandraKeyspace string
	CassandraUsername string
	CassandraPassword string
	CassandraTimeout  time.Duration
	CassandraDC       string

	// Groups seeded at server start; groups are read-only over HTTP.
	Groups []GroupSeed
}

// GroupSeed describes one topic group from the config file. An empty slug is
// derived from the title.
type GroupSeed struct {
	Title       string `mapstructure:"title"`
	Slug        string `mapstructure:"slug"`
	Description string `mapstructure:"description"`
}

var cfg *Config

// Init loads the config using Viper and returns it
func Init() *Config {
	v := viper.New()
	setDefaults(v)

	// Load env variables
	v.AutomaticEnv()

	// Optional config file support
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // ignore error if no file

	cfg = fromViper(v)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("MODE", "server")
	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("JWT_ACCESS_TTL", "24h")
	v.SetDefault("JWT_REFRESH_TTL", "168h")

	v.SetDefault("STORE_DRIVER", "cassandra")
	v.SetDefault("MIGRATIONS_PATH", "./migrations/cassandra")

	v.SetDefault("KAFKA_BROKER", "localhost:29092")
	v.SetDefault("KAFKA_TOPIC", "blog-events")
	v.SetDefault("KAFKA_GROUP_ID", "cascade-worker")
	v.SetDefault("KAFKA_PARTITION", 0)
	v.SetDefault("KAFKA_READ_TIMEOUT", "10s")
	v.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")
	v.SetDefault("WORKER_COUNT", 0)

	v.SetDefault("CASSANDRA_HOST", "localhost")
	v.SetDefault("CASSANDRA_KEYSPACE", "blogapp")
	v.SetDefault("CASSANDRA_TIMEOUT", "10s")
	// Optional: Cassandra username/password/DC can be empty
}

func fromViper(v *viper.Viper) *Config {
	c := &Config{
		Mode:              v.GetString("MODE"),
		ServerAddr:        v.GetString("SERVER_ADDR"),
		TLSCertFile:       v.GetString("TLS_CERT_FILE"),
		TLSKeyFile:        v.GetString("TLS_KEY_FILE"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTAccessTTL:      parseDuration(v.GetString("JWT_ACCESS_TTL"), 24*time.Hour),
		JWTRefreshTTL:     parseDuration(v.GetString("JWT_REFRESH_TTL"), 7*24*time.Hour),
		StoreDriver:       v.GetString("STORE_DRIVER"),
		DatabaseDSN:       v.GetString("DATABASE_DSN"),
		MigrationsPath:    v.GetString("MIGRATIONS_PATH"),
		KafkaBroker:       v.GetString("KAFKA_BROKER"),
		KafkaTopic:        v.GetString("KAFKA_TOPIC"),
		KafkaGroupID:      v.GetString("KAFKA_GROUP_ID"),
		KafkaPartition:    v.GetInt("KAFKA_PARTITION"),
		KafkaReadTO:       parseDuration(v.GetString("KAFKA_READ_TIMEOUT"), 10*time.Second),
		KafkaWriteTO:      parseDuration(v.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
		WorkerCount:       v.GetInt("WORKER_COUNT"),
		CassandraHost:     v.GetString("CASSANDRA_HOST"),
		CassandraKeyspace: v.GetString("CASSANDRA_KEYSPACE"),
		CassandraUsername: v.GetString("CASSANDRA_USERNAME"),
		CassandraPassword: v.GetString("CASSANDRA_PASSWORD"),
		CassandraTimeout:  parseDuration(v.GetString("CASSANDRA_TIMEOUT"), 10*time.Second),
		CassandraDC:       v.GetString("CASSANDRA_DC"),
	}
	_ = v.UnmarshalKey("groups", &c.Groups)
	return c
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// Get returns the loaded config instance
func Get() *Config {
	return cfg
}
