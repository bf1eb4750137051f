// Package config carga la configuración en capas:
// defaults -> archivo yaml (opcional) -> .env -> variables de entorno.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Source SourceConfig `koanf:"source"`
	Data   DataConfig   `koanf:"data"`
	Ingest IngestConfig `koanf:"ingest"`
	KNN    KNNConfig    `koanf:"knn"`
	Server ServerConfig `koanf:"server"`
	Mongo  MongoConfig  `koanf:"mongo"`
	Redis  RedisConfig  `koanf:"redis"`
	Log    LogConfig    `koanf:"log"`
}

type SourceConfig struct {
	// Path del dump de reviews (ej. movies.txt.gz descomprimido).
	Path string `koanf:"path" validate:"required"`
}

type DataConfig struct {
	// Dir donde quedan el dataset compacto y los registros.
	Dir string `koanf:"dir" validate:"required"`

	// RegistryBackend: file (gob) o badger.
	RegistryBackend string `koanf:"registry_backend" validate:"oneof=file badger"`
}

type IngestConfig struct {
	// StrictRecords limpia producto/usuario en cada registro.
	StrictRecords bool `koanf:"strict_records"`
}

type KNNConfig struct {
	Threshold      float64       `koanf:"threshold" validate:"gte=-1,lte=1"`
	MaxNeighbors   int           `koanf:"max_neighbors" validate:"gte=0"`
	Workers        int           `koanf:"workers" validate:"gte=1"`
	DefaultN       int           `koanf:"default_n" validate:"gte=1,lte=100"`
	MaxN           int           `koanf:"max_n" validate:"gtefield=DefaultN"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gte=0"`
}

type ServerConfig struct {
	Port string `koanf:"port" validate:"required,numeric"`
}

type MongoConfig struct {
	Enabled  bool   `koanf:"enabled"`
	URI      string `koanf:"uri" validate:"required_if=Enabled true"`
	Database string `koanf:"database" validate:"required_if=Enabled true"`
}

type RedisConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Addr     string        `koanf:"addr" validate:"required_if=Enabled true"`
	Password string        `koanf:"password"`
	TTL      time.Duration `koanf:"ttl" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// DefaultConfigPaths se revisan en orden; se usa el primero que exista.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

const ConfigPathEnvVar = "CONFIG_PATH"

func Default() *Config {
	return &Config{
		Source: SourceConfig{Path: "movies.txt"},
		Data:   DataConfig{Dir: "data", RegistryBackend: "file"},
		KNN: KNNConfig{
			Threshold:      0.1,
			Workers:        4,
			DefaultN:       3,
			MaxN:           50,
			RequestTimeout: 30 * time.Second,
		},
		Server: ServerConfig{Port: "8080"},
		Mongo:  MongoConfig{URI: "mongodb://localhost:27017", Database: "reviewrec"},
		Redis:  RedisConfig{Addr: "localhost:6379", TTL: 10 * time.Minute},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

// Load arma la configuración. Precedencia: ENV > .env > archivo > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: archivo %s: %w", path, err)
		}
	}

	// .env no pisa variables ya seteadas en el entorno
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: entorno: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config inválida: %w", err)
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings traduce variables de entorno a claves koanf. Las que no
// están acá se ignoran.
var envMappings = map[string]string{
	"source_path":       "source.path",
	"data_dir":          "data.dir",
	"registry_backend":  "data.registry_backend",
	"strict_records":    "ingest.strict_records",
	"knn_threshold":     "knn.threshold",
	"knn_max_neighbors": "knn.max_neighbors",
	"knn_workers":       "knn.workers",
	"knn_default_n":     "knn.default_n",
	"knn_max_n":         "knn.max_n",
	"request_timeout":   "knn.request_timeout",
	"port":              "server.port",
	"mongo_enabled":     "mongo.enabled",
	"mongo_uri":         "mongo.uri",
	"mongo_db":          "mongo.database",
	"redis_enabled":     "redis.enabled",
	"redis_addr":        "redis.addr",
	"redis_password":    "redis.password",
	"redis_ttl":         "redis.ttl",
	"log_level":         "log.level",
	"log_format":        "log.format",
}

func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}
