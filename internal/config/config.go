package config

import (
	"os"
	"strconv"

	"github.com/go-yaml/yaml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	StorageMongo    = "mongodb"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Server Server `yaml:"server"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	Storage       string `yaml:"storage"` // mongodb, postgres, memory
	PostgresDsn   string `yaml:"postgresDsn"`
	MongoURI      string `yaml:"mongoUri"`
	MongoDatabase string `yaml:"mongoDatabase"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	RedisPassword string `yaml:"redisPassword"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	BcryptCost    int    `yaml:"bcryptCost"`
	EventBuffer   int    `yaml:"eventBuffer"`
}

func Default() Config {
	return Config{
		Server: Server{
			Listen:        ":8000",
			Storage:       StorageMongo,
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "quire",
			EventBuffer:   256,
		},
	}
}

// Load reads the yaml file at path on top of the defaults, then applies QUIRE_* environment
// overrides. A .env file in the working directory is loaded first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	config := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, err
		}
		defer file.Close()

		err = yaml.NewDecoder(file).Decode(&config)
		if err != nil {
			return Config{}, errors.Wrap(err, "failed to decode config")
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strings := map[string]*string{
		"QUIRE_LISTEN":         &c.Server.Listen,
		"QUIRE_STORAGE":        &c.Server.Storage,
		"QUIRE_POSTGRES_DSN":   &c.Server.PostgresDsn,
		"QUIRE_MONGO_URI":      &c.Server.MongoURI,
		"QUIRE_MONGO_DATABASE": &c.Server.MongoDatabase,
		"QUIRE_REDIS_ADDR":     &c.Server.RedisAddr,
		"QUIRE_REDIS_PASSWORD": &c.Server.RedisPassword,
		"QUIRE_TRACE_ENDPOINT": &c.Server.TraceEndpoint,
	}
	for key, dst := range strings {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"QUIRE_REDIS_DB":     &c.Server.RedisDB,
		"QUIRE_BCRYPT_COST":  &c.Server.BcryptCost,
		"QUIRE_EVENT_BUFFER": &c.Server.EventBuffer,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrapf(err, "invalid %s", key)
			}
			*dst = n
		}
	}

	if v, ok := lookup("QUIRE_ENABLE_TRACE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "invalid QUIRE_ENABLE_TRACE")
		}
		c.Server.EnableTrace = b
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Server.Storage {
	case StorageMongo:
		if c.Server.MongoURI == "" || c.Server.MongoDatabase == "" {
			return errors.New("mongodb storage requires mongoUri and mongoDatabase")
		}
	case StoragePostgres:
		if c.Server.PostgresDsn == "" {
			return errors.New("postgres storage requires postgresDsn")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q", c.Server.Storage)
	}
	if c.Server.EnableTrace && c.Server.TraceEndpoint == "" {
		return errors.New("enableTrace requires traceEndpoint")
	}
	if c.Server.EventBuffer < 0 {
		return errors.New("eventBuffer must not be negative")
	}
	return nil
}
