package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Flags   FeatureFlagsConfig
	Routing RoutingConfig
	Kafka   KafkaConfig
	Notify  NotifyConfig
	Bus     BusConfig
	Events  EventingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Kafka.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CADDELLE_APP_ENV" required:"true"`
	Port         string `envconfig:"CADDELLE_APP_PORT" required:"true"`
	ServiceName  string `envconfig:"CADDELLE_SERVICE_NAME" default:"ops-backend"`
	LogLevel     string `envconfig:"CADDELLE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CADDELLE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CADDELLE_DB_DSN"`
	Driver string `envconfig:"CADDELLE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CADDELLE_DB_HOST"`
	Port     int    `envconfig:"CADDELLE_DB_PORT" default:"5432"`
	User     string `envconfig:"CADDELLE_DB_USER"`
	Password string `envconfig:"CADDELLE_DB_PASSWORD"`
	Name     string `envconfig:"CADDELLE_DB_NAME"`
	SSLMode  string `envconfig:"CADDELLE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CADDELLE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CADDELLE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CADDELLE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CADDELLE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CADDELLE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CADDELLE_REDIS_ADDR"`
	Password     string        `envconfig:"CADDELLE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CADDELLE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CADDELLE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CADDELLE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CADDELLE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CADDELLE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CADDELLE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"CADDELLE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"CADDELLE_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CADDELLE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CADDELLE_AUTO_MIGRATE" default:"false"`
}

// RoutingConfig overlays the static event routing defaults. Keys are event
// type tags, values are bus addresses.
type RoutingConfig struct {
	Overrides map[string]string `envconfig:"CADDELLE_ROUTING_OVERRIDES"`
}

// KafkaConfig drives the external event publisher. Mode selects the
// dual-write behavior during the topic migration window.
type KafkaConfig struct {
	Mode           string            `envconfig:"CADDELLE_KAFKA_MODE" default:"off"`
	Brokers        string            `envconfig:"CADDELLE_KAFKA_BROKERS"`
	Topics         map[string]string `envconfig:"CADDELLE_KAFKA_TOPICS"`
	MaxAttempts    int               `envconfig:"CADDELLE_KAFKA_MAX_ATTEMPTS" default:"5"`
	BatchTimeoutMS int               `envconfig:"CADDELLE_KAFKA_BATCH_TIMEOUT_MS" default:"5"`
	FlushTimeout   time.Duration     `envconfig:"CADDELLE_KAFKA_FLUSH_TIMEOUT" default:"10s"`
}

// Enabled reports whether the external publisher participates at all.
func (k KafkaConfig) Enabled() bool {
	return k.NormalizedMode() != KafkaModeOff
}

// Live reports whether external publish failures count as reliability signals.
func (k KafkaConfig) Live() bool {
	return k.NormalizedMode() == KafkaModeLive
}

func (k KafkaConfig) NormalizedMode() string {
	return strings.ToLower(strings.TrimSpace(k.Mode))
}

func (k KafkaConfig) validate() error {
	switch k.NormalizedMode() {
	case KafkaModeOff:
		return nil
	case KafkaModeShadow, KafkaModeLive:
	default:
		return fmt.Errorf("invalid kafka mode %q (expected off, shadow, or live)", k.Mode)
	}
	if strings.TrimSpace(k.Brokers) == "" {
		return fmt.Errorf("kafka brokers are required when mode is %s", k.NormalizedMode())
	}
	if len(k.Topics) == 0 {
		return fmt.Errorf("kafka topic mapping is required when mode is %s", k.NormalizedMode())
	}
	for eventType, topic := range k.Topics {
		if strings.TrimSpace(topic) == "" {
			return fmt.Errorf("kafka topic for event type %q is empty", eventType)
		}
	}
	return nil
}

// BrokerList splits the comma-separated broker string.
func (k KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type NotifyConfig struct {
	Channel          string `envconfig:"CADDELLE_NOTIFY_CHANNEL" default:"caddelle.changed-aggregates"`
	SubscriberBuffer int    `envconfig:"CADDELLE_NOTIFY_SUBSCRIBER_BUFFER" default:"32"`
}

type BusConfig struct {
	QueueSize int `envconfig:"CADDELLE_BUS_QUEUE_SIZE" default:"256"`
}

type EventingConfig struct {
	SchemaVersion  int           `envconfig:"CADDELLE_EVENTS_SCHEMA_VERSION" default:"1"`
	IdempotencyTTL time.Duration `envconfig:"CADDELLE_EVENTS_IDEMPOTENCY_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	partValues := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range partDBEnvVars {
		if partValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
