package config

// EnvPrefix is the envconfig prefix shared by every process in this repo.
const EnvPrefix = "CADDELLE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "CADDELLE_DB_DSN"
	EnvDBHost = "CADDELLE_DB_HOST"
	EnvDBUser = "CADDELLE_DB_USER"
	EnvDBName = "CADDELLE_DB_NAME"

	KafkaModeOff    = "off"
	KafkaModeShadow = "shadow"
	KafkaModeLive   = "live"
)

var partDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
