package config

// EnvPrefix namespaces every environment variable the backend reads.
const EnvPrefix = "lokabekas"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "LOKABEKAS_APP_ENV"
	EnvPort   = "LOKABEKAS_APP_PORT"
	EnvDBDSN  = "LOKABEKAS_DB_DSN"
	EnvDBHost = "LOKABEKAS_DB_HOST"
	EnvDBUser = "LOKABEKAS_DB_USER"
	EnvDBName = "LOKABEKAS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
