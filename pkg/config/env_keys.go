package config

// EnvPrefix scopes every environment variable read by envconfig.
const EnvPrefix = "FREIGHTLINK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Canonical env var names, referenced by error messages and tests.
const (
	EnvAppEnv                 = "FREIGHTLINK_APP_ENV"
	EnvPort                   = "FREIGHTLINK_APP_PORT"
	EnvDBDSN                  = "FREIGHTLINK_DB_DSN"
	EnvDBHost                 = "FREIGHTLINK_DB_HOST"
	EnvDBUser                 = "FREIGHTLINK_DB_USER"
	EnvDBName                 = "FREIGHTLINK_DB_NAME"
	EnvRedisURL               = "FREIGHTLINK_REDIS_URL"
	EnvJWTSecret              = "FREIGHTLINK_JWT_SECRET"
	EnvJWTIssuer              = "FREIGHTLINK_JWT_ISSUER"
	EnvJWTExpMins             = "FREIGHTLINK_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "FREIGHTLINK_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "FREIGHTLINK_GCP_PROJECT_ID"
	EnvGCSBucket              = "FREIGHTLINK_GCS_BUCKET_NAME"
	EnvPubSubDomainTopic      = "FREIGHTLINK_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub        = "FREIGHTLINK_PUBSUB_DOMAIN_SUBSCRIPTION"
	EnvPubSubCMRSub           = "FREIGHTLINK_PUBSUB_CMR_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
