package constants

const (
	// Config keys (config.yaml and DAYSTREAK_* environment variables)
	ConfigKeyDatabase = "database"
	ConfigKeyUser     = "user"
	ConfigKeyTimezone = "timezone"
	ConfigKeyDebug    = "debug"

	// Config file location
	ConfigFileName = "config"
	ConfigFileType = "yaml"
	ConfigDirName  = "daystreak"
	DatabaseName   = "daystreak.db"
	LogDirName     = "logs"
	LogFileName    = "daystreak.log"

	// Environment
	EnvPrefix       = "DAYSTREAK"
	EnvConfigDir    = "DAYSTREAK_CONFIG_DIR"
	EnvDBConnection = "DAYSTREAK_DB_CONNECTION"
	EnvTestPostgres = "DAYSTREAK_TEST_POSTGRES"

	// Default Settings Values
	DefaultTimezone = "Local" // Use system local timezone by default
)
