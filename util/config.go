package util

// Runtime config
var (
	BindAddress   string
	DBPath        string
	SessionSecret []byte
	LogLevel      string
)

// Bootstrap defaults for the seeded root account. The default password
// is publicly known and must be changed before production exposure.
const (
	DefaultUsername = "root"
	DefaultPassword = "default"
)

// Environment variable names understood at startup.
const (
	BindAddressEnvVar   = "BIND_ADDRESS"
	DBPathEnvVar        = "DB_PATH"
	SessionSecretEnvVar = "SESSION_SECRET"
	LogLevelEnvVar      = "LOG_LEVEL"
	PasswordEnvVar      = "ROOT_PASSWORD"
)
