package config

const (
	defaultLogDir              = "~/.local/share/presswatch/logs"
	defaultCatalogPath         = "~/.local/share/presswatch/papers.csv"
	defaultAPIBind             = "127.0.0.1:7821"
	defaultWorkerCount         = 3
	defaultPollInterval        = 2
	defaultErrorRetryInterval  = 10
	defaultOperationTimeout    = 120
	defaultAuditTimeout        = 30
	defaultLookupTimeout       = 30
	defaultUserAgent           = "Presswatch/0.1 (+site audit bot)"
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:      defaultLogDir,
			CatalogPath: defaultCatalogPath,
			APIBind:     defaultAPIBind,
		},
		Workers: Workers{
			Count:              defaultWorkerCount,
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			OperationTimeout:   defaultOperationTimeout,
		},
		Audit: Audit{
			RequestTimeout: defaultAuditTimeout,
			UserAgent:      defaultUserAgent,
		},
		Lookup: Lookup{
			RequestTimeout: defaultLookupTimeout,
			UserAgent:      defaultUserAgent,
			ContactPages:   []string{"/contact", "/contact-us", "/about", "/about-us"},
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Jobs:           true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
