package config

import "strings"

// normalize expands user paths and fills in zero values before validation.
func (c *Config) normalize() error {
	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.CatalogPath, err = expandPath(c.Paths.CatalogPath); err != nil {
		return err
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)

	if c.Workers.Count <= 0 {
		c.Workers.Count = defaultWorkerCount
	}
	if c.Workers.PollInterval <= 0 {
		c.Workers.PollInterval = defaultPollInterval
	}
	if c.Workers.ErrorRetryInterval <= 0 {
		c.Workers.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workers.OperationTimeout <= 0 {
		c.Workers.OperationTimeout = defaultOperationTimeout
	}

	if c.Audit.RequestTimeout <= 0 {
		c.Audit.RequestTimeout = defaultAuditTimeout
	}
	if strings.TrimSpace(c.Audit.UserAgent) == "" {
		c.Audit.UserAgent = defaultUserAgent
	}
	if c.Lookup.RequestTimeout <= 0 {
		c.Lookup.RequestTimeout = defaultLookupTimeout
	}
	if strings.TrimSpace(c.Lookup.UserAgent) == "" {
		c.Lookup.UserAgent = defaultUserAgent
	}

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}
