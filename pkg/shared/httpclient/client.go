package httpclient

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/codesentinel/codesentinel/pkg/shared/config"
)

// HclogAdapter adapts an hclog.Logger to the resty log.Logger interface.
type HclogAdapter struct {
	logger hclog.Logger
}

// NewHclogAdapter creates a new adapter that forwards messages to an hclog.Logger.
func NewHclogAdapter(logger hclog.Logger) resty.Logger {
	return &HclogAdapter{logger: logger}
}

// Errorf logs a message at error level.
func (a *HclogAdapter) Errorf(format string, v ...interface{}) {
	a.logger.Error(fmt.Sprintf(format, v...))
}

// Warnf logs a message at warning level.
func (a *HclogAdapter) Warnf(format string, v ...interface{}) {
	a.logger.Warn(fmt.Sprintf(format, v...))
}

// Infof logs a message at info level.
func (a *HclogAdapter) Infof(format string, v ...interface{}) {
	a.logger.Info(fmt.Sprintf(format, v...))
}

// Debugf logs a message at debug level.
func (a *HclogAdapter) Debugf(format string, v ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, v...))
}

// SetLoggerForResty sets the adapted hclog.Logger as the logger for resty.
func SetLoggerForResty(client *resty.Client, logger hclog.Logger) {
	client.SetLogger(NewHclogAdapter(logger))
}

// InitializeRestyClient builds a resty client from the http_client config
// section. The underlying *http.Client is shared with the host API and LLM
// SDK clients via HTTPClient.
func InitializeRestyClient(logger hclog.Logger, cfg *config.Config) *resty.Client {
	client := resty.New()
	if logger != nil {
		SetLoggerForResty(client, logger)
	}

	httpConfig := cfg.HTTPClient
	client.
		SetDebug(httpConfig.Debug).
		SetRetryCount(config.SetThen(httpConfig.RetryCount, 3)).
		SetRetryWaitTime(config.SetThen(httpConfig.RetryWaitTime, 1*time.Second)).
		SetRetryMaxWaitTime(config.SetThen(httpConfig.RetryMaxWaitTime, 16*time.Second)).
		SetTimeout(config.SetThen(httpConfig.Timeout, 60*time.Second)).
		SetTLSClientConfig(&tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: !config.GetBoolValue(httpConfig.TLSClientConfig, "Verify", true),
		})

	if httpConfig.Proxy.Host != "" && httpConfig.Proxy.Port != "" {
		client.SetProxy(fmt.Sprintf("%s:%s", httpConfig.Proxy.Host, httpConfig.Proxy.Port))
	}

	return client
}

// HTTPClient returns the configured *http.Client for SDKs that take a raw
// client instead of a resty one.
func HTTPClient(logger hclog.Logger, cfg *config.Config) *http.Client {
	return InitializeRestyClient(logger, cfg).GetClient()
}
