package oauth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"

	"github.com/hashicorp/go-retryablehttp"

	"adbridge/pkg/logging"
)

// queryPattern matches the query string of an absolute URL.
var queryPattern = regexp.MustCompile(`(https?://[^\s?"]+)\?[^\s"]*`)

// redactQuery replaces URL query strings in s with a placeholder. Token
// endpoint URLs can carry client credentials and tokens in the query.
func redactQuery(s string) string {
	return queryPattern.ReplaceAllString(s, "${1}?[REDACTED]")
}

// sanitizeError rebuilds a *url.Error without its query string. Other
// errors are returned unchanged.
func sanitizeError(err error) error {
	var urlErr *url.Error
	if err == nil || !errors.As(err, &urlErr) {
		return err
	}
	return &url.Error{Op: urlErr.Op, URL: redactQuery(urlErr.URL), Err: urlErr.Err}
}

// retryLogger adapts pkg/logging to retryablehttp and scrubs every logged
// value of URL query strings.
type retryLogger struct {
	subsystem string
}

var _ retryablehttp.LeveledLogger = retryLogger{}

func newRetryLogger() retryLogger {
	return retryLogger{subsystem: "Retry"}
}

func (l retryLogger) logger() *slog.Logger { return logging.For(l.subsystem) }

func (l retryLogger) Error(msg string, kv ...interface{}) { l.logger().Error(msg, scrub(kv)...) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.logger().Warn(msg, scrub(kv)...) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.logger().Info(msg, scrub(kv)...) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.logger().Debug(msg, scrub(kv)...) }

func scrub(kv []interface{}) []interface{} {
	out := make([]interface{}, len(kv))
	for i, v := range kv {
		switch val := v.(type) {
		case string:
			out[i] = redactQuery(val)
		case error:
			out[i] = redactQuery(val.Error())
		case *url.URL:
			out[i] = redactQuery(val.String())
		case fmt.Stringer:
			out[i] = redactQuery(val.String())
		default:
			out[i] = v
		}
	}
	return out
}
