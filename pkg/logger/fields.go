package logger

import (
	"fmt"
	"strconv"
	"time"
)

// StringField returns a LogField for a string value.
func StringField(key, value string) LogField {
	return LogField{Key: key, Value: value}
}

// IntField returns a LogField for an integer value.
func IntField(key string, value int) LogField {
	return LogField{Key: key, Value: strconv.Itoa(value)}
}

// Int64Field returns a LogField for an int64 value.
func Int64Field(key string, value int64) LogField {
	return LogField{Key: key, Value: strconv.FormatInt(value, 10)}
}

// BoolField returns a LogField for a boolean value.
func BoolField(key string, value bool) LogField {
	return LogField{Key: key, Value: strconv.FormatBool(value)}
}

// DurationField returns a LogField for a time.Duration value.
func DurationField(key string, value time.Duration) LogField {
	return LogField{Key: key, Value: value.String()}
}

// TimeField returns a LogField for a time.Time value formatted as RFC3339.
func TimeField(key string, value time.Time) LogField {
	return LogField{Key: key, Value: value.Format(time.RFC3339Nano)}
}

// ErrorField returns a LogField for an error value.
func ErrorField(err error) LogField {
	if err == nil {
		return LogField{Key: "error", Value: "<nil>"}
	}
	return LogField{Key: "error", Value: err.Error()}
}

// Field formats any value with %v. Prefer the typed helpers where one exists.
func Field[T any](key string, value T) LogField {
	return LogField{Key: key, Value: fmt.Sprintf("%v", value)}
}

// Conversation identity fields. Every store operation logs with these keys so
// entries for one session can be grepped together.

// AppNameField returns a LogField for the application name.
func AppNameField(appName string) LogField {
	return StringField("app_name", appName)
}

// UserIDField returns a LogField for the user id.
func UserIDField(userID string) LogField {
	return StringField("user_id", userID)
}

// SessionIDField returns a LogField for the session id.
func SessionIDField(sessionID string) LogField {
	return StringField("session_id", sessionID)
}

// CorrelationIDField returns a LogField for a correlation ID.
func CorrelationIDField(id string) LogField {
	return StringField(CorrelationIDFieldKey, id)
}

// HTTP request fields.

// HTTPMethodField returns a LogField for the request method.
func HTTPMethodField(method string) LogField {
	return StringField("http_method", method)
}

// HTTPPathField returns a LogField for the request path.
func HTTPPathField(path string) LogField {
	return StringField("http_path", path)
}

// ClientIPField returns a LogField for the client address.
func ClientIPField(ip string) LogField {
	return StringField("client_ip", ip)
}
