package logger

import (
	"log/slog"
	"strings"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier. Empty ids are dropped.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

func ProjectID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("project_id", id)
}

func TeamID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("team_id", id)
}

// Email records an address with the local part masked, so logs never hold
// a full address: "alice@example.com" becomes "a***@example.com".
func Email(addr string) slog.Attr {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" {
		return slog.String("email", "***")
	}
	return slog.String("email", local[:1]+"***@"+domain)
}

func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}
