package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the account identifier under the key "user_id".
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// RequestID records the HTTP request identifier under the key "request_id".
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

// EventID records the payment processor event identifier.
func EventID(id string) slog.Attr {
	return slog.String("event_id", id)
}

// EventType records the payment processor event type.
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// SubscriptionRef records the external subscription reference.
func SubscriptionRef(ref string) slog.Attr {
	return slog.String("subscription_ref", ref)
}

// PriceID records a payment processor price identifier.
func PriceID(id string) slog.Attr {
	return slog.String("price_id", id)
}

// Tier records a plan tier. An empty tier is logged as "none".
func Tier(tier string) slog.Attr {
	if tier == "" {
		tier = "none"
	}
	return slog.String("tier", tier)
}

// Credits records a credit balance.
func Credits(n int64) slog.Attr {
	return slog.Int64("credits", n)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
