package subscription

import "log/slog"

// ServiceOption configures a Service instance.
type ServiceOption func(*service)

// WithEventLocker serializes processing of each webhook event across
// replicas. Without a locker the store's event ledger alone guards
// against double processing.
func WithEventLocker(l EventLocker) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithServiceLogger overrides the logger inherited from the reconciler.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.log = l
		}
	}
}
