package repository

import "time"

// Option applies a configuration option to the SnapshotStore.
type Option func(*SnapshotStore)

// WithDefaultMinConfidence sets the confidence floor used when a filter
// leaves MinConfidence nil.
func WithDefaultMinConfidence(v float64) Option {
	return func(s *SnapshotStore) {
		s.defaultMinConfidence = v
	}
}

// WithDefaultLimit sets the limit used when a filter leaves Limit zero.
func WithDefaultLimit(n int) Option {
	return func(s *SnapshotStore) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// WithMaxLimit caps any requested limit. Zero disables the cap.
func WithMaxLimit(n int) Option {
	return func(s *SnapshotStore) {
		if n >= 0 {
			s.maxLimit = n
		}
	}
}

// WithUpdateInterval sets the staleness age after which reads decay.
func WithUpdateInterval(d time.Duration) Option {
	return func(s *SnapshotStore) {
		if d > 0 {
			s.updateInterval = d
		}
	}
}

// WithClock overrides time.Now for decay decisions.
func WithClock(now func() time.Time) Option {
	return func(s *SnapshotStore) {
		if now != nil {
			s.now = now
		}
	}
}
