package session

import (
	"log/slog"
	"time"

	"github.com/aretw0/marginalia/pkg/assist"
	"github.com/aretw0/marginalia/pkg/readability"
	"github.com/aretw0/marginalia/pkg/telemetry"
)

// DefaultAutosaveDelay is the quiet period after the last edit before the
// document is saved.
const DefaultAutosaveDelay = 2 * time.Second

type options struct {
	logger         *slog.Logger
	clock          func() time.Time
	holder         string
	features       Features
	generator      assist.Generator
	images         assist.ImageGenerator
	model          string
	rules          *readability.Rules
	metrics        *telemetry.Metrics
	leaseTTL       time.Duration
	autosaveDelay  time.Duration
	snapshotLimit  int
	snapshotEvery  time.Duration
	createMissing  bool
	guardSubtitle  bool
	completionOpts []assist.AutocompleteOption
}

// Option configures a Session.
type Option func(*options)

// WithLogger sets the logger shared by the session and its engines.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithHolder sets the lease holder identity. A random one is used by
// default.
func WithHolder(holder string) Option {
	return func(o *options) {
		o.holder = holder
	}
}

// WithFeatures sets the initial feature flags.
func WithFeatures(f Features) Option {
	return func(o *options) {
		o.features = f
	}
}

// WithGenerator enables rewrites, consultations and autocomplete on gen.
func WithGenerator(gen assist.Generator, model string) Option {
	return func(o *options) {
		o.generator = gen
		o.model = model
	}
}

// WithImageGenerator enables generated images and diagrams.
func WithImageGenerator(gen assist.ImageGenerator) Option {
	return func(o *options) {
		o.images = gen
	}
}

// WithAutocompleteOptions tunes the autocomplete coordinator.
func WithAutocompleteOptions(opts ...assist.AutocompleteOption) Option {
	return func(o *options) {
		o.completionOpts = append(o.completionOpts, opts...)
	}
}

// WithRules replaces the built-in readability rules.
func WithRules(rules readability.Rules) Option {
	return func(o *options) {
		o.rules = &rules
	}
}

// WithMetrics records editing activity in m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLeaseTTL overrides the lease TTL.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.leaseTTL = ttl
	}
}

// WithAutosaveDelay overrides DefaultAutosaveDelay. A negative delay
// disables autosave.
func WithAutosaveDelay(d time.Duration) Option {
	return func(o *options) {
		o.autosaveDelay = d
	}
}

// WithSnapshotLimit overrides the per-document snapshot cap.
func WithSnapshotLimit(n int) Option {
	return func(o *options) {
		o.snapshotLimit = n
	}
}

// WithAutoSnapshots takes an auto snapshot every interval. Zero selects
// snapshot.DefaultInterval, a negative interval disables them.
func WithAutoSnapshots(interval time.Duration) Option {
	return func(o *options) {
		o.snapshotEvery = interval
	}
}

// WithCreate starts from an empty draft when the document does not exist.
func WithCreate() Option {
	return func(o *options) {
		o.createMissing = true
	}
}

// WithSubtitleGuard also protects the level 3 subtitle from deletion.
func WithSubtitleGuard() Option {
	return func(o *options) {
		o.guardSubtitle = true
	}
}
