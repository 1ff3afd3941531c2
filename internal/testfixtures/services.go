package testfixtures

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/defense-scheduler/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Location    *time.Location
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("def"),
		Location:    Location(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("def")
	}
	if factory.Location == nil {
		factory.Location = Location()
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocation overrides the institution zone.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// DefenseServiceDeps captures dependencies for constructing a defense service.
// Calendar and identifiers come from the factory.
type DefenseServiceDeps struct {
	Defenses   application.DefenseRepository
	Identity   application.IdentityResolver
	Notifier   application.Notifier
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// NewDefenseService builds a defense service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewDefenseService(deps DefenseServiceDeps) *application.DefenseService {
	return application.NewDefenseService(application.DefenseServiceDeps{
		Defenses:    deps.Defenses,
		Identity:    deps.Identity,
		Notifier:    deps.Notifier,
		Calendar:    f.Clock.Calendar(f.Location),
		IDGenerator: f.IDGenerator.NextFunc(),
		Logger:      deps.Logger,
		Registerer:  deps.Registerer,
	})
}

// InboxServiceDeps captures dependencies for constructing an inbox service.
type InboxServiceDeps struct {
	Inbox  application.InboxRepository
	Logger *slog.Logger
}

// NewInboxService builds an inbox service using the supplied dependencies.
func (f *ServiceFactory) NewInboxService(deps InboxServiceDeps) *application.InboxService {
	return application.NewInboxService(deps.Inbox, deps.Logger)
}
