package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/userwatch/internal/config"
	"github.com/roach88/userwatch/internal/csvsource"
	"github.com/roach88/userwatch/internal/entity"
	"github.com/roach88/userwatch/internal/event"
	"github.com/roach88/userwatch/internal/journal"
	"github.com/roach88/userwatch/internal/observer"
)

// resolveConfig loads the configuration file (if any) over the defaults and
// applies the flag overrides.
func resolveConfig(opts *RootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		cfg, err = config.LoadFile(opts.Config)
		if err != nil {
			return config.Config{}, err
		}
	}
	if opts.Source != "" {
		cfg.Source = opts.Source
	}
	if opts.LogFile != "" {
		cfg.LogFile = opts.LogFile
	}
	if opts.Journal != "" {
		cfg.Journal = opts.Journal
	}
	return cfg, nil
}

// session is a bootstrapped store with the configured observers attached.
type session struct {
	cfg    config.Config
	store  *entity.Store
	source *csvsource.File

	observers map[string]event.Observer
	closers   []func() error
}

// openSession builds the observers named by the configuration, attaches
// them and loads the bootstrap source. Observers are attached before the
// load so they also hear entity:init.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	s := &session{
		cfg:       cfg,
		store:     entity.NewStore(),
		source:    csvsource.New(cfg.Source),
		observers: make(map[string]event.Observer),
	}

	for _, sub := range cfg.Subscriptions {
		o, err := s.observer(ctx, sub.Observer)
		if err != nil {
			s.Close()
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to set up %s observer", sub.Observer), err)
		}
		s.store.Attach(o, sub.EventsFor()...)
		slog.Debug("attached observer", "observer", sub.Observer, "events", sub.EventsFor())
	}

	if err := s.store.Load(s.source); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// observer returns the observer registered under name, creating it on first
// use so that several subscriptions share one instance.
func (s *session) observer(ctx context.Context, name string) (event.Observer, error) {
	if o, ok := s.observers[name]; ok {
		return o, nil
	}

	var o event.Observer
	switch name {
	case config.ObserverLog:
		sink, err := observer.OpenLogSink(s.cfg.LogFile)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, sink.Close)
		o = sink

	case config.ObserverMail:
		o = observer.NewMailSink(nil)

	case config.ObserverJournal:
		if s.cfg.Journal == "" {
			return nil, errors.New("no journal path configured")
		}
		j, err := journal.Open(s.cfg.Journal)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, j.Close)
		sink, err := observer.NewJournalSink(ctx, j)
		if err != nil {
			return nil, err
		}
		o = sink

	default:
		return nil, fmt.Errorf("unknown observer %q", name)
	}

	s.observers[name] = o
	return o, nil
}

// save writes the collection back to the bootstrap source.
func (s *session) save() error {
	return s.store.Save(s.source)
}

// Close releases files held by the observers, last opened first.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// committed reports whether a mutation that returned err still took effect.
// Observer failures leave the mutation in place.
func committed(err error) bool {
	var oe *event.ObserverError
	return err == nil || errors.As(err, &oe)
}
