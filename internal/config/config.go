// Package config loads the userwatch configuration: where the bootstrap
// file, event log and journal live, and which observer hears which events.
//
// Configuration files are CUE, checked against an embedded schema:
//
//	source: "data/users.csv"
//	log:    "data/events.log"
//	subscriptions: [
//		{observer: "log", events: ["*"]},
//		{observer: "mail", events: ["entity:created", "entity:deleted"]},
//	]
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/userwatch/internal/entity"
	"github.com/roach88/userwatch/internal/event"
)

//go:embed schema.cue
var schemaCUE string

// Observer names accepted in subscriptions.
const (
	ObserverLog     = "log"
	ObserverMail    = "mail"
	ObserverJournal = "journal"
)

// Subscription attaches one observer to a list of event names.
// An empty list means the wildcard.
type Subscription struct {
	Observer string   `json:"observer"`
	Events   []string `json:"events"`
}

// Config is the resolved configuration.
type Config struct {
	Source        string         `json:"source"`
	LogFile       string         `json:"log"`
	Journal       string         `json:"journal,omitempty"`
	Subscriptions []Subscription `json:"subscriptions"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source:  "users.csv",
		LogFile: "events.log",
		Subscriptions: []Subscription{
			{Observer: ObserverLog, Events: []string{event.Wildcard}},
			{Observer: ObserverMail, Events: []string{entity.EventCreated, entity.EventDeleted}},
		},
	}
}

// fileConfig mirrors Config with optional fields so unset keys keep their
// defaults.
type fileConfig struct {
	Source        *string        `json:"source"`
	LogFile       *string        `json:"log"`
	Journal       *string        `json:"journal"`
	Subscriptions []Subscription `json:"subscriptions"`
}

// LoadFile reads the CUE file at path over Default().
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes CUE source over Default(). filename labels error positions.
//
// Unknown fields, unknown observer names and empty event names are rejected.
func Parse(filename string, data []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, fmt.Errorf("parse config: %s", cueerrors.Details(err, nil))
	}

	v = schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}

	var fc fileConfig
	if err := v.Decode(&fc); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg := Default()
	if fc.Source != nil {
		cfg.Source = *fc.Source
	}
	if fc.LogFile != nil {
		cfg.LogFile = *fc.LogFile
	}
	if fc.Journal != nil {
		cfg.Journal = *fc.Journal
	}
	if fc.Subscriptions != nil {
		cfg.Subscriptions = fc.Subscriptions
	}
	return cfg, nil
}

// EventsFor returns the event names subscription s covers. No names means
// the wildcard.
func (s Subscription) EventsFor() []string {
	if len(s.Events) == 0 {
		return []string{event.Wildcard}
	}
	return s.Events
}

// Uses reports whether any subscription names observer.
func (c Config) Uses(observer string) bool {
	for _, s := range c.Subscriptions {
		if s.Observer == observer {
			return true
		}
	}
	return false
}
