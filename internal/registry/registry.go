// Package registry loads the canonical events the scanner evaluates from a
// static YAML file.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steffenmax/arbbot/internal/domain"
)

type fileEvent struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	StartsAt time.Time     `yaml:"starts_at"`
	Outcomes []fileOutcome `yaml:"outcomes"`
}

type fileOutcome struct {
	ID   string            `yaml:"id"`
	Name string            `yaml:"name"`
	Refs map[string]string `yaml:"refs"`
}

type file struct {
	Events []fileEvent `yaml:"events"`
}

// Registry is an immutable, validated set of canonical events.
type Registry struct {
	events []domain.CanonicalEvent
	byID   map[string]int
}

// Load reads and validates the registry file at path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %q: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a registry document.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	events := make([]domain.CanonicalEvent, 0, len(f.Events))
	var errs []error
	for i, fe := range f.Events {
		ev, err := fe.toDomain()
		if err != nil {
			errs = append(errs, fmt.Errorf("events[%d]: %w", i, err))
			continue
		}
		events = append(events, ev)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return New(events)
}

// New validates events and builds a registry from them.
func New(events []domain.CanonicalEvent) (*Registry, error) {
	r := &Registry{
		events: make([]domain.CanonicalEvent, 0, len(events)),
		byID:   make(map[string]int, len(events)),
	}
	var errs []error
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := r.byID[ev.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate event id %q", domain.ErrInvalidEvent, ev.ID))
			continue
		}
		r.byID[ev.ID] = len(r.events)
		r.events = append(r.events, ev)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Events returns every registered event in file order.
func (r *Registry) Events(_ context.Context) ([]domain.CanonicalEvent, error) {
	out := make([]domain.CanonicalEvent, len(r.events))
	copy(out, r.events)
	return out, nil
}

// Event looks up one event by id.
func (r *Registry) Event(id string) (domain.CanonicalEvent, bool) {
	i, ok := r.byID[id]
	if !ok {
		return domain.CanonicalEvent{}, false
	}
	return r.events[i], true
}

// Len returns the number of registered events.
func (r *Registry) Len() int { return len(r.events) }

func (fe fileEvent) toDomain() (domain.CanonicalEvent, error) {
	if len(fe.Outcomes) != 2 {
		return domain.CanonicalEvent{}, fmt.Errorf("%w: event %q has %d outcomes, want 2",
			domain.ErrInvalidEvent, fe.ID, len(fe.Outcomes))
	}
	ev := domain.CanonicalEvent{ID: fe.ID, Name: fe.Name, StartsAt: fe.StartsAt}
	for i, fo := range fe.Outcomes {
		refs := make(map[domain.Venue]string, len(fo.Refs))
		for name, ref := range fo.Refs {
			v, err := domain.ParseVenue(name)
			if err != nil {
				return domain.CanonicalEvent{}, fmt.Errorf("%w: event %q outcome %q: %w",
					domain.ErrInvalidEvent, fe.ID, fo.ID, err)
			}
			refs[v] = ref
		}
		ev.Outcomes[i] = domain.EventOutcome{ID: fo.ID, Name: fo.Name, Refs: refs}
	}
	return ev, nil
}
