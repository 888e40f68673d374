package models

import (
	"encoding/json"

	"github.com/hashicorp/go-version"
)

const (
	ConfTypePolicy   = "policy"
	ConfTypeResolver = "resolver"
	ConfTypeEvent    = "event"
)

var DefaultConfTypes = []string{ConfTypePolicy, ConfTypeResolver, ConfTypeEvent}

type Policy struct {
	Name              string `json:"name" yaml:"name"`
	Scope             string `json:"scope" yaml:"scope"`
	Action            any    `json:"action,omitempty" yaml:"action,omitempty"`
	Active            *bool  `json:"active,omitempty" yaml:"active,omitempty"`
	AdminRealm        any    `json:"adminrealm,omitempty" yaml:"adminrealm,omitempty"`
	AdminUser         any    `json:"adminuser,omitempty" yaml:"adminuser,omitempty"`
	CheckAllResolvers bool   `json:"check_all_resolvers,omitempty" yaml:"check_all_resolvers,omitempty"`
	Client            any    `json:"client,omitempty" yaml:"client,omitempty"`
	Conditions        []any  `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Node              any    `json:"edumfanode,omitempty" yaml:"edumfanode,omitempty"`
	Priority          int    `json:"priority,omitempty" yaml:"priority,omitempty"`
	Realm             any    `json:"realm,omitempty" yaml:"realm,omitempty"`
	Resolver          any    `json:"resolver,omitempty" yaml:"resolver,omitempty"`
	Time              string `json:"time,omitempty" yaml:"time,omitempty"`
	User              any    `json:"user,omitempty" yaml:"user,omitempty"`
}

func (p *Policy) IsActive() bool {
	return p.Active == nil || *p.Active
}

type EventDefinition struct {
	ID            int64          `json:"id,omitempty" yaml:"id,omitempty"`
	Name          string         `json:"name" yaml:"name"`
	Event         []string       `json:"event" yaml:"event"`
	HandlerModule string         `json:"handlermodule" yaml:"handlermodule"`
	Action        string         `json:"action" yaml:"action"`
	Conditions    map[string]any `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Options       map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
	Ordering      int            `json:"ordering,omitempty" yaml:"ordering,omitempty"`
	Active        *bool          `json:"active,omitempty" yaml:"active,omitempty"`
	Position      string         `json:"position,omitempty" yaml:"position,omitempty"`
}

func (e *EventDefinition) IsActive() bool {
	return e.Active == nil || *e.Active
}

// ConfigDocument is the administrative import/export document. Every section
// is optional.
type ConfigDocument struct {
	Version  *version.Version       `json:"version,omitempty" yaml:"version,omitempty"`
	Policy   []Policy               `json:"policy,omitempty" yaml:"policy,omitempty"`
	Resolver []ResolverRegistration `json:"resolver,omitempty" yaml:"resolver,omitempty"`
	Event    []EventDefinition      `json:"event,omitempty" yaml:"event,omitempty"`
}

// ConfTypes returns the sections present in the document, in default order.
func (d *ConfigDocument) ConfTypes() []string {
	var out []string
	if len(d.Policy) > 0 {
		out = append(out, ConfTypePolicy)
	}
	if len(d.Resolver) > 0 {
		out = append(out, ConfTypeResolver)
	}
	if len(d.Event) > 0 {
		out = append(out, ConfTypeEvent)
	}
	return out
}

// UnmarshalJSON converts Version to string from any type
func (d *ConfigDocument) UnmarshalJSON(data []byte) error {
	type Alias ConfigDocument
	aux := &struct {
		Version any `json:"version"`
		*Alias
	}{
		Alias: (*Alias)(d),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	parsedVersion, err := version.NewVersion(ConvertVersionToString(aux.Version))

	if err != nil {
		return err
	}

	d.Version = parsedVersion

	return nil
}

// UnmarshalYAML routes through JSON so both encodings share the version handling.
func (d *ConfigDocument) UnmarshalYAML(unmarshal func(any) error) error {
	var raw map[string]any

	if err := unmarshal(&raw); err != nil {
		return err
	}

	data, err := json.Marshal(raw)

	if err != nil {
		return err
	}

	return d.UnmarshalJSON(data)
}

// MarshalJSON writes Version as the string it was read from.
func (d ConfigDocument) MarshalJSON() ([]byte, error) {
	type Alias ConfigDocument
	aux := struct {
		Version string `json:"version,omitempty"`
		Alias
	}{
		Alias: Alias(d),
	}
	aux.Alias.Version = nil
	if d.Version != nil {
		aux.Version = d.Version.Original()
	}
	return json.Marshal(aux)
}

func (d ConfigDocument) MarshalYAML() (any, error) {
	out := map[string]any{}
	if d.Version != nil {
		out["version"] = d.Version.Original()
	}
	if len(d.Policy) > 0 {
		out[ConfTypePolicy] = d.Policy
	}
	if len(d.Resolver) > 0 {
		out[ConfTypeResolver] = d.Resolver
	}
	if len(d.Event) > 0 {
		out[ConfTypeEvent] = d.Event
	}
	return out, nil
}
