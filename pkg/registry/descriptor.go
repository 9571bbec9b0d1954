package registry

import (
	"slices"
	"strings"
)

// Capability tags what a model is good at. Used to populate the UI.
type Capability string

const (
	CapabilityText        Capability = "text"
	CapabilityCode        Capability = "code"
	CapabilityVision      Capability = "vision"
	CapabilityReasoning   Capability = "reasoning"
	CapabilityLongContext Capability = "long_context"
)

// freeSuffix marks free-tier model ids (the OpenRouter convention).
const freeSuffix = ":free"

// ModelDescriptor describes one addressable model. Descriptors returned by
// the Registry are copies; the catalog itself never changes after load.
type ModelDescriptor struct {
	ID           string       `json:"id" yaml:"id" toml:"id"`
	Label        string       `json:"label" yaml:"label" toml:"label"`
	Provider     string       `json:"provider" yaml:"provider" toml:"provider"`
	Capabilities []Capability `json:"capabilities" yaml:"capabilities" toml:"capabilities"`

	// IsFree is derived from the id and cannot be set by a catalog file.
	IsFree bool `json:"isFree" yaml:"-" toml:"-"`
}

// IsFreeModelID reports whether a model id denotes a free-tier model.
func IsFreeModelID(id string) bool {
	return strings.HasSuffix(id, freeSuffix)
}

// Has reports whether the descriptor carries the given capability.
func (d ModelDescriptor) Has(c Capability) bool {
	return slices.Contains(d.Capabilities, c)
}

// clone returns a deep copy so callers cannot reach the catalog's slices.
func (d ModelDescriptor) clone() ModelDescriptor {
	d.Capabilities = slices.Clone(d.Capabilities)
	return d
}

// normalize fills derived fields and canonicalizes the capability set.
func (d ModelDescriptor) normalize() ModelDescriptor {
	d.ID = strings.TrimSpace(d.ID)
	d.Provider = strings.ToLower(strings.TrimSpace(d.Provider))
	if d.Label == "" {
		d.Label = d.ID
	}
	caps := slices.Clone(d.Capabilities)
	if len(caps) == 0 {
		caps = []Capability{CapabilityText}
	}
	slices.Sort(caps)
	d.Capabilities = slices.Compact(caps)
	d.IsFree = IsFreeModelID(d.ID)
	return d
}
