// Package extension implements the attribute extension codecs for the two
// wire dialects the engine speaks, plus the dynamic attribute registry that
// lets deployments add attributes without a rebuild.
package extension

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
)

// AttributeType classifies a registered attribute along the two axes the
// dialects care about: mandatory versus optional, natural versus legal
// person.
type AttributeType string

const (
	TypeMandatoryNatural AttributeType = "MandatoryNaturalPerson"
	TypeOptionalNatural  AttributeType = "OptionalNaturalPerson"
	TypeMandatoryLegal   AttributeType = "MandatoryLegalPerson"
	TypeOptionalLegal    AttributeType = "OptionalLegalPerson"
)

// Mandatory reports whether the type is on the mandatory axis.
func (t AttributeType) Mandatory() bool {
	return t == TypeMandatoryNatural || t == TypeMandatoryLegal
}

func parseAttributeType(s string) (AttributeType, bool) {
	switch AttributeType(strings.TrimSpace(s)) {
	case TypeMandatoryNatural:
		return TypeMandatoryNatural, true
	case TypeOptionalNatural:
		return TypeOptionalNatural, true
	case TypeMandatoryLegal:
		return TypeMandatoryLegal, true
	case TypeOptionalLegal:
		return TypeOptionalLegal, true
	}
	return "", false
}

const (
	fullNameSuffix = ".FullName"
	typeSuffix     = ".Type"
)

// Registry resolves friendly names of dynamically registered attributes to
// their full wire names and types. The backing resource is a flat YAML map
// with "<friendly>.FullName" and "<friendly>.Type" keys. The resource is
// read once, on first use, and the registry is read-only afterwards.
type Registry struct {
	path   string
	logger *zap.Logger

	once      sync.Once
	buildErr  error
	fullNames map[string]string
	types     map[string]AttributeType
}

// NewRegistry creates a registry over a YAML resource. An empty path yields
// an empty registry.
func NewRegistry(path string, logger *zap.Logger) *Registry {
	return &Registry{path: path, logger: logger}
}

func (r *Registry) build() {
	r.fullNames = make(map[string]string)
	r.types = make(map[string]AttributeType)
	if r.path == "" {
		return
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		r.buildErr = domain.ConfigError(
			fmt.Sprintf("cannot read attribute registry %q", r.path), err)
		return
	}

	var flat map[string]string
	if err := yaml.Unmarshal(data, &flat); err != nil {
		r.buildErr = domain.ConfigError(
			fmt.Sprintf("attribute registry %q does not parse", r.path), err)
		return
	}

	for key, value := range flat {
		if !strings.HasSuffix(key, fullNameSuffix) {
			continue
		}
		friendly := strings.TrimSuffix(key, fullNameSuffix)
		if friendly == "" || value == "" {
			continue
		}
		r.fullNames[friendly] = value
	}
	// Types only register for names that resolved to a full name.
	for key, value := range flat {
		if !strings.HasSuffix(key, typeSuffix) {
			continue
		}
		friendly := strings.TrimSuffix(key, typeSuffix)
		full, ok := r.fullNames[friendly]
		if !ok {
			continue
		}
		t, ok := parseAttributeType(value)
		if !ok {
			if r.logger != nil {
				r.logger.Warn("ignoring unknown attribute type",
					zap.String("friendly_name", friendly),
					zap.String("type", value),
				)
			}
			continue
		}
		r.types[full] = t
	}

	if r.logger != nil {
		r.logger.Info("attribute registry loaded",
			zap.String("path", r.path),
			zap.Int("attributes", len(r.fullNames)),
		)
	}
}

// FullName resolves a friendly name to its full wire name.
func (r *Registry) FullName(friendly string) (string, bool) {
	r.once.Do(r.build)
	full, ok := r.fullNames[friendly]
	return full, ok
}

// Type returns the classification of a full wire name.
func (r *Registry) Type(fullName string) (AttributeType, bool) {
	r.once.Do(r.build)
	t, ok := r.types[fullName]
	return t, ok
}

// FriendlyNames returns every registered friendly name.
func (r *Registry) FriendlyNames() []string {
	r.once.Do(r.build)
	out := make([]string, 0, len(r.fullNames))
	for name := range r.fullNames {
		out = append(out, name)
	}
	return out
}

// Err reports the build failure, if the first read failed. A failed build
// behaves as an empty registry; callers that must distinguish ask here.
func (r *Registry) Err() error {
	r.once.Do(r.build)
	return r.buildErr
}
