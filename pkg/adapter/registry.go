package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// Factory builds the adapter for one target type. A nil logger discards
// output.
type Factory func(*slog.Logger) Adapter

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
	// aliases maps alternative spellings of target.type to the registered
	// name, e.g. postgresql to postgres.
	aliases = make(map[string]string)
)

// Register adds the factory for a target type and any alternative names
// it is known by. Adapter packages call it from init.
func Register(name string, factory Factory, alias ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name = normalize(name)
	registry[name] = factory
	for _, a := range alias {
		aliases[normalize(a)] = name
	}
}

// TargetType returns the registered name for a target.type value. Case,
// surrounding space and aliases are resolved; an unknown type comes back
// normalized so callers can report it.
func TargetType(name string) string {
	name = normalize(name)
	registryMu.RLock()
	defer registryMu.RUnlock()
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Get retrieves the factory for a target type.
func Get(name string) (Factory, bool) {
	name = TargetType(name)
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// NewAdapter creates the adapter for cfg.Type. The adapter must run
// scripts of the dialect named like its target, since compile picks the
// dialect from target.type.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}

	name := TargetType(cfg.Type)
	factory, ok := Get(name)
	if !ok {
		return nil, &UnknownAdapterError{
			Type:      cfg.Type,
			Available: ListAdapters(),
		}
	}
	adp := factory(logger)
	if adp == nil {
		return nil, fmt.Errorf("adapter %s could not be created", name)
	}
	if d := adp.Dialect(); d == nil || d.Name != name {
		return nil, fmt.Errorf("adapter %s does not run %s scripts", name, name)
	}
	return adp, nil
}

// ListAdapters returns the registered target types, sorted. Aliases are
// not listed.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether a target type, or one of its aliases, has
// an adapter.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// UnknownAdapterError is returned when target.type names no adapter.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown target type %q\nAvailable targets: %v\nHint: Check target.type in aeroscore.yaml", e.Type, e.Available)
}
