package notification

import (
	"fmt"
	"sort"
	"sync"
)

var (
	typesMu       sync.RWMutex
	notifierTypes = make(map[string]NotifierType)
)

// Register adds a notifier type. Notifier packages call it from init();
// registering a name twice panics.
func Register(nt NotifierType) {
	typesMu.Lock()
	defer typesMu.Unlock()

	if _, exists := notifierTypes[nt.Name()]; exists {
		panic(fmt.Sprintf("notifier type %q already registered", nt.Name()))
	}
	notifierTypes[nt.Name()] = nt
}

// Get retrieves a notifier type by name
func Get(name string) (NotifierType, bool) {
	typesMu.RLock()
	defer typesMu.RUnlock()

	nt, ok := notifierTypes[name]
	return nt, ok
}

// List returns the sorted names of all registered notifier types
func List() []string {
	typesMu.RLock()
	defer typesMu.RUnlock()

	names := make([]string, 0, len(notifierTypes))
	for name := range notifierTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateNotifier creates a notifier instance from type and options
func CreateNotifier(typeName, name string, options map[string]string) (Notifier, error) {
	nt, ok := Get(typeName)
	if !ok {
		return nil, fmt.Errorf("unknown notifier type %q for provider %q (available: %v)", typeName, name, List())
	}
	return nt.Create(name, options)
}

// ProviderConfig is the type and options of one configured provider
type ProviderConfig struct {
	Type    string
	Options map[string]string
}

// NewManagerFromConfig creates a manager holding one notifier per provider
func NewManagerFromConfig(providers map[string]ProviderConfig) (*Manager, error) {
	mgr := NewManager()
	for name, p := range providers {
		notifier, err := CreateNotifier(p.Type, name, p.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to create notifier %q: %w", name, err)
		}
		mgr.AddNotifier(name, notifier)
	}
	return mgr, nil
}
