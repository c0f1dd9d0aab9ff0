package selector

import (
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Metadata declares where a record type lives. Empty fields fall back to
// the selector defaults.
type Metadata struct {
	Database   string
	Collection string
}

// Registry maps record types to their Metadata. It is safe for concurrent
// use; registration is expected at startup.
type Registry struct {
	mu    sync.RWMutex
	types map[reflect.Type]Metadata
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[reflect.Type]Metadata)}
}

// Register records md for T. Registering T again replaces its metadata.
// Blank names are normalized to empty.
func Register[T any](r *Registry, md Metadata) {
	md.Database = strings.TrimSpace(md.Database)
	md.Collection = strings.TrimSpace(md.Collection)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[TypeOf[T]()] = md
}

// Lookup returns the metadata registered for t.
func (r *Registry) Lookup(t reflect.Type) (Metadata, bool) {
	if r == nil {
		return Metadata{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	md, ok := r.types[t]
	return md, ok
}

// LookupName returns the metadata of the registered type whose name is
// name. Names are compared without generic type arguments.
func (r *Registry) LookupName(name string) (Metadata, bool) {
	if r == nil {
		return Metadata{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for t, md := range r.types {
		if typeName(t) == name {
			return md, true
		}
	}
	return Metadata{}, false
}

// Names returns the sorted names of the registered types.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for t := range r.types {
		names = append(names, typeName(t))
	}
	sort.Strings(names)
	return names
}

// Types returns the number of registered types.
func (r *Registry) Types() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// TypeOf returns the record type of T with pointers removed, so that
// Register[Order] and Register[*Order] name the same type.
func TypeOf[T any]() reflect.Type {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// TypeName returns the unqualified Go name of T, used as the default
// collection name.
func TypeName[T any]() string {
	return typeName(TypeOf[T]())
}

func typeName(t reflect.Type) string {
	name := t.Name()
	// Instantiated generic types carry their type arguments in brackets.
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}
