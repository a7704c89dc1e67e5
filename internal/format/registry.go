package format

import (
	"errors"
	"sort"
	"strings"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

// ErrUnsupportedFormat is returned for keys without a registered constructor.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Registry maps format keys (file extensions) to constructors.
type Registry struct {
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// NormalizeKey lower-cases key and ensures a leading dot, so "HTML", "html"
// and ".html" name the same format.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key != "" && !strings.HasPrefix(key, ".") {
		key = "." + key
	}
	return key
}

// Register binds key to c, replacing any previous binding.
func (r *Registry) Register(key string, c Constructor) {
	r.ctors[NormalizeKey(key)] = c
}

// Lookup returns the constructor registered for key.
func (r *Registry) Lookup(key string) (Constructor, error) {
	c, ok := r.ctors[NormalizeKey(key)]
	if !ok {
		return nil, ferrors.WrapError(ErrUnsupportedFormat, ferrors.CategoryNotFound, "no format registered").
			WithContext("format", key).
			WithContext("supported", strings.Join(r.Keys(), ", ")).
			UserAction().
			Build()
	}
	return c, nil
}

// Load looks up key and constructs a Format from raw.
func (r *Registry) Load(key string, raw []byte, opts Options) (Format, error) {
	c, err := r.Lookup(key)
	if err != nil {
		return nil, err
	}
	return c(raw, opts)
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
