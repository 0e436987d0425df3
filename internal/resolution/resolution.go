// Package resolution implements the per-request resolution table: a key/value
// context that lets later handlers in a chain reference values produced by
// earlier ones.
//
// A Context is scoped to one top-level request and shared by every instance in
// its continuation chain. Keys are placeholder tokens ("{who}") or plain words
// that earlier handlers stored ("it" -> "the red bottle").
package resolution

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultPunctuation is stripped from each token before lookup.
// It is ASCII punctuation without the placeholder braces.
const DefaultPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`|~"

// Store persists resolution contexts by ID.
// A missing context reads as an empty map.
type Store interface {
	SetResolutionValues(ctx context.Context, contextID string, values map[string]string) error
	GetResolutionValues(ctx context.Context, contextID string) (map[string]string, error)
	DeleteResolutionValues(ctx context.Context, contextID string) error
}

// Context is the resolution table for one request chain.
// It is safe for concurrent use if its Store is.
type Context struct {
	id          string
	store       Store
	punctuation string
}

// Option configures a Context.
type Option func(*Context)

// WithPunctuation overrides the set of characters stripped from tokens.
func WithPunctuation(chars string) Option {
	return func(c *Context) {
		c.punctuation = chars
	}
}

// New returns a context bound to id in store.
// An empty id gets a fresh UUID; a nil store gets a private MemoryStore.
func New(id string, store Store, opts ...Option) *Context {
	if id == "" {
		id = uuid.New().String()
	}
	if store == nil {
		store = NewMemoryStore()
	}

	c := &Context{
		id:          id,
		store:       store,
		punctuation: DefaultPunctuation,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the context identifier.
func (c *Context) ID() string {
	return c.id
}

// Put records key -> value. Last writer wins.
func (c *Context) Put(ctx context.Context, key, value string) error {
	return c.Merge(ctx, map[string]string{key: value})
}

// Merge records every pair of values.
func (c *Context) Merge(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	if err := c.store.SetResolutionValues(ctx, c.id, values); err != nil {
		return fmt.Errorf("failed to write resolution context %s: %w", c.id, err)
	}
	return nil
}

// Get returns the value stored under key.
func (c *Context) Get(ctx context.Context, key string) (string, bool, error) {
	table, err := c.Snapshot(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := table[key]
	return v, ok, nil
}

// Snapshot returns a copy of the whole table.
func (c *Context) Snapshot(ctx context.Context) (map[string]string, error) {
	table, err := c.store.GetResolutionValues(ctx, c.id)
	if err != nil {
		return nil, fmt.Errorf("failed to read resolution context %s: %w", c.id, err)
	}
	if table == nil {
		table = map[string]string{}
	}
	return table, nil
}

// Resolve substitutes known values into values and returns a new map.
// The input map is not modified.
func (c *Context) Resolve(ctx context.Context, values map[string]string) (map[string]string, error) {
	table, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Substitute(table, values, c.punctuation), nil
}

// Release deletes the context from its store.
func (c *Context) Release(ctx context.Context) error {
	if err := c.store.DeleteResolutionValues(ctx, c.id); err != nil {
		return fmt.Errorf("failed to release resolution context %s: %w", c.id, err)
	}
	return nil
}

// Substitute resolves each value against table.
//
// A value that is itself a key is replaced by that key's value. Otherwise the
// value is split on whitespace and every token whose punctuation-stripped form
// is a key with a non-empty value is replaced as a whole; the tokens are then
// re-joined with single spaces. Tokens without a known value are left as they are.
func Substitute(table, values map[string]string, punctuation string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if known, ok := table[v]; ok {
			out[k] = known
			continue
		}

		words := strings.Fields(v)
		for i, w := range words {
			if known := table[strings.Trim(w, punctuation)]; known != "" {
				words[i] = known
			}
		}
		out[k] = strings.Join(words, " ")
	}
	return out
}
