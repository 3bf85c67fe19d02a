package kb

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/signalsfoundry/antenna-tracker/model"
)

var (
	// ErrEntryExists indicates a catalog name or alias is already taken.
	ErrEntryExists = errors.New("catalog entry already exists")
	// ErrEntryNotFound indicates a name did not match any catalog entry.
	ErrEntryNotFound = errors.New("catalog entry not found")
)

//go:embed catalog.toml
var defaultCatalog string

// Catalog is an in-memory, thread-safe store of named sources. Names and
// aliases are matched after model.NormalizeName folding.
type Catalog struct {
	mu sync.RWMutex

	entries map[string]*model.CatalogEntry
	// index maps every folded name and alias to its primary key in entries.
	index map[string]string
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		entries: make(map[string]*model.CatalogEntry),
		index:   make(map[string]string),
	}
}

// DefaultCatalog returns a catalog preloaded with the embedded bright-source
// list.
func DefaultCatalog() (*Catalog, error) {
	c := NewCatalog()
	if err := c.Load(strings.NewReader(defaultCatalog)); err != nil {
		return nil, fmt.Errorf("load embedded catalog: %w", err)
	}
	return c, nil
}

// Add inserts an entry. It returns ErrEntryExists if the name or any alias
// collides with an existing entry.
func (c *Catalog) Add(e model.CatalogEntry) error {
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("catalog entry name is required")
	}
	if err := e.Position().Validate(); err != nil {
		return fmt.Errorf("catalog entry %q: %w", e.Name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := model.NormalizeName(e.Name)
	keys := []string{key}
	for _, a := range e.Aliases {
		keys = append(keys, model.NormalizeName(a))
	}
	for _, k := range keys {
		if _, exists := c.index[k]; exists {
			return fmt.Errorf("%w: %q", ErrEntryExists, k)
		}
	}

	stored := e
	stored.Aliases = append([]string(nil), e.Aliases...)
	c.entries[key] = &stored
	for _, k := range keys {
		c.index[k] = key
	}
	return nil
}

// Lookup resolves a name or alias to its entry.
func (c *Catalog) Lookup(name string) (model.CatalogEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key, ok := c.index[model.NormalizeName(name)]
	if !ok {
		return model.CatalogEntry{}, fmt.Errorf("%w: %q", ErrEntryNotFound, name)
	}
	return *c.entries[key], nil
}

// List returns a snapshot of all entries sorted by name.
func (c *Catalog) List() []model.CatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := make([]model.CatalogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		res = append(res, *e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

type catalogFile struct {
	Sources []catalogSource `toml:"source"`
}

type catalogSource struct {
	Name        string   `toml:"name"`
	Aliases     []string `toml:"aliases"`
	RA          float64  `toml:"ra"`
	Dec         float64  `toml:"dec"`
	Description string   `toml:"description"`
}

// Load reads [[source]] tables from a TOML document and adds them. Unknown
// keys are rejected so typos do not silently drop coordinates.
func (c *Catalog) Load(r io.Reader) error {
	var f catalogFile
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown catalog keys: %s", strings.Join(keys, ", "))
	}

	for _, s := range f.Sources {
		if err := c.Add(model.CatalogEntry{
			Name:        s.Name,
			Aliases:     s.Aliases,
			RA:          s.RA,
			Dec:         s.Dec,
			Description: s.Description,
		}); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile adds the sources from a TOML catalog file.
func (c *Catalog) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog %q: %w", path, err)
	}
	defer f.Close()
	return c.Load(f)
}
