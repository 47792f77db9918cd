// Package reference holds the static registry data consulted by the dialogue: the reference
// dataset of procedures and the catalogs of entity types and update actions.
package reference

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
)

//go:embed data/dataset.json
var defaultDataset []byte

//go:embed data/catalog.json
var defaultCatalog []byte

type Entry struct {
	EntityType        string   `json:"entity_type"`
	Procedure         string   `json:"procedure"`
	RequiredDocuments []string `json:"required_documents"`
	Deadline          string   `json:"deadline"`
	Fee               string   `json:"fee"`
	Observations      []string `json:"observations"`
	// Sources lists source documents (plain text) the entry is ingested from.
	Sources []string `json:"sources,omitempty"`
}

type Dataset struct {
	entries []Entry
}

func NewDataset(entries []Entry) *Dataset {
	return &Dataset{entries: append([]Entry(nil), entries...)}
}

func ParseDataset(data []byte) (*Dataset, error) {
	var entries []Entry
	if err := sonic.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	for i, e := range entries {
		if normalize(e.EntityType) == "" || normalize(e.Procedure) == "" {
			return nil, fmt.Errorf("dataset entry %d: entity_type and procedure are required", i)
		}
	}
	return &Dataset{entries: entries}, nil
}

func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return ParseDataset(data)
}

// DefaultDataset returns the dataset bundled with the binary.
func DefaultDataset() (*Dataset, error) {
	return ParseDataset(defaultDataset)
}

func (d *Dataset) Entries() []Entry {
	return append([]Entry(nil), d.entries...)
}

func (d *Dataset) Len() int {
	return len(d.entries)
}

// Lookup returns the first entry matching the entity type and procedure, ignoring case and
// surrounding whitespace.
func (d *Dataset) Lookup(entityType, procedure string) (Entry, bool) {
	et, proc := normalize(entityType), normalize(procedure)
	for _, e := range d.entries {
		if normalize(e.EntityType) == et && normalize(e.Procedure) == proc {
			return e, true
		}
	}
	return Entry{}, false
}

type Catalog struct {
	CreationTypes []string `json:"creation_types"`
	UpdateTypes   []string `json:"update_types"`
	UpdateActions []string `json:"update_actions"`
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := sonic.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c.CreationTypes = dedupe(c.CreationTypes)
	c.UpdateTypes = dedupe(c.UpdateTypes)
	c.UpdateActions = dedupe(c.UpdateActions)
	if len(c.CreationTypes)+len(c.UpdateTypes) == 0 {
		return nil, fmt.Errorf("catalog has no entity types")
	}
	return &c, nil
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// EntityTypesFor returns the entity types offered for a procedure. Unknown procedures get all of them.
func (c *Catalog) EntityTypesFor(procedure string) []string {
	switch normalize(procedure) {
	case normalize("création"):
		return c.CreationTypes
	case normalize("mise à jour"):
		return c.UpdateTypes
	default:
		return c.AllEntityTypes()
	}
}

func (c *Catalog) AllEntityTypes() []string {
	all := make([]string, 0, len(c.CreationTypes)+len(c.UpdateTypes))
	all = append(all, c.CreationTypes...)
	all = append(all, c.UpdateTypes...)
	return dedupe(all)
}

// FindEntityType returns the catalog spelling of name.
func (c *Catalog) FindEntityType(name string) (string, bool) {
	return Match(name, c.AllEntityTypes())
}

func (c *Catalog) FindUpdateAction(name string) (string, bool) {
	return Match(name, c.UpdateActions)
}

// Match returns the option equal to value ignoring case and surrounding whitespace.
func Match(value string, options []string) (string, bool) {
	v := normalize(value)
	if v == "" {
		return "", false
	}
	for _, opt := range options {
		if normalize(opt) == v {
			return opt, true
		}
	}
	return "", false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
