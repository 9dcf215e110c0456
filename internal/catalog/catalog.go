// Package catalog loads the YAML catalog of vendors, products and source
// documents, and ingests it into the store.
package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/laser-ci/internal/model"
)

// Catalog is the top-level catalog file.
type Catalog struct {
	Vendors []Vendor `yaml:"vendors"`

	// dir is the catalog file's directory; relative document paths resolve
	// against it.
	dir string
}

// Vendor is one manufacturer.
type Vendor struct {
	Name     string    `yaml:"name"`
	Homepage string    `yaml:"homepage,omitempty"`
	Aliases  []string  `yaml:"aliases,omitempty"`
	Products []Product `yaml:"products"`
}

// Product is one product family of a vendor.
type Product struct {
	Name      string     `yaml:"name"`
	Segment   string     `yaml:"segment"`
	Documents []Document `yaml:"documents"`
}

// Document is a fetched page or datasheet text stored on disk. Specs holds
// a spec map already extracted by the fetch layer and may replace Path.
type Document struct {
	Path  string            `yaml:"path,omitempty"`
	URL   string            `yaml:"url,omitempty"`
	Type  model.ContentType `yaml:"type"`
	Specs map[string]any    `yaml:"specs,omitempty"`
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cat.dir = filepath.Dir(path)
	return cat, nil
}

// Parse decodes and validates catalog YAML. Unknown fields are rejected.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cat Catalog
	if err := dec.Decode(&cat); err != nil {
		return nil, eris.Wrap(err, "catalog: decode")
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate reports every structural problem at once.
func (c *Catalog) Validate() error {
	var errs []string
	seen := make(map[string]bool)
	for i, v := range c.Vendors {
		if strings.TrimSpace(v.Name) == "" {
			errs = append(errs, fmt.Sprintf("vendors[%d]: name is required", i))
			continue
		}
		for j, p := range v.Products {
			where := fmt.Sprintf("%s/products[%d]", v.Name, j)
			if strings.TrimSpace(p.Name) == "" {
				errs = append(errs, where+": name is required")
				continue
			}
			if strings.TrimSpace(p.Segment) == "" {
				errs = append(errs, where+": segment is required")
			}
			id := v.Name + "\x00" + p.Segment + "\x00" + p.Name
			if seen[id] {
				errs = append(errs, fmt.Sprintf("%s: duplicate product %q", where, p.Name))
			}
			seen[id] = true
			for k, d := range p.Documents {
				dwhere := fmt.Sprintf("%s/documents[%d]", where, k)
				if !d.Type.Valid() {
					errs = append(errs, fmt.Sprintf("%s: type must be html or pdf_text, got %q", dwhere, d.Type))
				}
				if d.Path == "" && len(d.Specs) == 0 {
					errs = append(errs, dwhere+": path or specs is required")
				}
			}
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("catalog: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Vendor finds a vendor by name or alias, case-insensitively. The boolean
// is false when nothing matches.
func (c *Catalog) Vendor(name string) (Vendor, bool) {
	for _, v := range c.Vendors {
		if strings.EqualFold(v.Name, name) {
			return v, true
		}
		for _, a := range v.Aliases {
			if strings.EqualFold(a, name) {
				return v, true
			}
		}
	}
	return Vendor{}, false
}

// resolve returns a document path relative to the catalog file.
func (c *Catalog) resolve(path string) string {
	if filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}

// rawSpecs converts YAML-decoded values into a RawSpecMap.
func rawSpecs(in map[string]any) model.RawSpecMap {
	if len(in) == 0 {
		return nil
	}
	out := make(model.RawSpecMap, len(in))
	for k, v := range in {
		out[k] = rawValue(v)
	}
	return out
}

func rawValue(v any) model.RawValue {
	switch x := v.(type) {
	case nil:
		return model.Str("")
	case string:
		return model.Str(x)
	case []any:
		items := make([]string, 0, len(x))
		for _, it := range x {
			items = append(items, fmt.Sprint(it))
		}
		return model.List(items...)
	case map[string]any:
		m := make(map[string]model.RawValue, len(x))
		for k, it := range x {
			m[k] = rawValue(it)
		}
		return model.Nested(m)
	}
	return model.Str(fmt.Sprint(v))
}
