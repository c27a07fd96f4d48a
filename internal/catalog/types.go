package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/star/eclipse/internal/besselian"
	"github.com/star/eclipse/internal/geo"
)

// Eclipse is one catalog record: an identifier, the published type and
// greatest-eclipse point, and the Besselian elements that drive every
// computation for it.
type Eclipse struct {
	ID       string               `yaml:"id" json:"id"`
	Date     string               `yaml:"date" json:"date"` // YYYY-MM-DD (UTC)
	Type     string               `yaml:"type" json:"type"` // Partial, Annular, Total or Hybrid
	Midpoint geo.Position         `yaml:"midpoint" json:"midpoint"`
	Elements besselian.ElementSet `yaml:"elements" json:"-"`
}

var eclipseTypes = map[string]bool{
	"Partial": true,
	"Annular": true,
	"Total":   true,
	"Hybrid":  true,
}

// Central reports whether the eclipse has an umbral or antumbral path.
func (e *Eclipse) Central() bool {
	return e.Type != "Partial"
}

// Validate checks the record fields and its element set.
func (e *Eclipse) Validate() error {
	var errs []error
	if e.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if _, err := time.Parse(time.DateOnly, e.Date); err != nil {
		errs = append(errs, fmt.Errorf("invalid date %q", e.Date))
	}
	if !eclipseTypes[e.Type] {
		errs = append(errs, fmt.Errorf("unknown eclipse type %q", e.Type))
	}
	if !e.Midpoint.Valid() {
		errs = append(errs, fmt.Errorf("midpoint %v out of range", e.Midpoint))
	}
	if err := e.Elements.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("elements: %w", err))
	}
	return errors.Join(errs...)
}

// Dataset is a complete catalog loaded from one source.
type Dataset struct {
	Source    string
	FetchedAt time.Time
	Eclipses  []Eclipse

	index map[string]int
}

// NewDataset builds a Dataset and its id index. Later duplicates of an id
// are ignored.
func NewDataset(source string, fetchedAt time.Time, eclipses []Eclipse) *Dataset {
	ds := &Dataset{
		Source:    source,
		FetchedAt: fetchedAt,
		index:     make(map[string]int, len(eclipses)),
	}
	for _, e := range eclipses {
		if _, dup := ds.index[e.ID]; dup {
			continue
		}
		ds.index[e.ID] = len(ds.Eclipses)
		ds.Eclipses = append(ds.Eclipses, e)
	}
	return ds
}

// Lookup returns the eclipse with the given id.
func (d *Dataset) Lookup(id string) (Eclipse, bool) {
	i, ok := d.index[id]
	if !ok {
		return Eclipse{}, false
	}
	return d.Eclipses[i], true
}

// IDs returns the eclipse ids in catalog order.
func (d *Dataset) IDs() []string {
	ids := make([]string, len(d.Eclipses))
	for i, e := range d.Eclipses {
		ids[i] = e.ID
	}
	return ids
}
