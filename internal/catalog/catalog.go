package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
)

// Normalize canonicalizes a material name for catalog lookups: lowercase,
// trimmed, inner whitespace collapsed.
func Normalize(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	return strings.Join(fields, " ")
}

// RecycledVariant is the catalog naming convention for the recycled-content
// factor of a material ("glass" -> "glass (recycled)").
func RecycledVariant(material string) string {
	return Normalize(material) + " (recycled)"
}

type FactorEntry struct {
	Material    string  `yaml:"material"`
	Category    string  `yaml:"category"`
	Subcategory string  `yaml:"subcategory"`
	Unit        string  `yaml:"unit"`
	Carbon      float64 `yaml:"carbon"`
	Water       float64 `yaml:"water"`
	Energy      float64 `yaml:"energy"`
}

// ActivityFactor converts a manually entered activity value into kg CO2e.
type ActivityFactor struct {
	Scope  int     `yaml:"scope"`
	Unit   string  `yaml:"unit"`
	Factor float64 `yaml:"factor"`
}

type DatasetFile struct {
	DatasetVersion  string                    `yaml:"dataset_version"`
	Factors         []FactorEntry             `yaml:"factors"`
	ActivityFactors map[string]ActivityFactor `yaml:"activity_factors"`
	UpstreamFactors map[string]float64        `yaml:"upstream_factors"`
}

// Load parses a dataset file. The file is the single source of the material
// impact table, the direct-combustion activity table and the upstream-loss
// table, pinned together under one dataset version.
func Load(path string) (*DatasetFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset file: %w", err)
	}
	var ds DatasetFile
	if err := yaml.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset file: %w", err)
	}
	if strings.TrimSpace(ds.DatasetVersion) == "" {
		return nil, fmt.Errorf("dataset file missing dataset_version")
	}
	for i := range ds.Factors {
		ds.Factors[i].Material = Normalize(ds.Factors[i].Material)
		switch ds.Factors[i].Unit {
		case "g", "kg", "ml", "l":
		default:
			return nil, fmt.Errorf("factor %q: unsupported unit %q", ds.Factors[i].Material, ds.Factors[i].Unit)
		}
	}
	return &ds, nil
}

// Catalog exposes the non-material factor tables of the active dataset.
// Material factors live in the impact_factor table; these small lookup maps
// stay in memory for the lifetime of the process.
type Catalog struct {
	log      *logger.Logger
	version  string
	activity map[string]ActivityFactor
	upstream map[string]float64
}

func New(ds *DatasetFile, baseLog *logger.Logger) *Catalog {
	activity := make(map[string]ActivityFactor, len(ds.ActivityFactors))
	for k, v := range ds.ActivityFactors {
		activity[Normalize(k)] = v
	}
	upstream := make(map[string]float64, len(ds.UpstreamFactors))
	for k, v := range ds.UpstreamFactors {
		upstream[Normalize(k)] = v
	}
	return &Catalog{
		log:      baseLog.With("component", "Catalog"),
		version:  ds.DatasetVersion,
		activity: activity,
		upstream: upstream,
	}
}

func (c *Catalog) Version() string { return c.version }

// ActivityFactor returns the direct-combustion factor for a data type.
func (c *Catalog) ActivityFactor(dataType string) (ActivityFactor, bool) {
	f, ok := c.activity[Normalize(dataType)]
	return f, ok
}

// UpstreamFactor returns the transmission/production-loss factor for a data
// type. It is a distinct table from the combustion factor and captures
// upstream losses, not the fuel's own emissions.
func (c *Catalog) UpstreamFactor(dataType string) (float64, bool) {
	f, ok := c.upstream[Normalize(dataType)]
	return f, ok
}
