// Package catalog holds the hand-authored reference data for the basin study:
// which sites to fetch, which characteristic names make up each parameter,
// and the data-quality judgments (denylisted sites, incompatible units)
// applied by the pipeline.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
)

// Site is a catalog entry: a WQP site identifier and its basin label.
type Site struct {
	ID    string `mapstructure:"id" yaml:"id"`
	Basin string `mapstructure:"basin" yaml:"basin"`
}

// Parameter maps a canonical short code to its provider synonyms.
type Parameter struct {
	Code     string   `mapstructure:"code" yaml:"code"`
	Name     string   `mapstructure:"name" yaml:"name"`
	Synonyms []string `mapstructure:"synonyms" yaml:"synonyms"`
}

// Derived is a wide-table column computed as the sum of two parameters.
type Derived struct {
	Name string   `mapstructure:"name" yaml:"name"`
	Sum  []string `mapstructure:"sum" yaml:"sum"`
}

// Catalog is the full study definition.
type Catalog struct {
	Sites             []Site      `mapstructure:"sites" yaml:"sites"`
	Parameters        []Parameter `mapstructure:"parameters" yaml:"parameters"`
	SampleMedia       string      `mapstructure:"sample_media" yaml:"sample_media"`
	StartDate         string      `mapstructure:"start_date" yaml:"start_date"`
	EndDate           string      `mapstructure:"end_date" yaml:"end_date"`
	IncompatibleUnits []string    `mapstructure:"incompatible_units" yaml:"incompatible_units"`
	ExcludedSites     []string    `mapstructure:"excluded_sites" yaml:"excluded_sites"`
	Derived           []Derived   `mapstructure:"derived" yaml:"derived"`
}

// Load reads a catalog file (YAML, JSON or TOML by extension) over the
// built-in defaults. An empty path returns the defaults. Scalar settings can be
// overridden with WQETL_CATALOG_* environment variables, e.g.
// WQETL_CATALOG_START_DATE.
func Load(path string) (*Catalog, error) {
	v := viper.New()
	v.SetEnvPrefix("WQETL_CATALOG")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("sites", def.Sites)
	v.SetDefault("parameters", def.Parameters)
	v.SetDefault("sample_media", def.SampleMedia)
	v.SetDefault("start_date", def.StartDate)
	v.SetDefault("end_date", def.EndDate)
	v.SetDefault("incompatible_units", def.IncompatibleUnits)
	v.SetDefault("excluded_sites", def.ExcludedSites)
	v.SetDefault("derived", def.Derived)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
	}

	var c Catalog
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes the catalog as YAML, creating parent directories as needed.
func Save(c *Catalog, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir catalog dir: %w", err)
		}
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}

// Validate reports every problem in the catalog at once.
func (c *Catalog) Validate() error {
	var result *multierror.Error

	if len(c.Sites) == 0 {
		result = multierror.Append(result, errors.New("catalog has no sites"))
	}
	seenSites := make(map[string]bool, len(c.Sites))
	for _, s := range c.Sites {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			result = multierror.Append(result, errors.New("site with empty id"))
			continue
		}
		if seenSites[id] {
			result = multierror.Append(result, fmt.Errorf("duplicate site %q", id))
		}
		seenSites[id] = true
	}

	if len(c.Parameters) == 0 {
		result = multierror.Append(result, errors.New("catalog has no parameters"))
	}
	seenCodes := make(map[string]bool, len(c.Parameters))
	for _, p := range c.Parameters {
		if p.Code == "" {
			result = multierror.Append(result, errors.New("parameter with empty code"))
			continue
		}
		if seenCodes[p.Code] {
			result = multierror.Append(result, fmt.Errorf("duplicate parameter code %q", p.Code))
		}
		seenCodes[p.Code] = true
		if len(nonEmpty(p.Synonyms)) == 0 {
			result = multierror.Append(result, fmt.Errorf("parameter %q has no synonyms", p.Code))
		}
	}

	if c.SampleMedia == "" {
		result = multierror.Append(result, errors.New("sample_media is required"))
	}

	start, errStart := time.Parse(domain.DateLayout, c.StartDate)
	if errStart != nil {
		result = multierror.Append(result, fmt.Errorf("invalid start_date %q", c.StartDate))
	}
	end, errEnd := time.Parse(domain.DateLayout, c.EndDate)
	if errEnd != nil {
		result = multierror.Append(result, fmt.Errorf("invalid end_date %q", c.EndDate))
	}
	if errStart == nil && errEnd == nil && end.Before(start) {
		result = multierror.Append(result, fmt.Errorf("end_date %s is before start_date %s", c.EndDate, c.StartDate))
	}

	for _, d := range c.Derived {
		if d.Name == "" || len(d.Sum) != 2 {
			result = multierror.Append(result, fmt.Errorf("derived column %q must name exactly two parameters", d.Name))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	return nil
}

// SiteIDs returns the catalog site identifiers in order.
func (c *Catalog) SiteIDs() []string {
	ids := make([]string, len(c.Sites))
	for i, s := range c.Sites {
		ids[i] = s.ID
	}
	return ids
}

// Basins maps site identifier to basin label.
func (c *Catalog) Basins() map[string]string {
	m := make(map[string]string, len(c.Sites))
	for _, s := range c.Sites {
		m[s.ID] = s.Basin
	}
	return m
}

// ParameterNames maps parameter code to canonical name.
func (c *Catalog) ParameterNames() map[string]string {
	m := make(map[string]string, len(c.Parameters))
	for _, p := range c.Parameters {
		m[p.Code] = p.Name
	}
	return m
}

// ExcludedSet returns the denylisted sites as a set.
func (c *Catalog) ExcludedSet() map[string]struct{} {
	return toSet(c.ExcludedSites)
}

// IncompatibleUnitSet returns the incompatible unit strings as a set.
func (c *Catalog) IncompatibleUnitSet() map[string]struct{} {
	return toSet(c.IncompatibleUnits)
}

// DerivedColumns converts the derived column definitions for the reshaper.
func (c *Catalog) DerivedColumns() []domain.DerivedColumn {
	out := make([]domain.DerivedColumn, 0, len(c.Derived))
	for _, d := range c.Derived {
		if len(d.Sum) != 2 {
			continue
		}
		out = append(out, domain.DerivedColumn{Name: d.Name, Sum: [2]string{d.Sum[0], d.Sum[1]}})
	}
	return out
}

// Queries builds one result query per parameter, in catalog order.
func (c *Catalog) Queries() []domain.ResultQuery {
	ids := c.SiteIDs()
	out := make([]domain.ResultQuery, len(c.Parameters))
	for i, p := range c.Parameters {
		out[i] = domain.ResultQuery{
			Code:        p.Code,
			Synonyms:    nonEmpty(p.Synonyms),
			SiteIDs:     ids,
			SampleMedia: c.SampleMedia,
			StartDate:   c.StartDate,
			EndDate:     c.EndDate,
		}
	}
	return out
}

func toSet(vs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		m[strings.TrimSpace(v)] = struct{}{}
	}
	return m
}

func nonEmpty(vs []string) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
