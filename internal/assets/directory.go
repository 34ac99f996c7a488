package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	u "flyergen/internal/utils"
)

// Company is one entry of the company directory.
type Company struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// FallbackCompanies is served when the directory file is missing or malformed.
var FallbackCompanies = []Company{
	{Name: "Google", Domain: "google.com"},
	{Name: "Apple", Domain: "apple.com"},
	{Name: "Microsoft", Domain: "microsoft.com"},
	{Name: "Amazon", Domain: "amazon.com"},
	{Name: "Meta", Domain: "meta.com"},
	{Name: "Netflix", Domain: "netflix.com"},
	{Name: "Airbnb", Domain: "airbnb.com"},
	{Name: "Uber", Domain: "uber.com"},
	{Name: "Spotify", Domain: "spotify.com"},
	{Name: "Twitter", Domain: "twitter.com"},
}

// Directory is an immutable name→domain mapping.
type Directory struct {
	companies []Company
	byName    map[string]string
	byFold    map[string]string
}

// NewDirectory builds a directory from cs, sorted by name. Entries without a
// name or domain are dropped; the first entry wins on duplicate names.
func NewDirectory(cs []Company) *Directory {
	d := &Directory{
		byName: make(map[string]string, len(cs)),
		byFold: make(map[string]string, len(cs)),
	}
	for _, c := range cs {
		c.Name = strings.TrimSpace(c.Name)
		c.Domain = strings.ToLower(strings.TrimSpace(c.Domain))
		if c.Name == "" || c.Domain == "" {
			continue
		}
		if _, dup := d.byName[c.Name]; dup {
			continue
		}
		d.companies = append(d.companies, c)
		d.byName[c.Name] = c.Domain
		if _, ok := d.byFold[strings.ToLower(c.Name)]; !ok {
			d.byFold[strings.ToLower(c.Name)] = c.Domain
		}
	}
	sort.SliceStable(d.companies, func(i, j int) bool {
		return d.companies[i].Name < d.companies[j].Name
	})
	return d
}

// ReadCompanies parses a {"companies": [...]} document.
func ReadCompanies(path string) ([]Company, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Companies []Company `json:"companies"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(doc.Companies) == 0 {
		return nil, fmt.Errorf("parse %s: no companies", path)
	}
	return doc.Companies, nil
}

// LoadDirectory reads the directory file at path, falling back to
// FallbackCompanies when it is missing, malformed or empty.
func LoadDirectory(path string) *Directory {
	cs, err := ReadCompanies(path)
	if err != nil {
		u.Warn("Company directory unavailable, using built-in list", "path", path, "error", err)
		return NewDirectory(FallbackCompanies)
	}
	d := NewDirectory(cs)
	if d.Len() == 0 {
		u.Warn("Company directory has no usable entries, using built-in list", "path", path)
		return NewDirectory(FallbackCompanies)
	}
	u.Info("Company directory loaded", "path", path, "companies", d.Len())
	return d
}

// Lookup returns the domain of a company, matching the exact name first and
// then case-insensitively.
func (d *Directory) Lookup(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if domain, ok := d.byName[name]; ok {
		return domain, true
	}
	domain, ok := d.byFold[strings.ToLower(name)]
	return domain, ok
}

// All returns the companies sorted by name.
func (d *Directory) All() []Company {
	out := make([]Company, len(d.companies))
	copy(out, d.companies)
	return out
}

// Len returns the number of companies.
func (d *Directory) Len() int { return len(d.companies) }

// LogoURL builds the provider URL for domain. provider is a bare host
// ("logo.clearbit.com") or a base URL with scheme.
func LogoURL(provider, domain string) string {
	base := strings.TrimRight(provider, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return base + "/" + domain
}
