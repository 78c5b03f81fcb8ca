package validation

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Platform is a marketplace accepted in the platform_id column. Domain is
// the base domain token that product URLs must carry, e.g. "amazon".
type Platform struct {
	ID     string
	Domain string
}

// Catalog holds the allow-lists the row validator checks against. It is
// built from configuration so deployments and tests can swap it.
type Catalog struct {
	platforms map[string]Platform
	carriers  map[string]string
	strict    bool
}

// DefaultPlatforms is used when no platform list is configured
var DefaultPlatforms = []Platform{
	{ID: "amazon", Domain: "amazon"},
	{ID: "ebay", Domain: "ebay"},
	{ID: "aliexpress", Domain: "aliexpress"},
	{ID: "walmart", Domain: "walmart"},
	{ID: "etsy", Domain: "etsy"},
	{ID: "shein", Domain: "shein"},
	{ID: "temu", Domain: "temu"},
	{ID: "mercadolibre", Domain: "mercadolibre"},
	{ID: "shopee", Domain: "shopee"},
}

// DefaultCarriers is used when no carrier list is configured
var DefaultCarriers = []string{"DHL", "FEDEX", "UPS", "USPS", "ESTAFETA", "CAINIAO"}

// NewCatalog builds a catalog. Platform and carrier lookups are
// case-insensitive. With strict set, platform URLs are matched on the
// registrable domain instead of a host substring.
func NewCatalog(platforms []Platform, carriers []string, strict bool) *Catalog {
	c := &Catalog{
		platforms: make(map[string]Platform, len(platforms)),
		carriers:  make(map[string]string, len(carriers)),
		strict:    strict,
	}
	for _, p := range platforms {
		id := strings.ToLower(strings.TrimSpace(p.ID))
		if id == "" {
			continue
		}
		domain := strings.ToLower(strings.TrimSpace(p.Domain))
		if domain == "" {
			domain = id
		}
		c.platforms[id] = Platform{ID: id, Domain: domain}
	}
	for _, carrier := range carriers {
		carrier = strings.TrimSpace(carrier)
		if carrier != "" {
			c.carriers[strings.ToUpper(carrier)] = carrier
		}
	}
	return c
}

// DefaultCatalog returns the built-in allow-lists
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultPlatforms, DefaultCarriers, false)
}

// ParsePlatforms turns "id:domain" entries into platforms. A bare id uses
// itself as the domain token.
func ParsePlatforms(entries []string) []Platform {
	platforms := make([]Platform, 0, len(entries))
	for _, entry := range entries {
		id, domain, _ := strings.Cut(entry, ":")
		platforms = append(platforms, Platform{ID: id, Domain: domain})
	}
	return platforms
}

// Platform looks a platform up by id
func (c *Catalog) Platform(id string) (Platform, bool) {
	p, ok := c.platforms[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// PlatformIDs returns the sorted platform ids
func (c *Catalog) PlatformIDs() []string {
	ids := make([]string, 0, len(c.platforms))
	for id := range c.platforms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Carrier returns the canonical spelling of a carrier id
func (c *Catalog) Carrier(id string) (string, bool) {
	canonical, ok := c.carriers[strings.ToUpper(strings.TrimSpace(id))]
	return canonical, ok
}

// CarrierIDs returns the sorted carrier ids
func (c *Catalog) CarrierIDs() []string {
	ids := make([]string, 0, len(c.carriers))
	for _, id := range c.carriers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MatchesPlatformURL reports whether rawURL belongs to the platform.
//
// The default rule requires the host to contain "<domain>." which accepts
// regional variants such as www.amazon.co.jp and amazon.de but also
// amazon.example.com. Strict catalogs compare the registrable domain
// (eTLD+1) instead.
func (c *Catalog) MatchesPlatformURL(p Platform, rawURL string) bool {
	host := urlHost(rawURL)
	if host == "" {
		return false
	}
	token := p.Domain + "."
	if !c.strict {
		return strings.Contains(host, token)
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	return strings.HasPrefix(registrable, token)
}

func urlHost(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
