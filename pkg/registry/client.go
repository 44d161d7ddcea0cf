// Package registry looks up trademark holders in the WIPO Global Brand
// Database and company legal names in the INSEE Sirene register.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/brand-verifier/internal/resilience"
)

const (
	defaultWIPOURL   = "https://www3.wipo.int"
	defaultSireneURL = "https://api.insee.fr"
	defaultCountry   = "France"
	publicSearchURL  = "https://branddb.wipo.int/en/quicksearch?by=brandName&v="
	maxTrademarks    = 100
	maxLegalUnits    = 20
)

// Client queries the trademark and company registers.
type Client interface {
	Trademarks(ctx context.Context, brand string) ([]Trademark, error)
	LegalUnits(ctx context.Context, name string) ([]LegalUnit, error)
	// HasSirene reports whether legal-name lookups are configured.
	HasSirene() bool
}

// Trademark is one brand registration.
type Trademark struct {
	ID     string
	Brand  string
	Holder string
	URL    string // public Brand Database search for the brand
}

// LegalUnit is one company from the Sirene register.
type LegalUnit struct {
	SIREN string
	Name  string
}

// Option configures the client.
type Option func(*httpClient)

// WithWIPOURL overrides the Brand Database base URL. Empty keeps the default.
func WithWIPOURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.wipoURL = strings.TrimRight(u, "/")
		}
	}
}

// WithSirene sets the Sirene base URL and bearer token. Without a token,
// LegalUnits returns nothing.
func WithSirene(baseURL, token string) Option {
	return func(c *httpClient) {
		if baseURL != "" {
			c.sireneURL = strings.TrimRight(baseURL, "/")
		}
		c.sireneToken = token
	}
}

// WithCountry restricts trademark lookups to a designated country.
func WithCountry(country string) Option {
	return func(c *httpClient) {
		if country != "" {
			c.country = country
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	wipoURL     string
	sireneURL   string
	sireneToken string
	country     string
	http        *http.Client
}

// NewClient creates a registry client. Calls are made once; retrying is left
// to the caller.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		wipoURL:   defaultWIPOURL,
		sireneURL: defaultSireneURL,
		country:   defaultCountry,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) HasSirene() bool {
	return c.sireneToken != ""
}

type brandDBResponse struct {
	Response struct {
		Docs []map[string]any `json:"docs"`
	} `json:"response"`
}

func (c *httpClient) Trademarks(ctx context.Context, brand string) ([]Trademark, error) {
	q := url.Values{}
	q.Set("q", brand)
	q.Set("fq", "country_desc:"+c.country)
	q.Set("rows", fmt.Sprint(maxTrademarks))
	q.Set("wt", "json")
	endpoint := c.wipoURL + "/branddb/jsp/select.jsp?" + q.Encode()

	var result brandDBResponse
	if err := c.get(ctx, "wipo", endpoint, "", &result); err != nil {
		return nil, err
	}

	marks := make([]Trademark, 0, len(result.Response.Docs))
	for _, doc := range result.Response.Docs {
		holder := firstText(doc["holder"])
		if holder == "" {
			continue
		}
		marks = append(marks, Trademark{
			ID:     firstText(doc["id"]),
			Brand:  firstText(doc["brand"]),
			Holder: holder,
			URL:    publicSearchURL + url.QueryEscape(brand),
		})
	}
	return marks, nil
}

type sireneResponse struct {
	Etablissements []struct {
		SIREN       string `json:"siren"`
		UniteLegale struct {
			Denomination string `json:"denominationUniteLegale"`
		} `json:"uniteLegale"`
	} `json:"etablissements"`
}

func (c *httpClient) LegalUnits(ctx context.Context, name string) ([]LegalUnit, error) {
	if !c.HasSirene() {
		return nil, nil
	}
	q := url.Values{}
	q.Set("q", fmt.Sprintf("denominationUniteLegale:%q", name))
	q.Set("nombre", fmt.Sprint(maxLegalUnits))
	endpoint := c.sireneURL + "/entreprises/sirene/V3/siret?" + q.Encode()

	var result sireneResponse
	if err := c.get(ctx, "sirene", endpoint, c.sireneToken, &result); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var units []LegalUnit
	for _, e := range result.Etablissements {
		n := strings.TrimSpace(e.UniteLegale.Denomination)
		if n == "" || seen[e.SIREN+n] {
			continue
		}
		seen[e.SIREN+n] = true
		units = append(units, LegalUnit{SIREN: e.SIREN, Name: n})
	}
	return units, nil
}

func (c *httpClient) get(ctx context.Context, service, endpoint, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return eris.Wrapf(err, "%s: create request", service)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "%s: send request", service)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrapf(err, "%s: read response", service)
	}
	// Sirene answers 404 when nothing matches
	if service == "sirene" && resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return resilience.StatusError(service, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "%s: unmarshal response", service)
	}
	return nil
}

// firstText reads a Brand Database field, which is either a string or a
// list of strings.
func firstText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
