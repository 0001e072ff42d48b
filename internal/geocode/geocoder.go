// Package geocode resolves the oracle's free-text location triples into
// coordinates. Each level is served cache-first, then remotely, falling from
// port to sea to ocean until one answers.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ignite/chartermatch/internal/entity"
	"github.com/ignite/chartermatch/internal/livelog"
	"github.com/ignite/chartermatch/internal/pkg/httpretry"
)

// DefaultBaseURL is the hosted Google Geocoding endpoint.
const DefaultBaseURL = "https://maps.googleapis.com"

// Store is the cache slice of the document store the geocoder needs.
type Store interface {
	GetKnownLocation(ctx context.Context, name string) (*entity.KnownLocation, error)
	PutKnownLocation(ctx context.Context, loc *entity.KnownLocation) error
}

// Config carries the remote geocoder settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Geocoder answers location requests for the extraction stage.
type Geocoder struct {
	store   Store
	log     *livelog.Log
	apiKey  string
	baseURL string
	http    *httpretry.RetryClient
}

// New validates the config and returns a ready geocoder.
func New(cfg Config, store Store, log *livelog.Log) (*Geocoder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Geocoder{
		store:   store,
		log:     log,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout}, 3),
	}, nil
}

// Resolve walks the levels most to least specific and returns the first hit,
// nil when every level misses. A sea-level hit reached because the port
// failed is additionally cached under the port name, so the next request for
// that port short-circuits to the broader answer. Failures never propagate;
// they are reported and treated as misses.
func (g *Geocoder) Resolve(ctx context.Context, loc entity.Location) *entity.GeocodedLocation {
	port := strings.TrimSpace(loc.Port)
	if port != "" {
		if hit := g.lookup(ctx, port); hit != nil {
			return hit
		}
	}
	if sea := strings.TrimSpace(loc.Sea); sea != "" {
		if hit := g.lookup(ctx, sea); hit != nil {
			if port != "" {
				g.cache(ctx, port, hit)
			}
			return hit
		}
	}
	if ocean := strings.TrimSpace(loc.Ocean); ocean != "" {
		if hit := g.lookup(ctx, ocean); hit != nil {
			return hit
		}
	}
	return nil
}

// lookup serves one name: cache first, then the remote geocoder, caching a
// remote hit. Misses and failures both come back nil.
func (g *Geocoder) lookup(ctx context.Context, name string) *entity.GeocodedLocation {
	known, err := g.store.GetKnownLocation(ctx, name)
	if err != nil {
		g.log.Errorf("location cache probe for '%s' failed: %v", name, err)
	} else if known != nil {
		gl := known.GeocodedLocation
		return &gl
	}

	gl, err := g.remote(ctx, name)
	if err != nil {
		g.log.Errorf("geocoding '%s' failed: %v", name, err)
		return nil
	}
	if gl == nil {
		return nil
	}
	g.cache(ctx, name, gl)
	return gl
}

// cache stores a copy of gl under the given name. Duplicate-key races are
// swallowed by the store; anything else is reported and ignored.
func (g *Geocoder) cache(ctx context.Context, name string, gl *entity.GeocodedLocation) {
	row := entity.KnownLocation{GeocodedLocation: *gl}
	row.Name = name
	if err := g.store.PutKnownLocation(ctx, &row); err != nil {
		g.log.Errorf("caching location '%s' failed: %v", name, err)
	}
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// remote asks the Google Geocoding API for one name. ZERO_RESULTS is a miss
// (nil, nil), any other non-OK status an error.
func (g *Geocoder) remote(ctx context.Context, name string) (*entity.GeocodedLocation, error) {
	params := url.Values{}
	params.Set("address", name)
	params.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/maps/api/geocode/json?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding request failed: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var gr geocodeResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}
	switch gr.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		if gr.ErrorMessage != "" {
			return nil, fmt.Errorf("geocoding returned %s: %s", gr.Status, gr.ErrorMessage)
		}
		return nil, fmt.Errorf("geocoding returned status %s", gr.Status)
	}
	if len(gr.Results) == 0 {
		return nil, nil
	}

	top := gr.Results[0]
	var full struct {
		Results []map[string]interface{} `json:"results"`
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &full); err == nil && len(full.Results) > 0 {
		raw = full.Results[0]
	}
	return &entity.GeocodedLocation{
		Name:     name,
		Address:  top.FormattedAddress,
		Location: entity.NewGeoPoint(top.Geometry.Location.Lng, top.Geometry.Location.Lat),
		Raw:      raw,
	}, nil
}
