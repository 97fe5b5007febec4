// Package addressing normalizes free-text addresses through a
// Nominatim-compatible geocoding search API.
package addressing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"matter_intake_backend/internal/matter"
	"matter_intake_backend/platform/config"
	"matter_intake_backend/platform/logger"
)

var stateAbbreviations = map[string]string{
	"new south wales":              "NSW",
	"victoria":                     "VIC",
	"queensland":                   "QLD",
	"south australia":              "SA",
	"western australia":            "WA",
	"tasmania":                     "TAS",
	"northern territory":           "NT",
	"australian capital territory": "ACT",
}

type Service struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *logger.Logger
}

// NewService returns nil when no API URL is configured; callers treat a nil
// normalizer as "keep the raw text".
func NewService(cfg config.AddressConfig, log *logger.Logger) *Service {
	if !cfg.IsAddressValidationEnabled() {
		return nil
	}
	return &Service{
		baseURL: strings.TrimRight(cfg.GetAddressAPIURL(), "/"),
		apiKey:  cfg.GetAddressAPIKey(),
		client:  &http.Client{Timeout: 5 * time.Second},
		log:     log,
	}
}

// Normalize resolves text to the best-matching structured address.
func (s *Service) Normalize(ctx context.Context, text string) (matter.Address, error) {
	params := url.Values{}
	params.Add("q", text)
	params.Add("format", "json")
	params.Add("addressdetails", "1")
	params.Add("limit", "1")
	params.Add("countrycodes", "au")
	if s.apiKey != "" {
		params.Add("key", s.apiKey)
	}

	reqURL := fmt.Sprintf("%s/search?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return matter.Address{}, err
	}

	req.Header.Set("User-Agent", "MatterIntake/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("address search request failed", "error", err)
		return matter.Address{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		s.log.Error("address search upstream error", "status", resp.StatusCode)
		return matter.Address{}, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		s.log.Error("failed to decode address search payload", "error", err)
		return matter.Address{}, err
	}

	for _, r := range results {
		if addr, ok := buildAddress(r.Address); ok {
			return addr, nil
		}
	}
	return matter.Address{}, fmt.Errorf("no street-level match for address")
}

func buildAddress(raw searchAddress) (matter.Address, bool) {
	if raw.Road == "" {
		return matter.Address{}, false
	}

	suburb := pickSuburb(raw)
	if suburb == "" {
		return matter.Address{}, false
	}

	return matter.Address{
		Line1:    buildStreetLine(raw),
		Suburb:   suburb,
		State:    abbreviateState(raw.State),
		Postcode: raw.Postcode,
		Country:  raw.Country,
	}, true
}

func pickSuburb(address searchAddress) string {
	for _, candidate := range []string{
		address.Suburb,
		address.Town,
		address.Village,
		address.City,
		address.Municipality,
		address.Hamlet,
	} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

func buildStreetLine(raw searchAddress) string {
	number := raw.HouseNumber
	if raw.Unit != "" && number != "" {
		number = raw.Unit + "/" + number
	}
	return strings.TrimSpace(number + " " + raw.Road)
}

func abbreviateState(state string) string {
	if abbr, ok := stateAbbreviations[strings.ToLower(strings.TrimSpace(state))]; ok {
		return abbr
	}
	return state
}
