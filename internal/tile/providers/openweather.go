package providers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/i474232898/radar-tile-bmp/internal/tile"
)

// DefaultCloudTileBaseURL is the OpenWeatherMap clouds overlay.
const DefaultCloudTileBaseURL = "https://tile.openweathermap.org/map/clouds_new"

// OpenWeatherProvider implements tile.LayerSource for the OpenWeatherMap
// cloud overlay.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
}

func NewOpenWeatherProvider(baseURL, apiKey string) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = DefaultCloudTileBaseURL
	}
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// URL returns {base}/{z}/{x}/{y}.png?appid={key}.
func (p *OpenWeatherProvider) URL(c tile.Coordinate) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("appid", p.apiKey)

	return fmt.Sprintf("%s/%d/%d/%d.png?%s", p.baseURL, c.Zoom, c.X, c.Y, values.Encode()), nil
}
