package providers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/radar-tile-bmp/internal/store"
	"github.com/i474232898/radar-tile-bmp/internal/tile"
)

var testCoord = tile.Coordinate{Zoom: 9, X: 131, Y: 193}

func pngBytes(t *testing.T, size int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestResolveCurrentRadarDataset(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{
			name:   "first nowcast frame",
			status: http.StatusOK,
			body:   `{"version":"2.0","radar":{"past":[{"time":1,"path":"/v2/old"}],"nowcast":[{"time":2,"path":"/v2/abc"},{"time":3,"path":"/v2/def"}]}}`,
			want:   "/v2/abc",
		},
		{name: "server error", status: http.StatusInternalServerError, body: "oops", wantErr: true},
		{name: "malformed json", status: http.StatusOK, body: `{"radar":`, wantErr: true},
		{name: "empty nowcast", status: http.StatusOK, body: `{"radar":{"nowcast":[]}}`, wantErr: true},
		{name: "missing radar", status: http.StatusOK, body: `{}`, wantErr: true},
		{name: "empty path", status: http.StatusOK, body: `{"radar":{"nowcast":[{"time":2,"path":""}]}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewRainViewerProvider(srv.Client(), srv.URL, "", DefaultRadarStyle)
			ds, err := p.ResolveCurrentRadarDataset(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, tile.ErrMetadataUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ds.Path)
		})
	}
}

func TestResolveCurrentRadarDataset_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewRainViewerProvider(&http.Client{Timeout: time.Second}, url, "", DefaultRadarStyle)
	_, err := p.ResolveCurrentRadarDataset(context.Background())
	assert.ErrorIs(t, err, tile.ErrMetadataUnavailable)
}

func TestRadarURL(t *testing.T) {
	p := NewRainViewerProvider(http.DefaultClient, "", "", DefaultRadarStyle)
	got := p.RadarURL(tile.RadarDataset{Path: "/v2/radar/abc"}, testCoord)
	assert.Equal(t, "https://tilecache.rainviewer.com/v2/radar/abc/256/9/131/193/4/1_1.png", got)

	p = NewRainViewerProvider(http.DefaultClient, "", "http://cache.local/", RadarStyle{TileSize: 512, ColorScheme: 2})
	got = p.RadarURL(tile.RadarDataset{Path: "/v2/x"}, tile.Coordinate{Zoom: 3, X: 1, Y: 2})
	assert.Equal(t, "http://cache.local/v2/x/512/3/1/2/2/0_0.png", got)
}

func TestOpenWeatherURL(t *testing.T) {
	p := NewOpenWeatherProvider("", "secret")
	got, err := p.URL(testCoord)
	require.NoError(t, err)
	assert.Equal(t, "https://tile.openweathermap.org/map/clouds_new/9/131/193.png?appid=secret", got)
	assert.Equal(t, "openweathermap", p.Name())

	_, err = NewOpenWeatherProvider("", "").URL(testCoord)
	assert.Error(t, err)
}

func TestTemplateProvider(t *testing.T) {
	p, err := NewTemplateProvider("osm", "https://tile.example.org/{z}/{x}/{y}.png")
	require.NoError(t, err)
	got, err := p.URL(testCoord)
	require.NoError(t, err)
	assert.Equal(t, "https://tile.example.org/9/131/193.png", got)

	_, err = NewTemplateProvider("bad", "https://tile.example.org/{z}/{x}.png")
	assert.Error(t, err)
}

func TestGetWithResilience_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := HTTPClientConfig{
		Client:  srv.Client(),
		Backoff: BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
	}
	body, err := getWithResilience(context.Background(), cfg, newCircuitBreaker("test"), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), hits.Load())
}

func TestGetWithResilience_NoRetryOnClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := HTTPClientConfig{
		Client:  srv.Client(),
		Backoff: BackoffConfig{MaxRetries: 3, InitialInterval: time.Millisecond},
	}
	_, err := getWithResilience(context.Background(), cfg, newCircuitBreaker("test"), srv.URL)
	assert.ErrorIs(t, err, errUnexpected)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGetWithResilience_InvalidConfig(t *testing.T) {
	_, err := getWithResilience(context.Background(), HTTPClientConfig{}, newCircuitBreaker("test"), "http://x")
	assert.ErrorIs(t, err, errNoHTTPClient)

	cfg := HTTPClientConfig{Client: http.DefaultClient, Backoff: BackoffConfig{MaxRetries: 1}}
	_, err = getWithResilience(context.Background(), cfg, newCircuitBreaker("test"), "http://x")
	assert.ErrorIs(t, err, errInvalidConfig)
}

func TestAcquirer_FetchLayer(t *testing.T) {
	tilePNG := pngBytes(t, 16, color.NRGBA{R: 10, G: 20, B: 30, A: 128})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(tilePNG)
	}))
	defer srv.Close()

	disk := store.NewDisk(t.TempDir())
	a := NewAcquirer(srv.Client(), disk, 0, nil)

	layer, err := a.FetchLayer(context.Background(), testCoord, tile.LayerRadar, srv.URL+"/radar.png")
	require.NoError(t, err)
	assert.Equal(t, tile.LayerRadar, layer.Kind)
	assert.Equal(t, image.Rect(0, 0, 16, 16), layer.Image.Bounds())

	stored, err := disk.ReadFile("png/9-131-193-radar.png")
	require.NoError(t, err)
	assert.Equal(t, tilePNG, stored)

	loaded, err := a.LoadLayer(testCoord, tile.LayerRadar)
	require.NoError(t, err)
	assert.Equal(t, layer.Image.Bounds(), loaded.Image.Bounds())
}

func TestAcquirer_FetchLayerErrors(t *testing.T) {
	good := pngBytes(t, 4, color.White)

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{"not an image", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>nope</html>")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			disk := store.NewDisk(t.TempDir())
			require.NoError(t, disk.WriteFile(tile.LayerKey(testCoord, tile.LayerRadar), good))

			a := NewAcquirer(srv.Client(), disk, 0, nil)
			_, err := a.FetchLayer(context.Background(), testCoord, tile.LayerRadar, srv.URL)
			assert.ErrorIs(t, err, tile.ErrAcquisition)

			// The previously stored layer is left untouched.
			stored, err := disk.ReadFile(tile.LayerKey(testCoord, tile.LayerRadar))
			require.NoError(t, err)
			assert.Equal(t, good, stored)
		})
	}
}

func TestAcquirer_UnknownKind(t *testing.T) {
	a := NewAcquirer(http.DefaultClient, store.NewDisk(t.TempDir()), 0, nil)
	_, err := a.FetchLayer(context.Background(), testCoord, tile.LayerKind("terrain"), "http://x")
	assert.ErrorIs(t, err, tile.ErrAcquisition)
}

func TestAcquirer_LoadLayerMissing(t *testing.T) {
	a := NewAcquirer(http.DefaultClient, store.NewDisk(t.TempDir()), 0, nil)
	_, err := a.LoadLayer(testCoord, tile.LayerBase)
	assert.ErrorIs(t, err, tile.ErrAcquisition)
	assert.True(t, store.IsNotExist(err))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://tile.example.org/1/2/3.png?...", redact("https://tile.example.org/1/2/3.png?appid=secret"))
	assert.Equal(t, "https://tile.example.org/1/2/3.png", redact("https://tile.example.org/1/2/3.png"))
}
