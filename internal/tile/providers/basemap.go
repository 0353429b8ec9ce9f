package providers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/i474232898/radar-tile-bmp/internal/tile"
)

// TemplateProvider implements tile.LayerSource for XYZ tile servers addressed
// by a URL template containing {z}, {x} and {y}.
type TemplateProvider struct {
	name     string
	template string
}

func NewTemplateProvider(name, template string) (*TemplateProvider, error) {
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(template, p) {
			return nil, fmt.Errorf("tile url template %q is missing %s", template, p)
		}
	}
	return &TemplateProvider{name: name, template: template}, nil
}

func (p *TemplateProvider) Name() string {
	return p.name
}

func (p *TemplateProvider) URL(c tile.Coordinate) (string, error) {
	r := strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(c.Zoom), 10),
		"{x}", strconv.FormatUint(uint64(c.X), 10),
		"{y}", strconv.FormatUint(uint64(c.Y), 10),
	)
	return r.Replace(p.template), nil
}
