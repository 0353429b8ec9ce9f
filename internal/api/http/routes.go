package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/radar-tile-bmp/internal/errorlog"
	"github.com/i474232898/radar-tile-bmp/internal/store"
	"github.com/i474232898/radar-tile-bmp/internal/tile"
)

const contentTypeBMP = "image/bmp"

var validate = validator.New()

func init() {
	// Static files are typed by extension and Go's built-in table has no .bmp.
	_ = mime.AddExtensionType(".bmp", contentTypeBMP)
}

// TileService is the part of the tile pipeline the HTTP layer needs.
type TileService interface {
	Generate(ctx context.Context, c tile.Coordinate) (tile.Result, error)
	Latest(c tile.Coordinate) (tile.Result, error)
	History(c tile.Coordinate, from, to time.Time) ([]tile.Result, error)
}

// ErrorReporter persists client-reported errors.
type ErrorReporter interface {
	Append(body []byte) error
}

// Deps holds what the routes serve from.
type Deps struct {
	Service  TileService
	Disk     *store.Disk
	ErrorLog ErrorReporter
	Logger   *slog.Logger

	// GenerateOnRequest regenerates a tile before /generate serves it.
	GenerateOnRequest bool
	GenerateTimeout   time.Duration
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Radar BMP Converter is running!")
	})

	app.Static("/images", d.Disk.Root())

	app.Get("/generate/:zoom/:x/:y", func(c *fiber.Ctx) error {
		coord, err := coordinateParams(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if d.GenerateOnRequest {
			ctx := c.UserContext()
			if d.GenerateTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d.GenerateTimeout)
				defer cancel()
			}
			// On failure the last good composite, if any, is still served.
			if _, err := d.Service.Generate(ctx, coord); err != nil {
				d.Logger.Error("on-demand generation failed", "tile", coord.String(), "error", err)
			}
		}

		data, err := d.Disk.ReadFile(tile.Key(coord, tile.ArtifactComposite))
		if err != nil {
			if !store.IsNotExist(err) {
				d.Logger.Error("read composite failed", "tile", coord.String(), "error", err)
			}
			c.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
			return c.Status(fiber.StatusNotFound).SendString("Not found")
		}

		c.Set(fiber.HeaderContentType, contentTypeBMP)
		return c.Send(data)
	})

	app.Post("/error", func(c *fiber.Ctx) error {
		if err := d.ErrorLog.Append(c.Body()); err != nil {
			if errors.Is(err, errorlog.ErrInvalidReport) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			d.Logger.Error("write client error report failed", "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "failed to write error log")
		}
		return c.SendString("success")
	})

	v1 := app.Group("/api/v1")

	v1.Get("/tiles/:zoom/:x/:y", func(c *fiber.Ctx) error {
		coord, err := coordinateParams(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := d.Service.Latest(coord)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "tile has not been generated")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch tile status")
		}

		return c.JSON(fiber.Map{
			"coordinate": coord,
			"bound":      boundOf(coord),
			"latest":     res,
		})
	})

	v1.Get("/tiles/:zoom/:x/:y/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		results, err := d.Service.History(req.Coordinate, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no generation history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch generation history")
		}

		return c.JSON(fiber.Map{
			"coordinate": req.Coordinate,
			"from":       req.From,
			"to":         req.To,
			"results":    results,
		})
	})
}

func coordinateParams(c *fiber.Ctx) (tile.Coordinate, error) {
	return tile.ParseCoordinate(c.Params("zoom"), c.Params("x"), c.Params("y"))
}

type bound struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

func boundOf(coord tile.Coordinate) bound {
	b := coord.Bound()
	return bound{West: b.Left(), South: b.Bottom(), East: b.Right(), North: b.Top()}
}

// historyQuery holds parameters for the history endpoint.
type historyQuery struct {
	Coordinate tile.Coordinate
	From       time.Time `validate:"required"`
	To         time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	coord, err := coordinateParams(c)
	if err != nil {
		return err
	}
	h.Coordinate = coord

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
