// Package catalog reads vehicle listings, favourites, reviews and the vehicle
// taxonomy from the marketplace API.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-vehicle-market/api"
	apperrors "github.com/jrsteele09/go-vehicle-market/internal/errors"
)

const (
	vehiclesPath  = "/vehicles/"
	favoritesPath = "/favorites/"
	reviewsPath   = "/reviews/"

	DefaultMostViewed = 4
	DefaultLatest     = 6
)

var ErrNotAuthenticated = apperrors.ErrNotAuthenticated

// Authorizer supplies the client for bearer-protected calls, typically a
// *session.Manager.
type Authorizer interface {
	HTTPClient() *http.Client
}

type Catalog struct {
	api          *api.Client
	auth         Authorizer
	mediaBaseURL string
}

type Option func(*Catalog)

// WithAuthorizer enables the calls that need a signed-in user.
func WithAuthorizer(a Authorizer) Option {
	return func(c *Catalog) {
		c.auth = a
	}
}

// New creates a catalog. Relative image paths are resolved against mediaBaseURL.
func New(client *api.Client, mediaBaseURL string, opts ...Option) *Catalog {
	c := &Catalog{api: client, mediaBaseURL: mediaBaseURL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type SortOrder string

const (
	SortViews     SortOrder = "views"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortYearDesc  SortOrder = "year_desc"
)

// Filters narrows a listing. Zero values are not sent.
type Filters struct {
	Brand    string    `json:"make_name"`
	Engine   string    `json:"engine"`
	MinYear  int       `json:"min_year" validate:"gte=0"`
	MaxYear  int       `json:"max_year" validate:"gte=0"`
	MinPrice int       `json:"min_price" validate:"gte=0"`
	MaxPrice int       `json:"max_price" validate:"gte=0"`
	Query    string    `json:"q"`
	SortBy   SortOrder `json:"sort_by" validate:"omitempty,oneof=views price_asc price_desc year_desc"`
}

func (f Filters) values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	setInt := func(key string, n int) {
		if n != 0 {
			v.Set(key, strconv.Itoa(n))
		}
	}
	set("make_name", f.Brand)
	set("engine", f.Engine)
	setInt("min_year", f.MinYear)
	setInt("max_year", f.MaxYear)
	setInt("min_price", f.MinPrice)
	setInt("max_price", f.MaxPrice)
	set("q", f.Query)
	set("sort_by", string(f.SortBy))
	return v
}

func (c *Catalog) ListVehicles(ctx context.Context, f Filters) ([]Vehicle, error) {
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidationFailed, err)
	}
	return c.list(ctx, api.Request{Method: http.MethodGet, Path: vehiclesPath, Query: f.values()})
}

// MostViewed returns up to limit vehicles ordered by views.
func (c *Catalog) MostViewed(ctx context.Context, limit int) ([]Vehicle, error) {
	if limit <= 0 {
		limit = DefaultMostViewed
	}
	return c.top(ctx, SortViews, limit)
}

// Latest returns up to limit vehicles ordered by model year, newest first.
func (c *Catalog) Latest(ctx context.Context, limit int) ([]Vehicle, error) {
	if limit <= 0 {
		limit = DefaultLatest
	}
	return c.top(ctx, SortYearDesc, limit)
}

func (c *Catalog) top(ctx context.Context, order SortOrder, limit int) ([]Vehicle, error) {
	vehicles, err := c.ListVehicles(ctx, Filters{SortBy: order})
	if err != nil {
		return nil, err
	}
	if len(vehicles) > limit {
		vehicles = vehicles[:limit]
	}
	return vehicles, nil
}

func (c *Catalog) GetVehicle(ctx context.Context, id string) (Vehicle, error) {
	var raw rawVehicle
	if err := c.api.Do(ctx, api.Request{
		Method: http.MethodGet,
		Path:   vehiclesPath + url.PathEscape(id) + "/",
	}, &raw); err != nil {
		return Vehicle{}, apperrors.Wrapf(err, "get vehicle %s", id)
	}
	return c.toVehicle(raw), nil
}

// Search matches query case-insensitively against the display name, make
// and model of every listed vehicle.
func (c *Catalog) Search(ctx context.Context, query string) ([]Vehicle, error) {
	body, err := c.api.Send(ctx, api.Request{Method: http.MethodGet, Path: vehiclesPath})
	if err != nil {
		return nil, err
	}
	raws, err := decodeVehicles(body)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	out := []Vehicle{}
	for _, v := range raws {
		for _, field := range []string{v.DisplayName, v.MakeName, v.ModelName} {
			if field != "" && strings.Contains(strings.ToLower(field), q) {
				out = append(out, c.toVehicle(v))
				break
			}
		}
	}
	return out, nil
}

// Favorites lists the signed-in user's favourite vehicles.
func (c *Catalog) Favorites(ctx context.Context) ([]Vehicle, error) {
	hc, err := c.authorized()
	if err != nil {
		return nil, err
	}
	return c.list(ctx, api.Request{Method: http.MethodGet, Path: favoritesPath, HTTPClient: hc})
}

func (c *Catalog) list(ctx context.Context, r api.Request) ([]Vehicle, error) {
	body, err := c.api.Send(ctx, r)
	if err != nil {
		return nil, err
	}
	raws, err := decodeVehicles(body)
	if err != nil {
		return nil, err
	}
	out := make([]Vehicle, 0, len(raws))
	for _, v := range raws {
		out = append(out, c.toVehicle(v))
	}
	return out, nil
}

func (c *Catalog) authorized() (*http.Client, error) {
	if c.auth == nil {
		return nil, ErrNotAuthenticated
	}
	return c.auth.HTTPClient(), nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())
