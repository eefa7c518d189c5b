// Package admin wraps the staff-only endpoints: statistics, bulk vehicle
// upload, landing page features and listing edits.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-vehicle-market/api"
	"github.com/jrsteele09/go-vehicle-market/catalog"
	apperrors "github.com/jrsteele09/go-vehicle-market/internal/errors"
	"github.com/jrsteele09/go-vehicle-market/users"
)

var (
	ErrNotAdmin         = errors.New("admin privileges required")
	ErrNotAuthenticated = apperrors.ErrNotAuthenticated
)

// Session is the signed-in identity the console acts for.
type Session interface {
	HTTPClient() *http.Client
	CurrentUser() (users.User, bool)
}

type Console struct {
	api     *api.Client
	session Session
	catalog *catalog.Catalog
}

// New creates a console. cat maps the vehicles and images the endpoints return.
func New(client *api.Client, session Session, cat *catalog.Catalog) *Console {
	return &Console{api: client, session: session, catalog: cat}
}

type SearchAnalytics struct {
	Query string `json:"query" yaml:"query"`
	Count int    `json:"count" yaml:"count"`
	Date  string `json:"date" yaml:"date"`
}

type Stats struct {
	TotalVehicles   int               `json:"total_vehicles" yaml:"totalVehicles"`
	TotalUsers      int               `json:"total_users" yaml:"totalUsers"`
	TotalReviews    int               `json:"total_reviews" yaml:"totalReviews"`
	DailySearches   []SearchAnalytics `json:"daily_searches" yaml:"dailySearches"`
	MonthlySearches []SearchAnalytics `json:"monthly_searches" yaml:"monthlySearches"`
}

func (c *Console) Stats(ctx context.Context) (Stats, error) {
	hc, err := c.authorized()
	if err != nil {
		return Stats{}, err
	}
	var out Stats
	err = c.api.Do(ctx, api.Request{Method: http.MethodGet, Path: "/admin/stats/", HTTPClient: hc}, &out)
	return out, err
}

type UploadResult struct {
	ImportedCount int      `json:"imported_count" yaml:"importedCount"`
	Errors        []string `json:"errors" yaml:"errors"`
}

// UploadVehicles sends a CSV or spreadsheet of vehicles. Parsing happens on
// the server; its {"error"} message is carried by the returned error.
func (c *Console) UploadVehicles(ctx context.Context, filename string, content io.Reader) (UploadResult, error) {
	hc, err := c.authorized()
	if err != nil {
		return UploadResult{}, err
	}
	body, contentType, err := api.MultipartFile("file", filename, content)
	if err != nil {
		return UploadResult{}, err
	}
	var out UploadResult
	err = c.api.Do(ctx, api.Request{
		Method:      http.MethodPost,
		Path:        "/admin/upload-vehicles/",
		Raw:         body,
		ContentType: contentType,
		HTTPClient:  hc,
	}, &out)
	return out, err
}

// UploadTemplate downloads the sample upload file.
func (c *Console) UploadTemplate(ctx context.Context) ([]byte, error) {
	hc, err := c.authorized()
	if err != nil {
		return nil, err
	}
	return c.api.Send(ctx, api.Request{Method: http.MethodGet, Path: "/admin/upload-template/", HTTPClient: hc})
}

// VehicleUpdate edits listing metadata; nil fields are left unchanged.
type VehicleUpdate struct {
	Description *string `json:"description,omitempty"`
	CustomTitle *string `json:"custom_title,omitempty"`
}

func (c *Console) UpdateVehicle(ctx context.Context, vehicleID string, update VehicleUpdate) (catalog.Vehicle, error) {
	hc, err := c.authorized()
	if err != nil {
		return catalog.Vehicle{}, err
	}
	body, err := c.api.Send(ctx, api.Request{
		Method:     http.MethodPut,
		Path:       "/vehicles/" + url.PathEscape(vehicleID) + "/update/",
		Body:       update,
		HTTPClient: hc,
	})
	if err != nil {
		return catalog.Vehicle{}, err
	}
	return c.catalog.ParseVehicle(body)
}

func (c *Console) UploadVehicleImage(ctx context.Context, vehicleID, filename string, content io.Reader) (catalog.Image, error) {
	hc, err := c.authorized()
	if err != nil {
		return catalog.Image{}, err
	}
	form, contentType, err := api.MultipartFile("image", filename, content)
	if err != nil {
		return catalog.Image{}, err
	}
	body, err := c.api.Send(ctx, api.Request{
		Method:      http.MethodPost,
		Path:        "/vehicles/" + url.PathEscape(vehicleID) + "/images/",
		Raw:         form,
		ContentType: contentType,
		HTTPClient:  hc,
	})
	if err != nil {
		return catalog.Image{}, err
	}
	return c.catalog.ParseImage(body)
}

func (c *Console) DeleteVehicleImage(ctx context.Context, imageID int) error {
	hc, err := c.authorized()
	if err != nil {
		return err
	}
	return c.api.Do(ctx, api.Request{
		Method:     http.MethodDelete,
		Path:       "/images/" + strconv.Itoa(imageID) + "/",
		HTTPClient: hc,
	}, nil)
}

func (c *Console) authorized() (*http.Client, error) {
	user, ok := c.session.CurrentUser()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if !user.IsAdmin {
		return nil, fmt.Errorf("%w: user %s", ErrNotAdmin, user.ID)
	}
	return c.session.HTTPClient(), nil
}
