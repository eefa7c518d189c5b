package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jrsteele09/go-vehicle-market/users"
)

const (
	basePrice        = 20000
	fallbackPrice    = 25000
	defaultEngineCC  = 2000
	classicYear      = 1990
	placeholderImage = "https://loremflickr.com/640/480/%s/all?lock=%s"
)

type Vehicle struct {
	ID                  string   `json:"id" yaml:"id"`
	Title               string   `json:"title" yaml:"title"`
	Brand               string   `json:"brand" yaml:"brand"`
	Model               string   `json:"model,omitempty" yaml:"model,omitempty"`
	Description         string   `json:"description,omitempty" yaml:"description,omitempty"`
	CustomTitle         string   `json:"customTitle,omitempty" yaml:"customTitle,omitempty"`
	DetailedDescription string   `json:"detailedDescription" yaml:"detailedDescription"`
	Price               int      `json:"price" yaml:"price"`
	ProductionYear      int      `json:"productionYear" yaml:"productionYear"`
	EngineType          string   `json:"engineType" yaml:"engineType"`
	FuelType            string   `json:"fuelType" yaml:"fuelType"`
	Views               int      `json:"views,omitempty" yaml:"views,omitempty"`
	Images              []string `json:"images" yaml:"images"`
	ImageData           []Image  `json:"imageData,omitempty" yaml:"imageData,omitempty"`
	Reviews             []Review `json:"reviews" yaml:"reviews"`
}

// Image is an uploaded picture; Image holds the resolved URL.
type Image struct {
	ID        int     `json:"id" yaml:"id"`
	Image     string  `json:"image" yaml:"image"`
	ImageURL  *string `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
	IsPrimary bool    `json:"isPrimary" yaml:"isPrimary"`
}

type Review struct {
	ID        string    `json:"id" yaml:"id"`
	UserID    string    `json:"userId" yaml:"userId"`
	UserName  string    `json:"userName" yaml:"userName"`
	Rating    int       `json:"rating" yaml:"rating"`
	Comment   string    `json:"comment" yaml:"comment"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

type rawVehicle struct {
	ID              users.ID    `json:"id"`
	DisplayName     string      `json:"vehicle_display_name"`
	MakeID          users.ID    `json:"make_id"`
	MakeName        string      `json:"make_name"`
	ModelID         users.ID    `json:"model_id"`
	ModelName       string      `json:"model_name"`
	BodyName        string      `json:"body_name"`
	DriveTypeName   string      `json:"drive_type_name"`
	Year            int         `json:"year"`
	Engine          string      `json:"engine"`
	EngineCC        int         `json:"engine_cc"`
	EngineCylinders int         `json:"engine_cylinders"`
	EngineLiters    float64     `json:"engine_liter_display"`
	NumDoors        int         `json:"num_doors"`
	FuelTypeID      *users.ID   `json:"fuel_type_id"`
	Views           int         `json:"views"`
	Images          []string    `json:"images"`
	ImageData       []rawImage  `json:"image_data"`
	Reviews         []rawReview `json:"reviews"`
	Description     string      `json:"description"`
	CustomTitle     string      `json:"custom_title"`
}

type rawImage struct {
	ID        int     `json:"id"`
	Image     string  `json:"image"`
	ImageURL  *string `json:"image_url"`
	IsPrimary bool    `json:"is_primary"`
}

type rawReview struct {
	ID        users.ID `json:"id"`
	UserID    users.ID `json:"user_id"`
	User      string   `json:"user"`
	Rating    int      `json:"rating"`
	Comment   string   `json:"comment"`
	CreatedAt string   `json:"created_at"`
}

// decodeVehicles accepts a paginated {"results": [...]} body or a bare array.
func decodeVehicles(body []byte) ([]rawVehicle, error) {
	var list []rawVehicle
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode vehicles: %w", err)
		}
		return list, nil
	}
	var page struct {
		Results []rawVehicle `json:"results"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	return page.Results, nil
}

// EstimatePrice derives a listing price from the model year and engine size.
// The API carries no prices.
func EstimatePrice(year, engineCC int) int {
	if engineCC == 0 {
		engineCC = defaultEngineCC
	}
	price := basePrice + (year-classicYear)*500 + engineCC*5
	if price <= 0 {
		return fallbackPrice
	}
	return price
}

var marketingWords = regexp.MustCompile(`Base|Edition|Package|Sport|Premium|Limited|Touring`)

// PlaceholderImage returns a stock photo URL for vehicles without uploads.
func PlaceholderImage(id string, year int, makeName, modelName string) string {
	keywords := []string{"car"}
	if year < classicYear {
		keywords = append(keywords, "classic")
	}
	for _, part := range []string{makeName, marketingWords.ReplaceAllString(modelName, "")} {
		keywords = append(keywords, strings.Fields(part)...)
	}
	return fmt.Sprintf(placeholderImage, strings.Join(keywords, ","), id)
}

// ResolveImageURL makes a media path absolute. Absolute and blob: URLs are
// returned unchanged.
func ResolveImageURL(mediaBaseURL, path string) string {
	if path == "" || strings.HasPrefix(path, "http") || strings.HasPrefix(path, "blob:") {
		return path
	}
	return strings.TrimRight(mediaBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (c *Catalog) toVehicle(v rawVehicle) Vehicle {
	id := v.ID.String()
	out := Vehicle{
		ID:                  id,
		Title:               v.DisplayName,
		Brand:               v.MakeName,
		Model:               v.ModelName,
		Description:         v.Description,
		CustomTitle:         v.CustomTitle,
		DetailedDescription: fmt.Sprintf("Engine: %s (%dcc, %d cyl)", v.Engine, v.EngineCC, v.EngineCylinders),
		Price:               EstimatePrice(v.Year, v.EngineCC),
		ProductionYear:      v.Year,
		EngineType:          v.Engine,
		FuelType:            "Unknown",
		Views:               v.Views,
		Reviews:             make([]Review, 0, len(v.Reviews)),
	}
	if out.Title == "" {
		out.Title = "Vehicle " + id
	}
	if v.FuelTypeID != nil && *v.FuelTypeID != "" && *v.FuelTypeID != "0" {
		out.FuelType = v.FuelTypeID.String()
	}

	for _, img := range v.Images {
		out.Images = append(out.Images, ResolveImageURL(c.mediaBaseURL, img))
	}
	if len(out.Images) == 0 {
		out.Images = []string{PlaceholderImage(id, v.Year, v.MakeName, v.ModelName)}
	}
	for _, img := range v.ImageData {
		out.ImageData = append(out.ImageData, Image{
			ID:        img.ID,
			Image:     ResolveImageURL(c.mediaBaseURL, img.Image),
			ImageURL:  img.ImageURL,
			IsPrimary: img.IsPrimary,
		})
	}
	for _, r := range v.Reviews {
		out.Reviews = append(out.Reviews, toReview(r))
	}
	return out
}

func toReview(r rawReview) Review {
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return Review{
		ID:        r.ID.String(),
		UserID:    r.UserID.String(),
		UserName:  r.User,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: created,
	}
}

// ParseVehicle maps a single raw vehicle body, as returned by the admin
// update endpoint.
func (c *Catalog) ParseVehicle(body []byte) (Vehicle, error) {
	var raw rawVehicle
	if err := json.Unmarshal(body, &raw); err != nil {
		return Vehicle{}, fmt.Errorf("decode vehicle: %w", err)
	}
	return c.toVehicle(raw), nil
}

// ParseImage maps an uploaded image body.
func (c *Catalog) ParseImage(body []byte) (Image, error) {
	var raw rawImage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Image{}, fmt.Errorf("decode image: %w", err)
	}
	return Image{
		ID:        raw.ID,
		Image:     ResolveImageURL(c.mediaBaseURL, raw.Image),
		ImageURL:  raw.ImageURL,
		IsPrimary: raw.IsPrimary,
	}, nil
}
