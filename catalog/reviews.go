package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-vehicle-market/api"
	apperrors "github.com/jrsteele09/go-vehicle-market/internal/errors"
)

type reviewInput struct {
	VehicleID string `json:"vehicle_id" validate:"required"`
	Rating    int    `json:"rating" validate:"min=1,max=5"`
	Comment   string `json:"comment" validate:"max=2000"`
}

// AddReview posts a 1 to 5 star review for vehicleID.
func (c *Catalog) AddReview(ctx context.Context, vehicleID string, rating int, comment string) (Review, error) {
	in := reviewInput{VehicleID: vehicleID, Rating: rating, Comment: comment}
	if err := validate.Struct(in); err != nil {
		return Review{}, fmt.Errorf("%w: %w", apperrors.ErrValidationFailed, err)
	}
	hc, err := c.authorized()
	if err != nil {
		return Review{}, err
	}

	body := map[string]any{"vehicle_id": in.VehicleID, "rating": in.Rating, "comment": in.Comment}
	if n, convErr := strconv.Atoi(in.VehicleID); convErr == nil {
		body["vehicle_id"] = n
	}
	var raw rawReview
	if err := c.api.Do(ctx, api.Request{
		Method:     http.MethodPost,
		Path:       reviewsPath,
		Body:       body,
		HTTPClient: hc,
	}, &raw); err != nil {
		return Review{}, err
	}
	return toReview(raw), nil
}

// DeleteReview removes a review. The server only allows its author or staff.
func (c *Catalog) DeleteReview(ctx context.Context, reviewID string) error {
	if reviewID == "" {
		return fmt.Errorf("%w: review id is required", apperrors.ErrValidationFailed)
	}
	hc, err := c.authorized()
	if err != nil {
		return err
	}
	return c.api.Do(ctx, api.Request{
		Method:     http.MethodDelete,
		Path:       reviewsPath + url.PathEscape(reviewID) + "/",
		HTTPClient: hc,
	}, nil)
}
