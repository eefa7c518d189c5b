package admin

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-vehicle-market/api"
	"github.com/jrsteele09/go-vehicle-market/users"
)

const featuresPath = "/admin/features/"

// Feature is one highlight shown on the landing page, in English, Turkish
// and Arabic.
type Feature struct {
	ID            string `json:"id,omitempty" yaml:"id,omitempty"`
	Emoji         string `json:"emoji" yaml:"emoji"`
	TitleEn       string `json:"titleEn" yaml:"titleEn"`
	TitleTr       string `json:"titleTr" yaml:"titleTr"`
	TitleAr       string `json:"titleAr" yaml:"titleAr"`
	DescriptionEn string `json:"descriptionEn" yaml:"descriptionEn"`
	DescriptionTr string `json:"descriptionTr" yaml:"descriptionTr"`
	DescriptionAr string `json:"descriptionAr" yaml:"descriptionAr"`
}

type wireFeature struct {
	ID            *users.ID `json:"id,omitempty"`
	Emoji         string    `json:"emoji"`
	TitleEn       string    `json:"title_en"`
	TitleTr       string    `json:"title_tr"`
	TitleAr       string    `json:"title_ar"`
	DescriptionEn string    `json:"description_en"`
	DescriptionTr string    `json:"description_tr"`
	DescriptionAr string    `json:"description_ar"`
}

func (f wireFeature) feature() Feature {
	out := Feature{
		Emoji:         f.Emoji,
		TitleEn:       f.TitleEn,
		TitleTr:       f.TitleTr,
		TitleAr:       f.TitleAr,
		DescriptionEn: f.DescriptionEn,
		DescriptionTr: f.DescriptionTr,
		DescriptionAr: f.DescriptionAr,
	}
	if f.ID != nil {
		out.ID = f.ID.String()
	}
	return out
}

func toWire(f Feature) wireFeature {
	return wireFeature{
		Emoji:         f.Emoji,
		TitleEn:       f.TitleEn,
		TitleTr:       f.TitleTr,
		TitleAr:       f.TitleAr,
		DescriptionEn: f.DescriptionEn,
		DescriptionTr: f.DescriptionTr,
		DescriptionAr: f.DescriptionAr,
	}
}

func (c *Console) Features(ctx context.Context) ([]Feature, error) {
	hc, err := c.authorized()
	if err != nil {
		return nil, err
	}
	var wire []wireFeature
	if err := c.api.Do(ctx, api.Request{Method: http.MethodGet, Path: featuresPath, HTTPClient: hc}, &wire); err != nil {
		return nil, err
	}
	return fromWire(wire), nil
}

// UpdateFeatures replaces the whole feature list. Ids are assigned by the server.
func (c *Console) UpdateFeatures(ctx context.Context, features []Feature) ([]Feature, error) {
	hc, err := c.authorized()
	if err != nil {
		return nil, err
	}
	body := make([]wireFeature, 0, len(features))
	for _, f := range features {
		body = append(body, toWire(f))
	}
	var wire []wireFeature
	if err := c.api.Do(ctx, api.Request{
		Method:     http.MethodPost,
		Path:       featuresPath,
		Body:       body,
		HTTPClient: hc,
	}, &wire); err != nil {
		return nil, err
	}
	return fromWire(wire), nil
}

func fromWire(wire []wireFeature) []Feature {
	out := make([]Feature, 0, len(wire))
	for _, f := range wire {
		out = append(out, f.feature())
	}
	return out
}
