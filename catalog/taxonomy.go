package catalog

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-vehicle-market/api"
)

type Make struct {
	MakeID   int    `json:"makeId" yaml:"makeId"`
	MakeName string `json:"makeName" yaml:"makeName"`
}

type Model struct {
	ModelID   int    `json:"modelId" yaml:"modelId"`
	MakeID    int    `json:"makeId" yaml:"makeId"`
	ModelName string `json:"modelName" yaml:"modelName"`
}

type Body struct {
	BodyID   int    `json:"bodyId" yaml:"bodyId"`
	BodyName string `json:"bodyName" yaml:"bodyName"`
}

type DriveType struct {
	DriveTypeID   int    `json:"driveTypeId" yaml:"driveTypeId"`
	DriveTypeName string `json:"driveTypeName" yaml:"driveTypeName"`
}

// VehicleDetail is the technical record of one make/model/year variant.
type VehicleDetail struct {
	ID                 string  `json:"id" yaml:"id"`
	MakeName           string  `json:"makeName" yaml:"makeName"`
	ModelName          string  `json:"modelName" yaml:"modelName"`
	BodyName           string  `json:"bodyName" yaml:"bodyName"`
	DriveTypeName      string  `json:"driveTypeName" yaml:"driveTypeName"`
	VehicleDisplayName string  `json:"vehicleDisplayName" yaml:"vehicleDisplayName"`
	Year               int     `json:"year" yaml:"year"`
	Engine             string  `json:"engine" yaml:"engine"`
	EngineCC           int     `json:"engineCc" yaml:"engineCc"`
	EngineCylinders    int     `json:"engineCylinders" yaml:"engineCylinders"`
	EngineLiterDisplay float64 `json:"engineLiterDisplay" yaml:"engineLiterDisplay"`
	NumDoors           int     `json:"numDoors" yaml:"numDoors"`
}

// DetailFilters selects variants; zero fields are not sent.
type DetailFilters struct {
	MakeID  int
	ModelID int
	Year    int
}

func (c *Catalog) Makes(ctx context.Context) ([]Make, error) {
	var out []Make
	return out, c.api.Do(ctx, api.Request{Method: http.MethodGet, Path: "/makes/"}, &out)
}

// Models lists the models of makeID, or every model when makeID is 0.
func (c *Catalog) Models(ctx context.Context, makeID int) ([]Model, error) {
	r := api.Request{Method: http.MethodGet, Path: "/models/"}
	if makeID != 0 {
		r.Query = url.Values{"make_id": {strconv.Itoa(makeID)}}
	}
	var out []Model
	return out, c.api.Do(ctx, r, &out)
}

func (c *Catalog) Bodies(ctx context.Context) ([]Body, error) {
	var out []Body
	return out, c.api.Do(ctx, api.Request{Method: http.MethodGet, Path: "/bodies/"}, &out)
}

func (c *Catalog) DriveTypes(ctx context.Context) ([]DriveType, error) {
	var out []DriveType
	return out, c.api.Do(ctx, api.Request{Method: http.MethodGet, Path: "/drivetypes/"}, &out)
}

func (c *Catalog) VehicleDetails(ctx context.Context, f DetailFilters) ([]VehicleDetail, error) {
	q := url.Values{}
	for key, n := range map[string]int{"make_id": f.MakeID, "model_id": f.ModelID, "year": f.Year} {
		if n != 0 {
			q.Set(key, strconv.Itoa(n))
		}
	}
	body, err := c.api.Send(ctx, api.Request{Method: http.MethodGet, Path: vehiclesPath, Query: q})
	if err != nil {
		return nil, err
	}
	raws, err := decodeVehicles(body)
	if err != nil {
		return nil, err
	}

	out := make([]VehicleDetail, 0, len(raws))
	for _, v := range raws {
		out = append(out, VehicleDetail{
			ID:                 v.ID.String(),
			MakeName:           v.MakeName,
			ModelName:          v.ModelName,
			BodyName:           v.BodyName,
			DriveTypeName:      v.DriveTypeName,
			VehicleDisplayName: v.DisplayName,
			Year:               v.Year,
			Engine:             v.Engine,
			EngineCC:           v.EngineCC,
			EngineCylinders:    v.EngineCylinders,
			EngineLiterDisplay: v.EngineLiters,
			NumDoors:           v.NumDoors,
		})
	}
	return out, nil
}
