package catalog_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/jrsteele09/go-vehicle-market/api"
	"github.com/jrsteele09/go-vehicle-market/catalog"
	credentialsrepofake "github.com/jrsteele09/go-vehicle-market/credentials/repofake"
	"github.com/jrsteele09/go-vehicle-market/internal/apitest"
	"github.com/jrsteele09/go-vehicle-market/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	backend *apitest.Backend
	client  *api.Client
	session *session.Manager
	catalog *catalog.Catalog
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	b := apitest.New(t)
	b.AddAccount(apitest.Account{ID: 7, Username: "al", Password: "pw", Favorites: []int{2}})
	b.AddVehicle(apitest.Vehicle{
		"id": 1, "vehicle_display_name": "2020 Toyota Corolla", "make_id": 1, "make_name": "Toyota",
		"model_id": 10, "model_name": "Corolla Sport", "year": 2020, "engine": "1.8L",
		"engine_cc": 1800, "engine_cylinders": 4, "views": 10,
	})
	b.AddVehicle(apitest.Vehicle{
		"id": 2, "vehicle_display_name": "1985 Ford Mustang", "make_id": 2, "make_name": "Ford",
		"model_id": 20, "model_name": "Mustang", "year": 1985, "engine": "5.0L V8",
		"engine_cc": 5000, "engine_cylinders": 8, "views": 50, "images": []string{"media/mustang.jpg"},
	})
	b.AddVehicle(apitest.Vehicle{
		"id": 3, "vehicle_display_name": "2022 Toyota Supra", "make_id": 1, "make_name": "Toyota",
		"model_id": 11, "model_name": "Supra", "year": 2022, "engine": "3.0L",
		"engine_cc": 3000, "engine_cylinders": 6, "views": 30, "fuel_type_id": 2,
	})

	client, err := api.New(b.URL(), api.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	m, err := session.NewManager(client, credentialsrepofake.NewFakeCredentialsRepo(), session.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(m.Close)

	return &testFixture{
		backend: b,
		client:  client,
		session: m,
		catalog: catalog.New(client, b.MediaURL(), catalog.WithAuthorizer(m)),
	}
}

func ids(vehicles []catalog.Vehicle) []string {
	out := make([]string, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, v.ID)
	}
	return out
}

func TestCatalog_ListVehicles(t *testing.T) {
	t.Run("maps records", func(t *testing.T) {
		f := setupTestFixture(t)

		vehicles, err := f.catalog.ListVehicles(context.Background(), catalog.Filters{})
		require.NoError(t, err)
		require.Equal(t, []string{"1", "2", "3"}, ids(vehicles))

		corolla := vehicles[0]
		require.Equal(t, "2020 Toyota Corolla", corolla.Title)
		require.Equal(t, "Toyota", corolla.Brand)
		require.Equal(t, 44000, corolla.Price)
		require.Equal(t, "Engine: 1.8L (1800cc, 4 cyl)", corolla.DetailedDescription)
		require.Equal(t, "Unknown", corolla.FuelType)
		require.Equal(t, []string{"https://loremflickr.com/640/480/car,Toyota,Corolla/all?lock=1"}, corolla.Images)
		require.Empty(t, corolla.Reviews)

		require.Equal(t, []string{f.backend.MediaURL() + "media/mustang.jpg"}, vehicles[1].Images)
		require.Equal(t, "2", vehicles[2].FuelType)
	})

	t.Run("sends filters", func(t *testing.T) {
		f := setupTestFixture(t)

		vehicles, err := f.catalog.ListVehicles(context.Background(), catalog.Filters{
			Brand:   "toyota",
			MinYear: 2000,
			SortBy:  catalog.SortYearDesc,
		})
		require.NoError(t, err)
		require.Equal(t, []string{"3", "1"}, ids(vehicles))

		q := f.backend.LastQuery(http.MethodGet, "/vehicles/")
		require.Equal(t, "toyota", q.Get("make_name"))
		require.Equal(t, "2000", q.Get("min_year"))
		require.Equal(t, "year_desc", q.Get("sort_by"))
		require.False(t, q.Has("max_price"))
	})

	t.Run("rejects unknown sort order", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.catalog.ListVehicles(context.Background(), catalog.Filters{SortBy: "cheapest"})
		require.ErrorIs(t, err, api.ErrValidationFailed)
		require.Zero(t, f.backend.Calls(http.MethodGet, "/vehicles/"))
	})

	t.Run("accepts bare array", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.Override(http.MethodGet, "/vehicles/", func(w http.ResponseWriter, _ *http.Request) {
			apitest.JSON(w, http.StatusOK, []map[string]any{{"id": 42, "year": 2001, "make_name": "Saab"}})
		})

		vehicles, err := f.catalog.ListVehicles(context.Background(), catalog.Filters{})
		require.NoError(t, err)
		require.Len(t, vehicles, 1)
		require.Equal(t, "Vehicle 42", vehicles[0].Title)
	})
}

func TestMostViewedAndLatest(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	viewed, err := f.catalog.MostViewed(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"2", "3"}, ids(viewed))

	latest, err := f.catalog.Latest(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"3", "1", "2"}, ids(latest))
}

func TestCatalog_GetVehicle(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := setupTestFixture(t)

		v, err := f.catalog.GetVehicle(context.Background(), "2")
		require.NoError(t, err)
		require.Equal(t, "1985 Ford Mustang", v.Title)
		require.Equal(t, 42500, v.Price)
	})

	t.Run("not found", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.catalog.GetVehicle(context.Background(), "99")
		require.ErrorIs(t, err, api.ErrNotFound)
		require.Contains(t, err.Error(), "get vehicle 99")
	})
}

func TestSearchMatchesNameMakeAndModel(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	found, err := f.catalog.Search(ctx, "TOYOTA")
	require.NoError(t, err)
	require.Equal(t, []string{"1", "3"}, ids(found))

	found, err = f.catalog.Search(ctx, "mustang")
	require.NoError(t, err)
	require.Equal(t, []string{"2"}, ids(found))

	found, err = f.catalog.Search(ctx, "tesla")
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestCatalog_Favorites(t *testing.T) {
	t.Run("requires session", func(t *testing.T) {
		f := setupTestFixture(t)

		anonymous := catalog.New(f.client, f.backend.MediaURL())
		_, err := anonymous.Favorites(context.Background())
		require.ErrorIs(t, err, catalog.ErrNotAuthenticated)

		_, err = f.catalog.Favorites(context.Background())
		require.ErrorIs(t, err, session.ErrNotAuthenticated)
	})

	t.Run("lists favourites of the signed in user", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.session.Login(context.Background(), "al", "pw"))

		favorites, err := f.catalog.Favorites(context.Background())
		require.NoError(t, err)
		require.Equal(t, []string{"2"}, ids(favorites))
	})
}

func TestCatalog_Reviews(t *testing.T) {
	t.Run("add and delete", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()
		require.NoError(t, f.session.Login(ctx, "al", "pw"))

		review, err := f.catalog.AddReview(ctx, "1", 5, "Reliable")
		require.NoError(t, err)
		require.Equal(t, "al", review.UserName)
		require.Equal(t, "7", review.UserID)
		require.Equal(t, 5, review.Rating)
		require.False(t, review.CreatedAt.IsZero())
		require.JSONEq(t, `{"vehicle_id":1,"rating":5,"comment":"Reliable"}`,
			string(f.backend.LastBody(http.MethodPost, "/reviews/")))

		v, err := f.catalog.GetVehicle(ctx, "1")
		require.NoError(t, err)
		require.Len(t, v.Reviews, 1)
		require.Equal(t, "Reliable", v.Reviews[0].Comment)

		require.NoError(t, f.catalog.DeleteReview(ctx, review.ID))
		v, err = f.catalog.GetVehicle(ctx, "1")
		require.NoError(t, err)
		require.Empty(t, v.Reviews)
	})

	t.Run("validates input", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()

		_, err := f.catalog.AddReview(ctx, "1", 6, "")
		require.ErrorIs(t, err, api.ErrValidationFailed)
		_, err = f.catalog.AddReview(ctx, "", 3, "")
		require.ErrorIs(t, err, api.ErrValidationFailed)
		require.ErrorIs(t, f.catalog.DeleteReview(ctx, ""), api.ErrValidationFailed)
		require.Zero(t, f.backend.Calls(http.MethodPost, "/reviews/"))
	})
}

func TestTaxonomy(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	makes, err := f.catalog.Makes(ctx)
	require.NoError(t, err)
	require.Equal(t, catalog.Make{MakeID: 1, MakeName: "Toyota"}, makes[0])

	models, err := f.catalog.Models(ctx, 1)
	require.NoError(t, err)
	require.Len(t, models, 2)
	require.Equal(t, "1", f.backend.LastQuery(http.MethodGet, "/models/").Get("make_id"))

	all, err := f.catalog.Models(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	bodies, err := f.catalog.Bodies(ctx)
	require.NoError(t, err)
	require.Equal(t, "Sedan", bodies[0].BodyName)

	drives, err := f.catalog.DriveTypes(ctx)
	require.NoError(t, err)
	require.Equal(t, "FWD", drives[0].DriveTypeName)
}

func TestVehicleDetails(t *testing.T) {
	f := setupTestFixture(t)

	details, err := f.catalog.VehicleDetails(context.Background(), catalog.DetailFilters{MakeID: 1, Year: 2022})
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, "Supra", details[0].ModelName)
	require.Equal(t, 3000, details[0].EngineCC)

	q := f.backend.LastQuery(http.MethodGet, "/vehicles/")
	require.Equal(t, "1", q.Get("make_id"))
	require.Equal(t, "2022", q.Get("year"))
	require.False(t, q.Has("model_id"))
}
