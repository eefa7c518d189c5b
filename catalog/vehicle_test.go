package catalog_test

import (
	"testing"

	"github.com/jrsteele09/go-vehicle-market/catalog"
	"github.com/stretchr/testify/require"
)

func TestEstimatePrice(t *testing.T) {
	tests := []struct {
		name     string
		year, cc int
		want     int
	}{
		{"modern", 2020, 1800, 44000},
		{"missing engine size", 2000, 0, 35000},
		{"classic", 1985, 5000, 42500},
		{"non positive falls back", 1800, 0, 25000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, catalog.EstimatePrice(tt.year, tt.cc))
		})
	}
}

func TestPlaceholderImage(t *testing.T) {
	require.Equal(t,
		"https://loremflickr.com/640/480/car,classic,Land,Rover,Defender/all?lock=9",
		catalog.PlaceholderImage("9", 1970, "Land Rover", "Defender Limited"))
	require.Equal(t,
		"https://loremflickr.com/640/480/car,Honda,Civic/all?lock=4",
		catalog.PlaceholderImage("4", 2015, "Honda", "Civic Touring Edition"))
}

func TestResolveImageURL(t *testing.T) {
	base := "https://media.example.com/"
	require.Equal(t, "https://media.example.com/media/a.jpg", catalog.ResolveImageURL(base, "media/a.jpg"))
	require.Equal(t, "https://media.example.com/media/a.jpg", catalog.ResolveImageURL(base, "/media/a.jpg"))
	require.Equal(t, "https://cdn.example.com/a.jpg", catalog.ResolveImageURL(base, "https://cdn.example.com/a.jpg"))
	require.Equal(t, "blob:abc", catalog.ResolveImageURL(base, "blob:abc"))
	require.Empty(t, catalog.ResolveImageURL(base, ""))
}
