package document

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/nimburion/docroute/pkg/repository"
	"github.com/nimburion/docroute/pkg/store/memory"
)

// seedLandmarks stores places east of (0,0) on the equator, where one
// thousandth of a degree is about 111 meters.
func seedLandmarks(t *testing.T, e *Engine[place, *place]) {
	t.Helper()
	records := []*place{
		{Document: repository.Document{ID: "origin", Geolocation: at(0, 0)}, Home: at(0, 0)},
		{Document: repository.Document{ID: "far", Geolocation: at(1, 0)}, Home: at(1, 0)},
		{Document: repository.Document{ID: "near", Geolocation: at(0.001, 0)}, Home: at(0.01, 0)},
		{Document: repository.Document{ID: "mid", Geolocation: at(0.01, 0)}, Home: at(0.001, 0)},
		{Document: repository.Document{ID: "nowhere"}},
	}
	if err := e.AddMany(context.Background(), "", records); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestRadiansFromMeters(t *testing.T) {
	if got := RadiansFromMeters(6378137); math.Abs(got-1) > 1e-12 {
		t.Fatalf("RadiansFromMeters(earth radius) = %v, want 1", got)
	}
	if RadiansFromMeters(0) != 0 {
		t.Fatal("zero meters must be zero radians")
	}
}

func TestNearBy_NearestFirstWithinRadius(t *testing.T) {
	e, f := newPlaces(t)
	ctx := context.Background()
	seedLandmarks(t, e)

	got, err := e.NearBy(ctx, "", repository.NewGeolocation(0, 0), 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"origin", "near", "mid"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("NearBy() = %v, want %v", ids(got), want)
	}

	coll := f.client.Collection("Demo", "place").(*memory.Collection)
	if indexes := coll.Indexes(); !reflect.DeepEqual(indexes, []string{"geolocation_2dsphere"}) {
		t.Fatalf("expected spherical index to be created, got %v", indexes)
	}

	again, err := e.NearBy(ctx, "", repository.NewGeolocation(0, 0), 500)
	if err != nil || !reflect.DeepEqual(ids(again), []string{"origin", "near"}) {
		t.Fatalf("second NearBy() = %v, %v", ids(again), err)
	}
	if len(coll.Indexes()) != 1 {
		t.Fatalf("index must be created once, got %v", coll.Indexes())
	}
}

func TestNearBy_ZeroRadiusMatchesCenterOnly(t *testing.T) {
	e, _ := newPlaces(t)
	seedLandmarks(t, e)

	got, err := e.NearBy(context.Background(), "", repository.NewGeolocation(0, 0), 0)
	if err != nil || !reflect.DeepEqual(ids(got), []string{"origin"}) {
		t.Fatalf("NearBy(radius 0) = %v, %v", ids(got), err)
	}
}

func TestNearBy_EmptyCollection(t *testing.T) {
	e, _ := newPlaces(t)
	got, err := e.NearBy(context.Background(), "", repository.NewGeolocation(12.5, 41.9), 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
}

func TestNearByField_Annulus(t *testing.T) {
	e, f := newPlaces(t)
	ctx := context.Background()
	seedLandmarks(t, e)

	got, err := e.NearByField(ctx, "", "home", repository.NewGeolocation(0, 0), 2000, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ids(got), []string{"near"}) {
		t.Fatalf("NearByField() = %v, want [near]", ids(got))
	}

	got, err = e.NearByField(ctx, "", "home", repository.NewGeolocation(0, 0), 2000, 0)
	if err != nil || !reflect.DeepEqual(ids(got), []string{"origin", "mid", "near"}) {
		t.Fatalf("NearByField(min 0) = %v, %v", ids(got), err)
	}

	coll := f.client.Collection("Demo", "place").(*memory.Collection)
	if indexes := coll.Indexes(); !reflect.DeepEqual(indexes, []string{"place_home"}) {
		t.Fatalf("expected index named after collection and field, got %v", indexes)
	}
}

func TestNearByField_ExplicitCollectionNamesIndex(t *testing.T) {
	e, f := newPlaces(t)
	ctx := context.Background()
	if err := e.Add(ctx, "landmarks", &place{Document: repository.Document{ID: "x"}, Home: at(0, 0)}); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := e.NearByField(ctx, "landmarks", "home", repository.NewGeolocation(0, 0), 10, 0)
	if err != nil || !reflect.DeepEqual(ids(got), []string{"x"}) {
		t.Fatalf("NearByField() = %v, %v", ids(got), err)
	}
	coll := f.client.Collection("Demo", "landmarks").(*memory.Collection)
	if indexes := coll.Indexes(); !reflect.DeepEqual(indexes, []string{"landmarks_home"}) {
		t.Fatalf("unexpected indexes %v", indexes)
	}
}

func TestNearBy_Validation(t *testing.T) {
	e, _ := newPlaces(t)
	ctx := context.Background()
	origin := repository.NewGeolocation(0, 0)

	tests := []struct {
		name string
		call func() error
	}{
		{"negative radius", func() error { _, err := e.NearBy(ctx, "", origin, -1); return err }},
		{"nan radius", func() error { _, err := e.NearBy(ctx, "", origin, math.NaN()); return err }},
		{"infinite radius", func() error { _, err := e.NearBy(ctx, "", origin, math.Inf(1)); return err }},
		{"longitude out of range", func() error {
			_, err := e.NearBy(ctx, "", repository.NewGeolocation(181, 0), 10)
			return err
		}},
		{"latitude out of range", func() error {
			_, err := e.NearBy(ctx, "", repository.NewGeolocation(0, -90.5), 10)
			return err
		}},
		{"blank field", func() error { _, err := e.NearByField(ctx, "", " ", origin, 10, 0); return err }},
		{"min exceeds max", func() error { _, err := e.NearByField(ctx, "", "home", origin, 10, 20); return err }},
		{"negative min", func() error { _, err := e.NearByField(ctx, "", "home", origin, 10, -1); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, repository.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
