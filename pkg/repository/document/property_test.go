package document

import (
	"context"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/nimburion/docroute/pkg/repository"
)

// Property: a page is the matching window of the full sorted listing.
func TestProperty_PageIsWindowOfAll(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties := gopter.NewProperties(params)

	e, _ := newPlaces(t)
	seedPlaces(t, e, 23)
	ctx := context.Background()
	q := repository.Query{Sort: repository.SortBy("rank", false)}
	all, err := e.GetAll(ctx, "", q)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}

	properties.Property("page window", prop.ForAll(
		func(pageIndex, pageSize int) bool {
			page, err := e.GetPage(ctx, "", pageIndex, pageSize, q)
			if err != nil {
				return false
			}
			from := pageIndex * pageSize
			to := from + pageSize
			if from > len(all) {
				from = len(all)
			}
			if to > len(all) {
				to = len(all)
			}
			return reflect.DeepEqual(ids(page), ids(all[from:to]))
		},
		gen.IntRange(0, 30),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

// Property: GetTopPercent returns exactly TopCount(count, p) records.
func TestProperty_TopPercentSize(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties := gopter.NewProperties(params)

	e, _ := newPlaces(t)
	seedPlaces(t, e, 17)
	ctx := context.Background()

	properties.Property("top percent size", prop.ForAll(
		func(p float64) bool {
			got, err := e.GetTopPercent(ctx, "", p, repository.Query{})
			return err == nil && len(got) == TopCount(17, p)
		},
		gen.Float64Range(0, 1),
	))

	properties.Property("top count bounds", prop.ForAll(
		func(count int64, p float64) bool {
			n := TopCount(count, p)
			return n >= 0 && int64(n) <= count
		},
		gen.Int64Range(0, 1_000_000),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

// Property: widening the radius never loses a match.
func TestProperty_NearByMonotonicInRadius(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties := gopter.NewProperties(params)

	e, _ := newPlaces(t)
	seedLandmarks(t, e)
	ctx := context.Background()
	origin := repository.NewGeolocation(0, 0)

	properties.Property("radius monotonic", prop.ForAll(
		func(radius float64) bool {
			inner, err := e.NearBy(ctx, "", origin, radius/2)
			if err != nil {
				return false
			}
			outer, err := e.NearBy(ctx, "", origin, radius)
			if err != nil {
				return false
			}
			seen := make(map[string]bool, len(outer))
			for _, p := range outer {
				seen[p.ID] = true
			}
			for _, p := range inner {
				if !seen[p.ID] {
					return false
				}
			}
			return len(inner) <= len(outer)
		},
		gen.Float64Range(0, 300_000),
	))

	properties.TestingRun(t)
}
