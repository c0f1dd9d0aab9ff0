package document

import (
	"context"
	"math"
	"strings"

	"github.com/nimburion/docroute/pkg/observability/tracing"
	"github.com/nimburion/docroute/pkg/repository"
	"github.com/nimburion/docroute/pkg/repository/selector"
	"github.com/nimburion/docroute/pkg/store"
	"go.mongodb.org/mongo-driver/bson"
)

// EarthRadiusKm is the equatorial radius used to turn distances into the
// angles expected by spherical proximity predicates.
const EarthRadiusKm = 6378.137

// RadiansFromMeters converts a distance on the Earth's surface to radians.
func RadiansFromMeters(meters float64) float64 {
	return (meters / 1000) / EarthRadiusKm
}

// GeoIndex is the spherical index NearBy maintains on the default
// location field.
var GeoIndex = store.IndexModel{
	Field: repository.GeolocationField,
	Type:  store.Index2DSphere,
	Name:  repository.GeolocationField + "_2dsphere",
}

// NearBy returns the records whose location lies within radius meters of
// center, nearest first. It creates the spherical index on the location
// field when missing.
func (e *Engine[T, PT]) NearBy(ctx context.Context, collection string, center repository.Geolocation, radius float64) ([]T, error) {
	if err := validateCenter(center); err != nil {
		return nil, err
	}
	if err := validateRadius("radius", radius); err != nil {
		return nil, err
	}
	coll, target, err := e.resolve(ctx, collection)
	if err != nil {
		return nil, err
	}
	query := bson.D{
		{Key: "$nearSphere", Value: center.Pair()},
		{Key: "$maxDistance", Value: RadiansFromMeters(radius)},
	}
	return e.near(ctx, "near_by", coll, target, GeoIndex, query)
}

// NearByField returns the records whose location in field lies between
// minRadius and maxRadius meters of center, nearest first. The spherical
// index on field is named "<collection>_<field>" after the physical
// collection, and created when missing.
func (e *Engine[T, PT]) NearByField(ctx context.Context, collection, field string, center repository.Geolocation, maxRadius, minRadius float64) ([]T, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, repository.NewValidationError("field", "must not be blank")
	}
	if err := validateCenter(center); err != nil {
		return nil, err
	}
	if err := validateRadius("max_radius", maxRadius); err != nil {
		return nil, err
	}
	if err := validateRadius("min_radius", minRadius); err != nil {
		return nil, err
	}
	if minRadius > maxRadius {
		return nil, repository.NewValidationError("min_radius", "must not exceed max_radius (%v > %v)", minRadius, maxRadius)
	}
	coll, target, err := e.resolve(ctx, collection)
	if err != nil {
		return nil, err
	}
	index := store.IndexModel{
		Field: field,
		Type:  store.Index2DSphere,
		Name:  target.Collection + "_" + field,
	}
	query := bson.D{
		{Key: "$nearSphere", Value: center.Pair()},
		{Key: "$maxDistance", Value: RadiansFromMeters(maxRadius)},
		{Key: "$minDistance", Value: RadiansFromMeters(minRadius)},
	}
	return e.near(ctx, "near_by_field", coll, target, index, query)
}

func (e *Engine[T, PT]) near(ctx context.Context, operation string, coll store.Collection, target selector.Target, index store.IndexModel, query bson.D) ([]T, error) {
	results := make([]T, 0)
	err := e.observe(ctx, operation, tracing.SpanOperationNear, target, func(ctx context.Context) error {
		if _, err := coll.EnsureIndex(ctx, index); err != nil {
			return err
		}
		return coll.Find(ctx, repository.Filter{index.Field: query}, store.FindOptions{}, &results)
	})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []T{}
	}
	return results, nil
}

func validateCenter(center repository.Geolocation) error {
	if math.IsNaN(center.Longitude) || center.Longitude < -180 || center.Longitude > 180 {
		return repository.NewValidationError("longitude", "must be between -180 and 180, got %v", center.Longitude)
	}
	if math.IsNaN(center.Latitude) || center.Latitude < -90 || center.Latitude > 90 {
		return repository.NewValidationError("latitude", "must be between -90 and 90, got %v", center.Latitude)
	}
	return nil
}

func validateRadius(field string, meters float64) error {
	if !(meters >= 0) || math.IsInf(meters, 1) {
		return repository.NewValidationError(field, "must be a non-negative distance in meters, got %v", meters)
	}
	return nil
}
