package memory

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.mongodb.org/mongo-driver/bson"
)

func rawValue(t *testing.T, v interface{}) bson.RawValue {
	t.Helper()
	typ, data, err := bson.MarshalValue(v)
	if err != nil {
		t.Fatalf("MarshalValue(%v) failed: %v", v, err)
	}
	return bson.RawValue{Type: typ, Value: data}
}

func TestCompareScalars_TypeOrdering(t *testing.T) {
	null := normalize(bson.RawValue{})
	num := normalize(rawValue(t, 3))
	str := normalize(rawValue(t, "a"))
	boolean := normalize(rawValue(t, true))

	if compareScalars(null, num) >= 0 || compareScalars(num, str) >= 0 || compareScalars(str, boolean) >= 0 {
		t.Fatal("expected null < number < string < bool")
	}
	if compareScalars(normalize(rawValue(t, int32(2))), normalize(rawValue(t, 2.0))) != 0 {
		t.Fatal("expected int32 and double to compare equal")
	}
}

func TestCentralAngle_KnownDistance(t *testing.T) {
	// Rome to Milan is roughly 477 km.
	rome := point{lng: 12.4964, lat: 41.9028}
	milan := point{lng: 9.19, lat: 45.4642}
	km := centralAngle(rome, milan) * 6378.137
	if km < 470 || km > 485 {
		t.Fatalf("unexpected distance %.1f km", km)
	}
	if centralAngle(rome, rome) != 0 {
		t.Fatal("expected zero distance to self")
	}
}

func TestParsePoint(t *testing.T) {
	if p, geo, ok := parsePoint(rawValue(t, bson.A{1.5, 2.5})); !ok || geo || p.lng != 1.5 || p.lat != 2.5 {
		t.Fatalf("legacy pair parsed as (%v, %v, %v)", p, geo, ok)
	}
	geoJSON := bson.M{"$geometry": bson.M{"type": "Point", "coordinates": bson.A{1, 2}}}
	if p, geo, ok := parsePoint(rawValue(t, geoJSON)); !ok || !geo || p.lng != 1 || p.lat != 2 {
		t.Fatalf("GeoJSON point parsed as (%v, %v, %v)", p, geo, ok)
	}
	if _, _, ok := parsePoint(rawValue(t, "nope")); ok {
		t.Fatal("expected string to be rejected")
	}
}

func TestMatchDocument_UnsupportedOperator(t *testing.T) {
	doc, _ := bson.Marshal(bson.M{"_id": "1", "n": 1})
	filter, _ := bson.Marshal(bson.M{"n": bson.M{"$regex": "x"}})
	if _, err := matchDocument(doc, filter); err == nil {
		t.Fatal("expected unsupported operator error")
	}
}

// Property: the central angle is symmetric and bounded by pi.
func TestProperty_CentralAngleSymmetric(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("symmetric and bounded", prop.ForAll(
		func(lng1, lat1, lng2, lat2 float64) bool {
			a := point{lng: lng1, lat: lat1}
			b := point{lng: lng2, lat: lat2}
			d1, d2 := centralAngle(a, b), centralAngle(b, a)
			return math.Abs(d1-d2) < 1e-12 && d1 >= 0 && d1 <= math.Pi+1e-12
		},
		gen.Float64Range(-180, 180),
		gen.Float64Range(-90, 90),
		gen.Float64Range(-180, 180),
		gen.Float64Range(-90, 90),
	))

	properties.TestingRun(t)
}
