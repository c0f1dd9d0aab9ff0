package memory

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// geoJSONEarthRadiusMeters converts GeoJSON distances (meters) to radians.
const geoJSONEarthRadiusMeters = 6378100.0

// kind orders values of different types the way the server does when
// sorting mixed fields.
type kind int

const (
	kindNull kind = iota
	kindNumber
	kindString
	kindOther
	kindObjectID
	kindBool
	kindDate
)

type scalar struct {
	kind kind
	num  float64
	str  string
	oid  primitive.ObjectID
	b    bool
	raw  bson.RawValue
}

var nullScalar = scalar{kind: kindNull}

func normalize(v bson.RawValue) scalar {
	switch v.Type {
	case bsontype.Null, bsontype.Undefined, 0:
		return nullScalar
	case bsontype.Double:
		return scalar{kind: kindNumber, num: v.Double()}
	case bsontype.Int32:
		return scalar{kind: kindNumber, num: float64(v.Int32())}
	case bsontype.Int64:
		return scalar{kind: kindNumber, num: float64(v.Int64())}
	case bsontype.Decimal128:
		if f, err := strconv.ParseFloat(v.Decimal128().String(), 64); err == nil {
			return scalar{kind: kindNumber, num: f}
		}
	case bsontype.String:
		return scalar{kind: kindString, str: v.StringValue()}
	case bsontype.ObjectID:
		return scalar{kind: kindObjectID, oid: v.ObjectID()}
	case bsontype.Boolean:
		return scalar{kind: kindBool, b: v.Boolean()}
	case bsontype.DateTime:
		return scalar{kind: kindDate, num: float64(v.DateTime())}
	}
	return scalar{kind: kindOther, raw: v}
}

func compareScalars(a, b scalar) int {
	if a.kind != b.kind {
		return compareInts(int(a.kind), int(b.kind))
	}
	switch a.kind {
	case kindNull:
		return 0
	case kindNumber, kindDate:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case kindString:
		return strings.Compare(a.str, b.str)
	case kindObjectID:
		return bytes.Compare(a.oid[:], b.oid[:])
	case kindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		}
		return 1
	}
	if a.raw.Type != b.raw.Type {
		return compareInts(int(a.raw.Type), int(b.raw.Type))
	}
	return bytes.Compare(a.raw.Value, b.raw.Value)
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func lookup(doc bson.Raw, path string) (bson.RawValue, bool) {
	v, err := doc.LookupErr(strings.Split(path, ".")...)
	if err != nil {
		return bson.RawValue{}, false
	}
	return v, true
}

// matchResult carries the spherical distance of the document when the
// filter held a proximity predicate.
type matchResult struct {
	matched  bool
	near     bool
	distance float64
}

func matchDocument(doc, filter bson.Raw) (matchResult, error) {
	result := matchResult{matched: true}
	if len(filter) == 0 {
		return result, nil
	}
	elems, err := filter.Elements()
	if err != nil {
		return matchResult{}, fmt.Errorf("invalid filter: %w", err)
	}
	for _, elem := range elems {
		key := elem.Key()
		var (
			ok  bool
			err error
		)
		switch key {
		case "$and", "$or", "$nor":
			ok, err = matchLogical(doc, key, elem.Value())
		default:
			if strings.HasPrefix(key, "$") {
				return matchResult{}, fmt.Errorf("unsupported top-level operator %s", key)
			}
			var fr matchResult
			fr, err = matchField(doc, key, elem.Value())
			ok = fr.matched
			if fr.near {
				result.near = true
				result.distance = fr.distance
			}
		}
		if err != nil {
			return matchResult{}, err
		}
		if !ok {
			return matchResult{}, nil
		}
	}
	return result, nil
}

func matchLogical(doc bson.Raw, op string, cond bson.RawValue) (bool, error) {
	arr, ok := cond.ArrayOK()
	if !ok {
		return false, fmt.Errorf("%s requires an array", op)
	}
	values, err := arr.Values()
	if err != nil {
		return false, err
	}
	for _, v := range values {
		sub, ok := v.DocumentOK()
		if !ok {
			return false, fmt.Errorf("%s entries must be documents", op)
		}
		r, err := matchDocument(doc, sub)
		if err != nil {
			return false, err
		}
		switch {
		case op == "$and" && !r.matched:
			return false, nil
		case op == "$or" && r.matched:
			return true, nil
		case op == "$nor" && r.matched:
			return false, nil
		}
	}
	return op != "$or", nil
}

func isOperatorDocument(v bson.RawValue) (bson.Raw, bool) {
	d, ok := v.DocumentOK()
	if !ok {
		return nil, false
	}
	elems, err := d.Elements()
	if err != nil || len(elems) == 0 {
		return nil, false
	}
	return d, strings.HasPrefix(elems[0].Key(), "$")
}

func matchField(doc bson.Raw, path string, cond bson.RawValue) (matchResult, error) {
	val, found := lookup(doc, path)
	ops, isOps := isOperatorDocument(cond)
	if !isOps {
		return matchResult{matched: equals(val, found, cond)}, nil
	}

	elems, err := ops.Elements()
	if err != nil {
		return matchResult{}, err
	}
	result := matchResult{matched: true}
	for _, elem := range elems {
		arg := elem.Value()
		var ok bool
		switch op := elem.Key(); op {
		case "$eq":
			ok = equals(val, found, arg)
		case "$ne":
			ok = !equals(val, found, arg)
		case "$gt", "$gte", "$lt", "$lte":
			ok = compareOp(val, found, op, arg)
		case "$in", "$nin":
			arr, isArr := arg.ArrayOK()
			if !isArr {
				return matchResult{}, fmt.Errorf("%s requires an array", op)
			}
			values, err := arr.Values()
			if err != nil {
				return matchResult{}, err
			}
			for _, candidate := range values {
				if equals(val, found, candidate) {
					ok = true
					break
				}
			}
			if op == "$nin" {
				ok = !ok
			}
		case "$exists":
			ok = found == truthy(arg)
		case "$nearSphere":
			dist, within, err := nearSphere(val, found, arg, ops)
			if err != nil {
				return matchResult{}, err
			}
			ok = within
			result.near = true
			result.distance = dist
		case "$maxDistance", "$minDistance":
			ok = true
		default:
			return matchResult{}, fmt.Errorf("unsupported operator %s", op)
		}
		if !ok {
			return matchResult{}, nil
		}
	}
	return result, nil
}

func equals(val bson.RawValue, found bool, cond bson.RawValue) bool {
	c := normalize(cond)
	if !found {
		return c.kind == kindNull
	}
	if val.Type == bsontype.Array && cond.Type != bsontype.Array {
		values, err := val.Array().Values()
		if err != nil {
			return false
		}
		for _, v := range values {
			if compareScalars(normalize(v), c) == 0 {
				return true
			}
		}
		return false
	}
	return compareScalars(normalize(val), c) == 0
}

func compareOp(val bson.RawValue, found bool, op string, arg bson.RawValue) bool {
	if !found {
		return false
	}
	target := normalize(arg)
	test := func(v bson.RawValue) bool {
		s := normalize(v)
		if s.kind != target.kind {
			return false
		}
		c := compareScalars(s, target)
		switch op {
		case "$gt":
			return c > 0
		case "$gte":
			return c >= 0
		case "$lt":
			return c < 0
		}
		return c <= 0
	}
	if val.Type == bsontype.Array {
		values, err := val.Array().Values()
		if err != nil {
			return false
		}
		for _, v := range values {
			if test(v) {
				return true
			}
		}
		return false
	}
	return test(val)
}

func truthy(v bson.RawValue) bool {
	s := normalize(v)
	switch s.kind {
	case kindBool:
		return s.b
	case kindNumber:
		return s.num != 0
	case kindNull:
		return false
	}
	return true
}

type point struct {
	lng, lat float64
}

// parsePoint reads a legacy [lng, lat] pair, a GeoJSON point, or a
// {$geometry: point} wrapper. geoJSON reports whether distances for the
// point are expressed in meters.
func parsePoint(v bson.RawValue) (p point, geoJSON bool, ok bool) {
	switch v.Type {
	case bsontype.Array:
		values, err := v.Array().Values()
		if err != nil || len(values) < 2 {
			return point{}, false, false
		}
		lng, lat := normalize(values[0]), normalize(values[1])
		if lng.kind != kindNumber || lat.kind != kindNumber {
			return point{}, false, false
		}
		return point{lng: lng.num, lat: lat.num}, false, true
	case bsontype.EmbeddedDocument:
		d := v.Document()
		if geometry, err := d.LookupErr("$geometry"); err == nil {
			p, _, ok := parsePoint(geometry)
			return p, true, ok
		}
		if coords, err := d.LookupErr("coordinates"); err == nil {
			p, _, ok := parsePoint(coords)
			return p, true, ok
		}
	}
	return point{}, false, false
}

// centralAngle returns the great-circle distance between a and b in radians.
func centralAngle(a, b point) float64 {
	lat1 := a.lat * math.Pi / 180
	lat2 := b.lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.lng - a.lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(h)))
}

func nearSphere(val bson.RawValue, found bool, arg bson.RawValue, ops bson.Raw) (float64, bool, error) {
	center, geoJSON, ok := parsePoint(arg)
	if !ok {
		return 0, false, fmt.Errorf("$nearSphere requires a point")
	}
	if !found {
		return 0, false, nil
	}
	location, _, ok := parsePoint(val)
	if !ok {
		return 0, false, nil
	}

	distance := centralAngle(center, location)
	if geoJSON {
		distance *= geoJSONEarthRadiusMeters
	}

	bounds := ops
	if arg.Type == bsontype.EmbeddedDocument {
		if _, err := arg.Document().LookupErr("$geometry"); err == nil {
			bounds = arg.Document()
		}
	}
	if maxDistance, err := bounds.LookupErr("$maxDistance"); err == nil {
		m := normalize(maxDistance)
		if m.kind != kindNumber || m.num < 0 {
			return 0, false, fmt.Errorf("$maxDistance must be a non-negative number")
		}
		if distance > m.num {
			return distance, false, nil
		}
	}
	if minDistance, err := bounds.LookupErr("$minDistance"); err == nil {
		m := normalize(minDistance)
		if m.kind != kindNumber || m.num < 0 {
			return 0, false, fmt.Errorf("$minDistance must be a non-negative number")
		}
		if distance < m.num {
			return distance, false, nil
		}
	}
	return distance, true, nil
}

// nearFields lists the top-level fields carrying a proximity predicate.
func nearFields(filter bson.Raw) []string {
	if len(filter) == 0 {
		return nil
	}
	elems, err := filter.Elements()
	if err != nil {
		return nil
	}
	var fields []string
	for _, elem := range elems {
		ops, ok := isOperatorDocument(elem.Value())
		if !ok {
			continue
		}
		if _, err := ops.LookupErr("$nearSphere"); err == nil {
			fields = append(fields, elem.Key())
		}
	}
	return fields
}
