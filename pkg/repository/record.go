// Package repository defines the record contracts, query types and error
// taxonomy shared by the partition, selector and document packages.
package repository

import (
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// IDField is the store field holding the record identifier.
	IDField = "_id"
	// GeolocationField is the store field holding Document.Geolocation.
	GeolocationField = "geolocation"
)

// Record is implemented by every type persisted through the document engine.
type Record interface {
	GetID() string
	SetID(id string)
}

// Document is the embeddable base for records. The identifier is unique
// within its collection; the location is only used by proximity queries.
type Document struct {
	ID          string       `bson:"_id" json:"id"`
	Geolocation *Geolocation `bson:"geolocation,omitempty" json:"geolocation,omitempty"`
}

// GetID returns the record identifier.
func (d *Document) GetID() string {
	return d.ID
}

// SetID sets the record identifier.
func (d *Document) SetID(id string) {
	d.ID = id
}

// Geolocation is a longitude/latitude pair in degrees.
//
// It is stored as the legacy coordinate pair [longitude, latitude] so that
// spherical distance predicates work in radians.
type Geolocation struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// NewGeolocation returns a Geolocation for the given longitude and latitude.
func NewGeolocation(longitude, latitude float64) Geolocation {
	return Geolocation{Longitude: longitude, Latitude: latitude}
}

// Pair returns the coordinates in store order.
func (g Geolocation) Pair() []float64 {
	return []float64{g.Longitude, g.Latitude}
}

// MarshalBSONValue encodes the location as [longitude, latitude].
func (g Geolocation) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(bson.A{g.Longitude, g.Latitude})
}

// UnmarshalBSONValue decodes a [longitude, latitude] pair.
func (g *Geolocation) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var pair []float64
	if err := (bson.RawValue{Type: t, Value: data}).Unmarshal(&pair); err != nil {
		return fmt.Errorf("failed to decode geolocation: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("geolocation must have 2 coordinates, got %d", len(pair))
	}
	g.Longitude, g.Latitude = pair[0], pair[1]
	return nil
}

// IDGenerator produces identifiers for records inserted without one.
type IDGenerator func() string

// ObjectIDGenerator returns hex encoded object identifiers.
func ObjectIDGenerator() string {
	return primitive.NewObjectID().Hex()
}

// UUIDGenerator returns random (version 4) UUID strings.
func UUIDGenerator() string {
	return uuid.NewString()
}

// ParseIDStrategy maps a configured strategy name to its generator.
func ParseIDStrategy(strategy string) (IDGenerator, error) {
	switch strategy {
	case "", "objectid":
		return ObjectIDGenerator, nil
	case "uuid":
		return UUIDGenerator, nil
	default:
		return nil, fmt.Errorf("invalid id strategy: %s", strategy)
	}
}
