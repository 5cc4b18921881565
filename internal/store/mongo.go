package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const shipmentNamespace = "shipment"

// MongoCollection is the subset of *mongo.Collection the Mongo store uses.
type MongoCollection interface {
	UpdateOne(ctx context.Context, filter, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
}

// Mongo keeps shipment state in the "shipment" sub-document of an order.
// Merges $set dotted paths, so only the written keys change.
type Mongo struct {
	orders MongoCollection
	close  func(context.Context) error
	now    func() time.Time
}

// NewMongo creates a Mongo store over the given collection.
func NewMongo(client *mongo.Client, database, collection string) *Mongo {
	if collection == "" {
		collection = "orders"
	}
	return NewMongoWithCollection(client.Database(database).Collection(collection), client.Disconnect)
}

// NewMongoWithCollection creates a Mongo store over coll. closeFn may be nil.
func NewMongoWithCollection(coll MongoCollection, closeFn func(context.Context) error) *Mongo {
	return &Mongo{orders: coll, close: closeFn, now: time.Now}
}

// Merge implements Store.
func (m *Mongo) Merge(ctx context.Context, orderID string, fields Fields) error {
	set := mongoSet(fields, m.now())
	if set == nil {
		return nil
	}

	res, err := m.orders.UpdateOne(ctx, mergeFilter(orderID, fields), bson.M{"$set": set})
	if err != nil {
		return persistenceErr("merging shipment state", err)
	}
	if res.MatchedCount == 0 {
		if fields.ShipmentID != nil {
			return m.missOrConflict(ctx, orderID)
		}
		return fmt.Errorf("merging shipment state of %q: %w", orderID, ErrOrderNotFound)
	}
	return nil
}

// mergeFilter matches the order, and when a shipment id is written only
// while the stored one is unset or equal.
func mergeFilter(orderID string, fields Fields) bson.M {
	filter := bson.M{"_id": orderID}
	if fields.ShipmentID != nil {
		filter[shipmentNamespace+".shipment_id"] = bson.M{"$in": bson.A{nil, "", *fields.ShipmentID}}
	}
	return filter
}

func (m *Mongo) missOrConflict(ctx context.Context, orderID string) error {
	var doc struct {
		ID string `bson:"_id"`
	}
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	if err := m.orders.FindOne(ctx, bson.M{"_id": orderID}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("merging shipment state of %q: %w", orderID, ErrOrderNotFound)
		}
		return persistenceErr("checking order", err)
	}
	return shipmentConflict(orderID)
}

func mongoSet(fields Fields, at time.Time) bson.M {
	patch := fields.Patch()
	if patch == nil {
		return nil
	}

	set := bson.M{shipmentNamespace + ".last_synced": at.UTC()}
	for k, v := range patch {
		set[shipmentNamespace+"."+k] = v
	}
	return set
}

// FindOrderID implements Store.
func (m *Mongo) FindOrderID(ctx context.Context, key Key, value string) (string, error) {
	if !key.Valid() {
		return "", invalidKey(key)
	}

	var doc struct {
		ID string `bson:"_id"`
	}
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	err := m.orders.FindOne(ctx, bson.M{shipmentNamespace + "." + string(key): value}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrOrderNotFound
		}
		return "", persistenceErr("looking up order", err)
	}
	return doc.ID, nil
}

// Get implements Store.
func (m *Mongo) Get(ctx context.Context, orderID string) (*ShipmentState, error) {
	var doc struct {
		Shipment ShipmentState `bson:"shipment"`
	}
	opts := options.FindOne().SetProjection(bson.M{shipmentNamespace: 1})
	err := m.orders.FindOne(ctx, bson.M{"_id": orderID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, persistenceErr("reading shipment state", err)
	}
	return &doc.Shipment, nil
}

// Close implements Store.
func (m *Mongo) Close(ctx context.Context) error {
	if m.close == nil {
		return nil
	}
	return m.close(ctx)
}

var _ Store = (*Mongo)(nil)
