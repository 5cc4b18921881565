package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeCollection struct {
	updateFilter any
	updateDoc    any
	updateResult *mongo.UpdateResult
	updateErr    error

	findFilter any
	findDoc    any
	findErr    error
}

func (c *fakeCollection) UpdateOne(ctx context.Context, filter, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	c.updateFilter, c.updateDoc = filter, update
	if c.updateErr != nil {
		return nil, c.updateErr
	}
	return c.updateResult, nil
}

func (c *fakeCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult {
	c.findFilter = filter
	doc := c.findDoc
	if doc == nil {
		doc = bson.M{}
	}
	return mongo.NewSingleResultFromDocument(doc, c.findErr, nil)
}

func newTestMongo(c *fakeCollection) *Mongo {
	m := NewMongoWithCollection(c, nil)
	m.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return m
}

func TestMongo_Merge(t *testing.T) {
	t.Run("sets dotted paths on the order", func(t *testing.T) {
		c := &fakeCollection{updateResult: &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}}
		m := newTestMongo(c)

		require.NoError(t, m.Merge(context.Background(), "ord-1", Fields{Status: pointer.To("NEW")}))
		assert.Equal(t, bson.M{"_id": "ord-1"}, c.updateFilter)
		set := c.updateDoc.(bson.M)["$set"].(bson.M)
		assert.Equal(t, "NEW", set["shipment.status"])
	})

	t.Run("shipment id is guarded in the filter", func(t *testing.T) {
		c := &fakeCollection{updateResult: &mongo.UpdateResult{MatchedCount: 1}}
		m := newTestMongo(c)

		require.NoError(t, m.Merge(context.Background(), "ord-1", Fields{ShipmentID: pointer.To("7001")}))
		assert.Equal(t, bson.M{
			"_id":                  "ord-1",
			"shipment.shipment_id": bson.M{"$in": bson.A{nil, "", "7001"}},
		}, c.updateFilter)
	})

	t.Run("unmatched order is not found", func(t *testing.T) {
		c := &fakeCollection{updateResult: &mongo.UpdateResult{}}
		m := newTestMongo(c)

		err := m.Merge(context.Background(), "ord-x", Fields{Status: pointer.To("NEW")})
		assert.ErrorIs(t, err, ErrOrderNotFound)
		assert.Nil(t, c.findFilter)
	})

	t.Run("unmatched guarded merge on existing order conflicts", func(t *testing.T) {
		c := &fakeCollection{updateResult: &mongo.UpdateResult{}, findDoc: bson.M{"_id": "ord-1"}}
		m := newTestMongo(c)

		err := m.Merge(context.Background(), "ord-1", Fields{ShipmentID: pointer.To("7002")})
		assert.ErrorIs(t, err, ErrShipmentConflict)
		assert.Equal(t, bson.M{"_id": "ord-1"}, c.findFilter)
	})

	t.Run("unmatched guarded merge on missing order is not found", func(t *testing.T) {
		c := &fakeCollection{updateResult: &mongo.UpdateResult{}, findErr: mongo.ErrNoDocuments}
		m := newTestMongo(c)

		err := m.Merge(context.Background(), "ord-x", Fields{ShipmentID: pointer.To("7002")})
		assert.ErrorIs(t, err, ErrOrderNotFound)
		assert.NotErrorIs(t, err, ErrShipmentConflict)
	})

	t.Run("driver failure", func(t *testing.T) {
		c := &fakeCollection{updateErr: errors.New("server selection timeout")}
		m := newTestMongo(c)

		err := m.Merge(context.Background(), "ord-1", Fields{Status: pointer.To("NEW")})
		assert.ErrorIs(t, err, ErrPersistence)
	})

	t.Run("empty merge skips write", func(t *testing.T) {
		c := &fakeCollection{}
		m := newTestMongo(c)

		require.NoError(t, m.Merge(context.Background(), "ord-1", Fields{}))
		assert.Nil(t, c.updateFilter)
	})
}

func TestMongo_FindOrderID(t *testing.T) {
	c := &fakeCollection{findDoc: bson.M{"_id": "ord-7"}}
	m := newTestMongo(c)

	id, err := m.FindOrderID(context.Background(), KeyAWBCode, "AWB7")
	require.NoError(t, err)
	assert.Equal(t, "ord-7", id)
	assert.Equal(t, bson.M{"shipment.awb_code": "AWB7"}, c.findFilter)

	c.findErr = mongo.ErrNoDocuments
	_, err = m.FindOrderID(context.Background(), KeyAWBCode, "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	c.findErr = errors.New("socket closed")
	_, err = m.FindOrderID(context.Background(), KeyAWBCode, "AWB7")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrOrderNotFound)
}

func TestMongo_Get(t *testing.T) {
	c := &fakeCollection{findDoc: bson.M{"_id": "ord-1", "shipment": bson.M{"shipment_id": "7001", "status": "NEW"}}}
	m := newTestMongo(c)

	state, err := m.Get(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "7001", state.ShipmentID)
	assert.Equal(t, "NEW", state.Status)

	c.findErr = mongo.ErrNoDocuments
	_, err = m.Get(context.Background(), "ord-x")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

// fakeRedis keeps hashes and strings in maps and runs the merge script's
// contract in Go.
type fakeRedis struct {
	hashes  map[string]map[string]string
	strings map[string]string

	evalKeys []string
	evalArgs []any
	evalErr  error
	getErr   error
	hgetErr  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{hashes: map[string]map[string]string{}, strings: map[string]string{}}
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.run(keys, args)
}

func (f *fakeRedis) EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return f.run(keys, args)
}

func (f *fakeRedis) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("read-only eval not supported"))
}

func (f *fakeRedis) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("read-only eval not supported"))
}

func (f *fakeRedis) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeRedis) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func (f *fakeRedis) run(keys []string, args []any) *redis.Cmd {
	f.evalKeys, f.evalArgs = keys, args
	if f.evalErr != nil {
		return redis.NewCmdResult(nil, f.evalErr)
	}

	hash := f.hashes[keys[0]]
	incoming := args[1].(string)
	if current := hash["shipment_id"]; incoming != "" && current != "" && current != incoming {
		return redis.NewCmdResult(int64(0), nil)
	}
	if hash == nil {
		hash = map[string]string{}
		f.hashes[keys[0]] = hash
	}
	for i := 2; i+1 < len(args); i += 2 {
		hash[args[i].(string)] = args[i+1].(string)
	}
	for _, k := range keys[1:] {
		f.strings[k] = args[0].(string)
	}
	return redis.NewCmdResult(int64(1), nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.strings[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	if f.hgetErr != nil {
		return redis.NewMapStringStringResult(nil, f.hgetErr)
	}
	return redis.NewMapStringStringResult(f.hashes[key], nil)
}

func (f *fakeRedis) Close() error { return nil }

func newTestRedis(f *fakeRedis) *Redis {
	r := NewRedis(f)
	r.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return r
}

func TestRedis_MergeArgs(t *testing.T) {
	f := newFakeRedis()
	r := newTestRedis(f)

	require.NoError(t, r.Merge(context.Background(), "ord-1", Fields{
		ShipmentID: pointer.To("7001"),
		AWBCode:    pointer.To("AWB1"),
	}))

	assert.Equal(t, []string{
		"order:ord-1:shipment",
		"shipment:index:shipment_id:7001",
		"shipment:index:awb_code:AWB1",
	}, f.evalKeys)
	assert.Equal(t, []any{
		"ord-1", "7001",
		"awb_code", "AWB1",
		"last_synced", "2026-03-01T09:00:00Z",
		"shipment_id", "7001",
	}, f.evalArgs)
}

func TestRedis_MergeShipmentIDIsSetOnce(t *testing.T) {
	ctx := context.Background()
	f := newFakeRedis()
	r := newTestRedis(f)

	require.NoError(t, r.Merge(ctx, "ord-1", Fields{ShipmentID: pointer.To("7001"), Status: pointer.To("NEW")}))

	err := r.Merge(ctx, "ord-1", Fields{ShipmentID: pointer.To("7002"), Status: pointer.To("CANCELED")})
	assert.ErrorIs(t, err, ErrShipmentConflict)

	state, err := r.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "7001", state.ShipmentID)
	assert.Equal(t, "NEW", state.Status)

	_, err = r.FindOrderID(ctx, KeyShipmentID, "7002")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	id, err := r.FindOrderID(ctx, KeyShipmentID, "7001")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", id)
}

func TestRedis_ErrorMapping(t *testing.T) {
	ctx := context.Background()

	t.Run("missing index key is not found", func(t *testing.T) {
		r := newTestRedis(newFakeRedis())
		_, err := r.FindOrderID(ctx, KeyAWBCode, "AWB404")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("lookup failure is persistence", func(t *testing.T) {
		f := newFakeRedis()
		f.getErr = errors.New("i/o timeout")
		_, err := newTestRedis(f).FindOrderID(ctx, KeyAWBCode, "AWB1")
		assert.ErrorIs(t, err, ErrPersistence)
		assert.NotErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("empty hash is not found", func(t *testing.T) {
		_, err := newTestRedis(newFakeRedis()).Get(ctx, "ord-x")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("read failure is persistence", func(t *testing.T) {
		f := newFakeRedis()
		f.hgetErr = errors.New("connection reset")
		_, err := newTestRedis(f).Get(ctx, "ord-1")
		assert.ErrorIs(t, err, ErrPersistence)
	})

	t.Run("script failure is persistence", func(t *testing.T) {
		f := newFakeRedis()
		f.evalErr = errors.New("READONLY You can't write against a read only replica")
		err := newTestRedis(f).Merge(ctx, "ord-1", Fields{Status: pointer.To("NEW")})
		assert.ErrorIs(t, err, ErrPersistence)
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := newTestRedis(newFakeRedis()).FindOrderID(ctx, Key("status"), "NEW")
		assert.ErrorIs(t, err, ErrPersistence)
	})
}
