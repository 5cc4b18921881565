package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client the Redis store uses.
type RedisClient interface {
	redis.Scripter
	Get(ctx context.Context, key string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Close() error
}

// mergeScript applies a merge atomically. KEYS[1] is the state hash and
// KEYS[2..] the lookup index keys; ARGV is the order id, the incoming
// shipment id (or ""), then field/value pairs. Returns 0 without writing
// when the stored shipment id differs.
var mergeScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'shipment_id')
if ARGV[2] ~= '' and current and current ~= '' and current ~= ARGV[2] then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
for i = 2, #KEYS do
	redis.call('SET', KEYS[i], ARGV[1])
end
return 1
`)

// Redis keeps shipment state in one hash per order, plus one string key
// per lookup value pointing back at the order. HSET only touches the
// written fields. Orders are created on first merge.
type Redis struct {
	rdb RedisClient
	now func() time.Time
}

// NewRedis creates a Redis store.
func NewRedis(rdb RedisClient) *Redis {
	return &Redis{rdb: rdb, now: time.Now}
}

func stateKey(orderID string) string {
	return fmt.Sprintf("order:%s:shipment", orderID)
}

func indexKey(key Key, value string) string {
	return fmt.Sprintf("shipment:index:%s:%s", key, value)
}

// Merge implements Store.
func (r *Redis) Merge(ctx context.Context, orderID string, fields Fields) error {
	values, err := redisValues(fields, r.now())
	if err != nil {
		return persistenceErr("encoding shipment state", err)
	}
	if values == nil {
		return nil
	}

	keys, args := mergeArgs(orderID, fields, values)
	applied, err := mergeScript.Run(ctx, r.rdb, keys, args...).Int()
	if err != nil {
		return persistenceErr("merging shipment state", err)
	}
	if applied == 0 {
		return shipmentConflict(orderID)
	}
	return nil
}

func mergeArgs(orderID string, fields Fields, values map[string]any) ([]string, []any) {
	keys := []string{stateKey(orderID)}
	for _, k := range []Key{KeyShipmentID, KeyAWBCode, KeyCarrierOrderID} {
		if v, ok := values[string(k)].(string); ok && v != "" {
			keys = append(keys, indexKey(k, v))
		}
	}

	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)

	args := make([]any, 0, 2+2*len(names))
	args = append(args, orderID, "")
	if fields.ShipmentID != nil {
		args[1] = *fields.ShipmentID
	}
	for _, k := range names {
		args = append(args, k, values[k])
	}
	return keys, args
}

func redisValues(fields Fields, at time.Time) (map[string]any, error) {
	patch := fields.Patch()
	if patch == nil {
		return nil, nil
	}

	values := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		if k == "tracking_data" {
			data, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			values[k] = string(data)
			continue
		}
		values[k] = v
	}
	values["last_synced"] = at.UTC().Format(time.RFC3339Nano)
	return values, nil
}

// FindOrderID implements Store.
func (r *Redis) FindOrderID(ctx context.Context, key Key, value string) (string, error) {
	if !key.Valid() {
		return "", invalidKey(key)
	}

	id, err := r.rdb.Get(ctx, indexKey(key, value)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrOrderNotFound
		}
		return "", persistenceErr("looking up order", err)
	}
	return id, nil
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, orderID string) (*ShipmentState, error) {
	values, err := r.rdb.HGetAll(ctx, stateKey(orderID)).Result()
	if err != nil {
		return nil, persistenceErr("reading shipment state", err)
	}
	if len(values) == 0 {
		return nil, ErrOrderNotFound
	}
	return stateFromHash(values)
}

func stateFromHash(values map[string]string) (*ShipmentState, error) {
	state := &ShipmentState{
		CarrierOrderID: values["carrier_order_id"],
		ShipmentID:     values["shipment_id"],
		CourierID:      values["courier_id"],
		AWBCode:        values["awb_code"],
		CourierName:    values["courier_name"],
		Status:         values["status"],
		LabelURL:       values["label_url"],
		InvoiceURL:     values["invoice_url"],
		PickupStatus:   values["pickup_status"],
	}
	if raw := values["tracking_data"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &state.TrackingData); err != nil {
			return nil, persistenceErr("decoding tracking data", err)
		}
	}
	if raw := values["last_synced"]; raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, persistenceErr("decoding last_synced", err)
		}
		state.LastSynced = &ts
	}
	return state, nil
}

// Close implements Store.
func (r *Redis) Close(ctx context.Context) error {
	return r.rdb.Close()
}

var _ Store = (*Redis)(nil)
