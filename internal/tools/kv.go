package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
)

// maxKeyScan caps the number of keys kv_keys reports.
const maxKeyScan = 500

// NewRedisClient creates the shared Redis handle used by the kv_* and
// queue_* tools. The connection is established lazily on first use.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// KVGetTool reads a key from the cache.
type KVGetTool struct {
	rdb *redis.Client
}

// NewKVGetTool creates a new KVGetTool instance.
func NewKVGetTool(rdb *redis.Client) *KVGetTool {
	return &KVGetTool{rdb: rdb}
}

func (t *KVGetTool) Name() string        { return "kv_get" }
func (t *KVGetTool) Description() string { return "Reads a string value from the key-value store." }

func (t *KVGetTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"key": {Type: "string", Description: "The key to read."},
			},
			Required: []string{"key"},
		},
		RequiredRoles:     auth.All(),
		SafeForProduction: true,
	}
}

func (t *KVGetTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *KVGetTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	key, _ := GetString(args, "key")

	val, err := t.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return NewSuccessResultWithData("(not found)", map[string]any{"key": key, "found": false}), nil
	}
	if err != nil {
		return NewErrorResult(fmt.Sprintf("kv get failed: %s", err)), nil
	}
	return NewSuccessResultWithData(val, map[string]any{"key": key, "value": val, "found": true}), nil
}

// KVSetTool writes a key with an optional TTL.
type KVSetTool struct {
	rdb *redis.Client
}

// NewKVSetTool creates a new KVSetTool instance.
func NewKVSetTool(rdb *redis.Client) *KVSetTool {
	return &KVSetTool{rdb: rdb}
}

func (t *KVSetTool) Name() string { return "kv_set" }
func (t *KVSetTool) Description() string {
	return "Writes a string value to the key-value store, with an optional TTL in seconds."
}

func (t *KVSetTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"key":         {Type: "string", Description: "The key to write."},
				"value":       {Type: "string", Description: "The value to store."},
				"ttl_seconds": {Type: "integer", Description: "Optional expiry in seconds. 0 means no expiry."},
			},
			Required: []string{"key", "value"},
		},
		RequiredRoles:     []auth.Role{auth.RoleDev, auth.RoleOperator, auth.RoleAdmin},
		SafeForProduction: true,
	}
}

func (t *KVSetTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *KVSetTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	key, _ := GetString(args, "key")
	value, _ := GetString(args, "value")
	ttl := time.Duration(GetIntDefault(args, "ttl_seconds", 0)) * time.Second

	if err := t.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return NewErrorResult(fmt.Sprintf("kv set failed: %s", err)), nil
	}
	return NewSuccessResult(fmt.Sprintf("stored %s", key)), nil
}

// KVDeleteTool removes keys.
type KVDeleteTool struct {
	rdb *redis.Client
}

// NewKVDeleteTool creates a new KVDeleteTool instance.
func NewKVDeleteTool(rdb *redis.Client) *KVDeleteTool {
	return &KVDeleteTool{rdb: rdb}
}

func (t *KVDeleteTool) Name() string        { return "kv_delete" }
func (t *KVDeleteTool) Description() string { return "Deletes a key from the key-value store." }

func (t *KVDeleteTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"key": {Type: "string", Description: "The key to delete."},
			},
			Required: []string{"key"},
		},
		RequiredRoles:     []auth.Role{auth.RoleOperator, auth.RoleAdmin},
		SafeForProduction: false,
	}
}

func (t *KVDeleteTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *KVDeleteTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	key, _ := GetString(args, "key")

	n, err := t.rdb.Del(ctx, key).Result()
	if err != nil {
		return NewErrorResult(fmt.Sprintf("kv delete failed: %s", err)), nil
	}
	return NewSuccessResultWithData(fmt.Sprintf("deleted %d key(s)", n), map[string]any{"deleted": n}), nil
}

// KVKeysTool scans for keys matching a glob pattern.
type KVKeysTool struct {
	rdb *redis.Client
}

// NewKVKeysTool creates a new KVKeysTool instance.
func NewKVKeysTool(rdb *redis.Client) *KVKeysTool {
	return &KVKeysTool{rdb: rdb}
}

func (t *KVKeysTool) Name() string { return "kv_keys" }
func (t *KVKeysTool) Description() string {
	return "Lists keys matching a glob pattern (bounded scan)."
}

func (t *KVKeysTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"pattern": {Type: "string", Description: "Glob pattern, e.g. 'session:*'. Defaults to '*'."},
			},
		},
		RequiredRoles:     auth.All(),
		SafeForProduction: true,
	}
}

func (t *KVKeysTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *KVKeysTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	pattern := GetStringDefault(args, "pattern", "*")

	var keys []string
	iter := t.rdb.Scan(ctx, 0, pattern, maxKeyScan).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= maxKeyScan {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return NewErrorResult(fmt.Sprintf("kv scan failed: %s", err)), nil
	}
	return NewSuccessResultWithData(fmt.Sprintf("%d key(s)", len(keys)), keys), nil
}

// QueuePushTool appends a value to a FIFO queue.
type QueuePushTool struct {
	rdb *redis.Client
}

// NewQueuePushTool creates a new QueuePushTool instance.
func NewQueuePushTool(rdb *redis.Client) *QueuePushTool {
	return &QueuePushTool{rdb: rdb}
}

func (t *QueuePushTool) Name() string        { return "queue_push" }
func (t *QueuePushTool) Description() string { return "Pushes a value onto the tail of a queue." }

func (t *QueuePushTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"queue": {Type: "string", Description: "The queue name."},
				"value": {Type: "string", Description: "The value to enqueue."},
			},
			Required: []string{"queue", "value"},
		},
		RequiredRoles:     []auth.Role{auth.RoleDev, auth.RoleOperator, auth.RoleAdmin},
		SafeForProduction: true,
	}
}

func (t *QueuePushTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *QueuePushTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	queue, _ := GetString(args, "queue")
	value, _ := GetString(args, "value")

	length, err := t.rdb.LPush(ctx, queue, value).Result()
	if err != nil {
		return NewErrorResult(fmt.Sprintf("queue push failed: %s", err)), nil
	}
	return NewSuccessResultWithData(fmt.Sprintf("queued, length %d", length), map[string]any{"length": length}), nil
}

// QueuePopTool removes the head of a FIFO queue.
type QueuePopTool struct {
	rdb *redis.Client
}

// NewQueuePopTool creates a new QueuePopTool instance.
func NewQueuePopTool(rdb *redis.Client) *QueuePopTool {
	return &QueuePopTool{rdb: rdb}
}

func (t *QueuePopTool) Name() string        { return "queue_pop" }
func (t *QueuePopTool) Description() string { return "Pops the next value from the head of a queue." }

func (t *QueuePopTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"queue": {Type: "string", Description: "The queue name."},
			},
			Required: []string{"queue"},
		},
		RequiredRoles:     []auth.Role{auth.RoleDev, auth.RoleOperator, auth.RoleAdmin},
		SafeForProduction: true,
	}
}

func (t *QueuePopTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *QueuePopTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	queue, _ := GetString(args, "queue")

	val, err := t.rdb.RPop(ctx, queue).Result()
	if err == redis.Nil {
		return NewSuccessResultWithData("(queue empty)", map[string]any{"queue": queue, "empty": true}), nil
	}
	if err != nil {
		return NewErrorResult(fmt.Sprintf("queue pop failed: %s", err)), nil
	}
	return NewSuccessResultWithData(val, map[string]any{"queue": queue, "value": val}), nil
}
