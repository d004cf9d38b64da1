package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sliceCursor struct {
	docs []bson.M
	pos  int
	err  error
}

func (c *sliceCursor) Next(context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Decode(val interface{}) error {
	raw, err := bson.Marshal(c.docs[c.pos-1])
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, val)
}

func (c *sliceCursor) Err() error { return c.err }

func TestFlatten(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	out := flatten(bson.M{
		"_id":       oid,
		"createdAt": primitive.NewDateTimeFromTime(created),
		"items":     bson.A{bson.D{{Key: "sku", Value: "A"}}},
	})

	assert.Equal(t, oid.Hex(), out["id"])
	assert.NotContains(t, out, "_id")
	assert.Equal(t, "2024-01-02T03:04:05Z", out["createdAt"])
	items := out["items"].([]interface{})
	assert.Equal(t, map[string]interface{}{"sku": "A"}, items[0])
}

func TestFlatten_GeneratesID(t *testing.T) {
	out := flatten(bson.M{"Name": "Ada"})
	id, ok := out["id"].(string)
	require.True(t, ok)
	assert.Len(t, id, 36)
}

func TestWriteJSONL(t *testing.T) {
	cur := &sliceCursor{docs: []bson.M{
		{"_id": "a", "productID": "p-1"},
		{"_id": "b", "productID": "p-2"},
	}}

	var buf bytes.Buffer
	n, err := writeJSONL(context.Background(), &buf, cur)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "a", first["id"])
	assert.Equal(t, "p-1", first["productID"])
}

func TestWriteJSONL_CursorError(t *testing.T) {
	cur := &sliceCursor{err: errors.New("cursor killed")}
	_, err := writeJSONL(context.Background(), &bytes.Buffer{}, cur)
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "products.jsonl", objectKey("", "products"))
	assert.Equal(t, "exports/products.jsonl", objectKey("exports", "products"))
}
