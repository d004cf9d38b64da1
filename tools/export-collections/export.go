package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	awspkg "storefront-gateway/pkg/aws"
	ddbpkg "storefront-gateway/pkg/dynamodb"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const idAttribute = "id"

// documentCursor is the part of *mongo.Cursor the exporters read from.
type documentCursor interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Err() error
}

// exporter copies one collection to a target and reports how many documents
// it wrote.
type exporter interface {
	Export(ctx context.Context, collection string, cur documentCursor) (int, error)
}

// normalize turns driver types into plain JSON-friendly values.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339Nano)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case primitive.Decimal128:
		return val.String()
	case bson.M:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// flatten normalizes doc and moves _id to the id attribute, generating one
// when the document has none.
func flatten(doc bson.M) map[string]interface{} {
	out := normalize(doc).(map[string]interface{})
	id, ok := out["_id"]
	delete(out, "_id")
	if s, isString := id.(string); ok && isString && s != "" {
		out[idAttribute] = s
	} else if ok && id != nil {
		out[idAttribute] = fmt.Sprint(id)
	} else {
		out[idAttribute] = uuid.NewString()
	}
	return out
}

// writeJSONL writes every document from cur to w as one JSON object per line.
func writeJSONL(ctx context.Context, w io.Writer, cur documentCursor) (int, error) {
	enc := json.NewEncoder(w)
	count := 0
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return count, fmt.Errorf("decode: %w", err)
		}
		if err := enc.Encode(flatten(doc)); err != nil {
			return count, fmt.Errorf("encode: %w", err)
		}
		count++
	}
	return count, cur.Err()
}

// ddbExporter writes each collection into its own table.
type ddbExporter struct {
	client      *dynamodb.Client
	tablePrefix string
}

func (e *ddbExporter) Export(ctx context.Context, collection string, cur documentCursor) (int, error) {
	table := e.tablePrefix + collection
	if err := ddbpkg.EnsureTable(ctx, e.client, table, idAttribute); err != nil {
		return 0, err
	}

	count := 0
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return count, fmt.Errorf("decode: %w", err)
		}
		item, err := attributevalue.MarshalMap(flatten(doc))
		if err != nil {
			return count, fmt.Errorf("marshal item: %w", err)
		}
		if _, err := e.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &table, Item: item}); err != nil {
			return count, fmt.Errorf("put item into %s: %w", table, err)
		}
		count++
	}
	return count, cur.Err()
}

// s3Exporter streams each collection to <prefix>/<collection>.jsonl.
type s3Exporter struct {
	uploader *awspkg.S3Uploader
	prefix   string
}

func (e *s3Exporter) Export(ctx context.Context, collection string, cur documentCursor) (int, error) {
	pr, pw := io.Pipe()

	written := make(chan int, 1)
	go func() {
		n, err := writeJSONL(ctx, pw, cur)
		pw.CloseWithError(err)
		written <- n
	}()

	if _, err := e.uploader.Upload(ctx, objectKey(e.prefix, collection), "application/x-ndjson", pr); err != nil {
		_ = pr.CloseWithError(err)
		return <-written, err
	}
	return <-written, nil
}

func objectKey(prefix, collection string) string {
	if prefix == "" {
		return collection + ".jsonl"
	}
	return fmt.Sprintf("%s/%s.jsonl", prefix, collection)
}
