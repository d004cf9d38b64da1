package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "storefront-gateway/common/errors"
	"storefront-gateway/common/logger"
	"storefront-gateway/events"
	"storefront-gateway/models"
	awspkg "storefront-gateway/pkg/aws"
	"storefront-gateway/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Upsert modes accepted by UPSERT_MODE.
const (
	// UpsertModeAtomic issues a single update with upsert enabled.
	UpsertModeAtomic = "atomic"
	// UpsertModeLegacy looks the key up first and then updates or inserts.
	// Two concurrent requests for a new key may both insert.
	UpsertModeLegacy = "legacy"
)

// UpsertResult describes a completed upsert.
type UpsertResult struct {
	Created bool
	Message string
}

// ErrUndecodablePayload marks a payload that is valid JSON but cannot be
// stored for its route, such as an array sent to an object route. Over HTTP
// it still surfaces as a database-operation failure.
var ErrUndecodablePayload = errors.New("undecodable payload")

// ListingCache caches the serialized product listing. GetListing returns the
// cache version it read; SetListingAsync stores under that version.
type ListingCache interface {
	GetListing(ctx context.Context) ([]byte, int64, bool)
	SetListingAsync(version int64, body []byte)
	Invalidate(ctx context.Context) error
}

// DocumentService defines the gateway operations shared by the HTTP routes
// and the ingest worker.
type DocumentService interface {
	Upsert(ctx context.Context, binding models.Binding, body []byte) (*UpsertResult, error)
	CreateCart(ctx context.Context, body []byte) (string, error)
	ListProducts(ctx context.Context) ([]byte, error)
}

type documentServiceImpl struct {
	repo      repository.DocumentRepository
	cache     ListingCache
	publisher events.Publisher
	metrics   *awspkg.MetricsClient
	mode      string
	now       func() time.Time
}

// NewDocumentService creates a new DocumentService. cache, publisher and
// metrics may be nil.
func NewDocumentService(
	repo repository.DocumentRepository,
	cache ListingCache,
	publisher events.Publisher,
	metrics *awspkg.MetricsClient,
	mode string,
) DocumentService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if mode != UpsertModeLegacy {
		mode = UpsertModeAtomic
	}
	return &documentServiceImpl{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		mode:      mode,
		now:       time.Now,
	}
}

// Upsert sets the payload on the document whose key field matches the
// payload's, inserting it when there is none. A payload without the key
// field is matched as null.
func (s *documentServiceImpl) Upsert(ctx context.Context, b models.Binding, body []byte) (*UpsertResult, error) {
	doc, err := decodeDocument(body)
	if err != nil {
		logger.Error(ctx, "Undecodable payload", err, zap.String("collection", b.Collection))
		return nil, apperrors.Wrap(apperrors.ErrDatabaseOperation, err)
	}
	key := keyValue(doc, b.KeyField)

	var created bool
	if s.mode == UpsertModeLegacy {
		created, err = s.findThenWrite(ctx, b, key, doc)
	} else {
		created, err = s.repo.UpsertByKey(ctx, b.Collection, b.KeyField, key, doc)
	}
	if err != nil {
		logger.Error(ctx, "Upsert failed", err,
			zap.String("collection", b.Collection),
			zap.String("key_field", b.KeyField),
			zap.Any("key", b.LogKey(key)),
			zap.String("mode", s.mode),
		)
		return nil, apperrors.Wrap(apperrors.ErrDatabaseOperation, err)
	}

	logger.Debug(ctx, "Document upserted",
		zap.String("collection", b.Collection),
		zap.Any("key", b.LogKey(key)),
		zap.Bool("created", created),
	)

	if b.Collection == models.ProductsCollection && s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.Warn(ctx, "Failed to invalidate product cache", zap.Error(err))
		}
	}

	s.publish(ctx, models.NewUpsertEvent(b, key, created, s.now()))
	if created {
		s.recordCount(awspkg.MetricDocumentsCreated, b.Collection)
	} else {
		s.recordCount(awspkg.MetricDocumentsUpdated, b.Collection)
	}

	return &UpsertResult{Created: created, Message: b.Message(created)}, nil
}

func (s *documentServiceImpl) findThenWrite(ctx context.Context, b models.Binding, key interface{}, doc bson.D) (bool, error) {
	_, err := s.repo.FindOneByKey(ctx, b.Collection, b.KeyField, key)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return true, s.repo.Insert(ctx, b.Collection, doc)
	case err != nil:
		return false, err
	default:
		return false, s.repo.UpdateByKey(ctx, b.Collection, b.KeyField, key, doc)
	}
}

// CreateCart stores body as a new cart document stamped with the server time.
func (s *documentServiceImpl) CreateCart(ctx context.Context, body []byte) (string, error) {
	items, err := decodeValue(body)
	if err != nil {
		logger.Error(ctx, "Undecodable cart payload", err)
		return "", apperrors.Wrap(apperrors.ErrDatabaseOperation, err)
	}

	now := s.now()
	record := models.CartRecord{Items: items, CreatedAt: now}
	if err := s.repo.Insert(ctx, models.ShoppingCartCollection, record); err != nil {
		logger.Error(ctx, "Cart insert failed", err)
		return "", apperrors.Wrap(apperrors.ErrDatabaseOperation, err)
	}

	s.publish(ctx, models.NewCartEvent(now))
	s.recordCount(awspkg.MetricCartsCreated, models.ShoppingCartCollection)
	return models.CartCreatedMessage, nil
}

// ListProducts returns every product as a JSON array. An empty collection
// is reported as ErrNoProducts.
func (s *documentServiceImpl) ListProducts(ctx context.Context) ([]byte, error) {
	var version int64
	if s.cache != nil {
		body, v, ok := s.cache.GetListing(ctx)
		if ok {
			s.recordCount(awspkg.MetricCacheHits, models.ProductsCollection)
			return body, nil
		}
		version = v
		s.recordCount(awspkg.MetricCacheMisses, models.ProductsCollection)
	}

	start := time.Now()
	docs, err := s.repo.FindAll(ctx, models.ProductsCollection)
	s.recordLatency(time.Since(start), models.ProductsCollection)
	if err != nil {
		logger.Error(ctx, "Product listing failed", err)
		return nil, apperrors.Wrap(apperrors.ErrDatabaseOperation, err)
	}
	if len(docs) == 0 {
		return nil, apperrors.ErrNoProducts
	}

	body, err := json.Marshal(docs)
	if err != nil {
		logger.Error(ctx, "Product listing could not be serialized", err)
		return nil, apperrors.Wrap(apperrors.ErrDatabaseOperation, err)
	}

	if s.cache != nil {
		s.cache.SetListingAsync(version, body)
	}
	return body, nil
}

func (s *documentServiceImpl) publish(ctx context.Context, event models.DocumentEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Warn(ctx, "Failed to publish document event", zap.Error(err), zap.String("event", event.Event))
	}
}

func (s *documentServiceImpl) recordCount(metric, collection string) {
	if !s.metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.RecordCount(ctx, metric, map[string]string{"Collection": collection})
	}()
}

func (s *documentServiceImpl) recordLatency(d time.Duration, collection string) {
	if !s.metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.RecordLatency(ctx, awspkg.MetricDatabaseLatency, d, map[string]string{"Collection": collection})
	}()
}

// decodeDocument parses a JSON object, keeping field order and reading
// integral numbers as integers. Duplicate keys collapse onto the first
// occurrence with the last value.
func decodeDocument(body []byte) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(body, false, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodablePayload, err)
	}
	return dedupeKeys(doc).(bson.D), nil
}

func dedupeKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.D:
		out := make(bson.D, 0, len(t))
		seen := make(map[string]int, len(t))
		for _, e := range t {
			val := dedupeKeys(e.Value)
			if i, ok := seen[e.Key]; ok {
				out[i].Value = val
				continue
			}
			seen[e.Key] = len(out)
			out = append(out, bson.E{Key: e.Key, Value: val})
		}
		return out
	case bson.A:
		for i := range t {
			t[i] = dedupeKeys(t[i])
		}
		return t
	default:
		return v
	}
}

// decodeValue parses any JSON object or array.
func decodeValue(body []byte) (interface{}, error) {
	wrapped := make([]byte, 0, len(body)+10)
	wrapped = append(wrapped, `{"v":`...)
	wrapped = append(wrapped, body...)
	wrapped = append(wrapped, '}')

	doc, err := decodeDocument(wrapped)
	if err != nil {
		return nil, err
	}
	if len(doc) != 1 {
		return nil, fmt.Errorf("%w: unexpected shape", ErrUndecodablePayload)
	}
	return doc[0].Value, nil
}

func keyValue(doc bson.D, field string) interface{} {
	for _, e := range doc {
		if e.Key == field {
			return e.Value
		}
	}
	return nil
}
