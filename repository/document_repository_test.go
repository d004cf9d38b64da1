package repository_test

import (
	"context"
	"testing"

	"storefront-gateway/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMockT(t *testing.T) *mtest.T {
	t.Helper()
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func commandName(mt *mtest.T) string {
	evt := mt.GetStartedEvent()
	if evt == nil {
		return ""
	}
	return evt.CommandName
}

func TestFindOneByKey(t *testing.T) {
	mt := newMockT(t)

	mt.Run("found", func(mt *mtest.T) {
		repo := repository.NewMongoDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "team4DB.products", mtest.FirstBatch,
			bson.D{{Key: "productID", Value: "p-1"}, {Key: "name", Value: "Lamp"}}))

		doc, err := repo.FindOneByKey(context.Background(), "products", "productID", "p-1")
		require.NoError(mt, err)
		assert.Equal(mt, "Lamp", doc["name"])

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "find", evt.CommandName)
		filter := evt.Command.Lookup("filter").Document()
		assert.Equal(mt, "p-1", filter.Lookup("productID").StringValue())
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := repository.NewMongoDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "team4DB.products", mtest.FirstBatch))

		doc, err := repo.FindOneByKey(context.Background(), "products", "productID", "p-404")
		assert.ErrorIs(mt, err, repository.ErrNotFound)
		assert.Nil(mt, doc)
	})

	mt.Run("missing key is matched as null", func(mt *mtest.T) {
		repo := repository.NewMongoDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "team4DB.products", mtest.FirstBatch))

		_, err := repo.FindOneByKey(context.Background(), "products", "productID", nil)
		assert.ErrorIs(mt, err, repository.ErrNotFound)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		filter := evt.Command.Lookup("filter").Document()
		assert.Equal(mt, bson.TypeNull, filter.Lookup("productID").Type)
	})

	mt.Run("server error", func(mt *mtest.T) {
		repo := repository.NewMongoDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad filter",
		}))

		_, err := repo.FindOneByKey(context.Background(), "products", "productID", "p-1")
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, repository.ErrNotFound)
	})
}

func TestUpsertByKey(t *testing.T) {
	mt := newMockT(t)
	doc := bson.D{{Key: "productID", Value: "p-1"}, {Key: "price", Value: 10}}

	mt.Run("insert reports created", func(mt *mtest.T) {
		repo := repository.NewMongoDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{
				bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: primitive.NewObjectID()}},
			}},
		))

		created, err := repo.UpsertByKey(context.Background(), "products", "productID", "p-1", doc)
		require.NoError(mt, err)
		assert.True(mt, created)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "update", evt.CommandName)
		update := evt.Command.Lookup("updates").Array().Index(0).Value().Document()
		assert.True(mt, update.Lookup("upsert").Boolean())
		set := update.Lookup("u").Document().Lookup("$set").Document()
		assert.Equal(mt, "p-1", set.Lookup("productID").StringValue())
	})

	mt.Run("match reports updated", func(mt *mtest.T) {
		repo := repository.NewMongoDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		created, err := repo.UpsertByKey(context.Background(), "products", "productID", "p-1", doc)
		require.NoError(mt, err)
		assert.False(mt, created)
	})

	mt.Run("write error", func(mt *mtest.T) {
		repo := repository.NewMongoDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    66,
			Message: "Performing an update on the path '_id' would modify the immutable field '_id'",
		}))

		_, err := repo.UpsertByKey(context.Background(), "products", "productID", "p-1", doc)
		assert.Error(mt, err)
	})
}

func TestUpdateByKey(t *testing.T) {
	mt := newMockT(t)

	mt.Run("sets fields without upsert", func(mt *mtest.T) {
		repo := repository.NewMongoDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := repo.UpdateByKey(context.Background(), "billing", "Name", "Ada", bson.D{{Key: "Name", Value: "Ada"}})
		require.NoError(mt, err)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		update := evt.Command.Lookup("updates").Array().Index(0).Value().Document()
		upsert, ok := update.Lookup("upsert").BooleanOK()
		assert.False(mt, ok && upsert)
	})
}

func TestInsert(t *testing.T) {
	mt := newMockT(t)

	mt.Run("success", func(mt *mtest.T) {
		repo := repository.NewMongoDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		err := repo.Insert(context.Background(), "shoppingCart", bson.D{{Key: "items", Value: bson.A{}}})
		require.NoError(mt, err)
		assert.Equal(mt, "insert", commandName(mt))
	})

	mt.Run("duplicate key", func(mt *mtest.T) {
		repo := repository.NewMongoDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.Insert(context.Background(), "shoppingCart", bson.D{{Key: "items", Value: bson.A{}}})
		assert.Error(mt, err)
	})
}

func TestFindAll(t *testing.T) {
	mt := newMockT(t)

	mt.Run("returns every document", func(mt *mtest.T) {
		repo := repository.NewMongoDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "team4DB.products", mtest.FirstBatch,
			bson.D{{Key: "productID", Value: "a"}},
			bson.D{{Key: "productID", Value: "b"}},
		))

		docs, err := repo.FindAll(context.Background(), "products")
		require.NoError(mt, err)
		require.Len(mt, docs, 2)
		assert.Equal(mt, "a", docs[0]["productID"])
		assert.Equal(mt, "b", docs[1]["productID"])
	})

	mt.Run("empty collection", func(mt *mtest.T) {
		repo := repository.NewMongoDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "team4DB.products", mtest.FirstBatch))

		docs, err := repo.FindAll(context.Background(), "products")
		require.NoError(mt, err)
		assert.Empty(mt, docs)
		assert.NotNil(mt, docs)
	})
}

func TestNilDatabase(t *testing.T) {
	repo := repository.NewMongoDocumentRepository(nil)
	ctx := context.Background()

	_, err := repo.FindOneByKey(ctx, "products", "productID", "p-1")
	assert.ErrorIs(t, err, repository.ErrNotConnected)

	_, err = repo.UpsertByKey(ctx, "products", "productID", "p-1", bson.D{})
	assert.ErrorIs(t, err, repository.ErrNotConnected)

	assert.ErrorIs(t, repo.UpdateByKey(ctx, "products", "productID", "p-1", bson.D{}), repository.ErrNotConnected)
	assert.ErrorIs(t, repo.Insert(ctx, "shoppingCart", bson.D{}), repository.ErrNotConnected)

	_, err = repo.FindAll(ctx, "products")
	assert.ErrorIs(t, err, repository.ErrNotConnected)
}
