package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) string {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)
	return uri
}

func TestMongoRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	uri := setupTestDB(t)
	ctx := context.Background()

	var dbSeq atomic.Int32
	runRepositoryContract(t, func(t *testing.T) RecordRepository {
		// every subtest gets its own database on the shared container
		db, err := ConnectMongoDB(ctx, MongoOptions{
			URI:      uri,
			Database: fmt.Sprintf("testdb_%d", dbSeq.Add(1)),
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Client().Disconnect(ctx) })

		repo := NewMongoRepository(db)
		require.NoError(t, repo.CreateIndexes(ctx, "products", "ownerId"))
		return repo
	})
}
