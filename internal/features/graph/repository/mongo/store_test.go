package mongo

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"friend-connect-backend/internal/features/graph/repository"
	"friend-connect-backend/internal/features/graph/repository/storetest"
	platformmongo "friend-connect-backend/internal/platform/mongo"
)

// Runs the shared store suite when MONGODB_TEST_URI points at a replica set;
// edge changes use transactions, which a standalone server rejects.
func TestGraphStore(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx := context.Background()

	client, err := platformmongo.Open(ctx, uri, "friend_connect_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	storetest.Run(t, func(t *testing.T) repository.GraphStore {
		name := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		db := client.Client.Database(name)
		t.Cleanup(func() { _ = db.Drop(context.Background()) })
		require.NoError(t, EnsureIndexes(ctx, db))
		return NewGraphStore(db)
	})
}
