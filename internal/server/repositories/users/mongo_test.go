package users

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// TestMongoRepository runs against a live server given by MONGO_TEST_URI,
// e.g. mongodb://localhost:27017. Each subtest gets a throwaway database.
func TestMongoRepository(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	})

	testRepository(t, func(t *testing.T) Repository {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		db := client.Database("gophauth_test_" + uuid.NewString()[:8])
		t.Cleanup(func() { _ = db.Drop(context.Background()) })

		r := NewMongoRepository(db)
		require.NoError(t, r.EnsureIndexes(ctx))
		return r
	})
}

func TestUserDocument_RoundTrip(t *testing.T) {
	tok := "tok"
	exp := time.Date(2024, 1, 1, 1, 0, 0, 0, time.FixedZone("X", 3600))

	doc := toDocument(&models.User{ID: "u-1", ResetPasswordToken: &tok, ResetPasswordExpires: &exp})
	require.NotNil(t, doc.LoginHistory, "history must be stored as an empty array")

	back := doc.toModel()
	require.Equal(t, "u-1", back.ID)
	require.Equal(t, time.UTC, back.ResetPasswordExpires.Location())
	require.True(t, back.ResetPasswordExpires.Equal(exp))
}
