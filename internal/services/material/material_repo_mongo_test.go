package material

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func TestMaterialDocument_ToMaterial(t *testing.T) {
	id := bson.NewObjectID()
	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: id},
		{Key: "qrCodeId", Value: "FAB-001"},
		{Key: "materialName", Value: "Organic Cotton"},
		{Key: "color", Value: "white"},
		{Key: "imageUrl", Value: "https://cdn.example/fab-001.png"},
	})
	require.NoError(t, err)

	var doc materialDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	got := doc.toMaterial()

	assert.Equal(t, &Material{
		ID:           id.Hex(),
		QRCodeID:     "FAB-001",
		MaterialName: "Organic Cotton",
		Color:        "white",
		Features:     []string{},
		ImageURL:     "https://cdn.example/fab-001.png",
	}, got)
}

func TestMaterialIndex(t *testing.T) {
	model := materialIndex()

	var opts options.IndexOptions
	for _, set := range model.Options.List() {
		require.NoError(t, set(&opts))
	}

	assert.Equal(t, bson.D{{Key: "qrCodeId", Value: 1}}, model.Keys)
	require.NotNil(t, opts.Unique)
	assert.True(t, *opts.Unique)
	require.NotNil(t, opts.Name)
	assert.Equal(t, "qrCodeId_unique", *opts.Name)
}

func TestMongoMaterialRepo_UpsertValidatesFirst(t *testing.T) {
	repo := &MongoMaterialRepo{}

	err := repo.Upsert(context.Background(), &Material{MaterialName: "Linen"})
	assert.ErrorIs(t, err, ErrMissingQRCodeID)
}
