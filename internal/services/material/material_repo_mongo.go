package material

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type materialDocument struct {
	ID               bson.ObjectID `bson:"_id,omitempty"`
	QRCodeID         string        `bson:"qrCodeId"`
	MaterialName     string        `bson:"materialName"`
	MaterialType     string        `bson:"materialType,omitempty"`
	Color            string        `bson:"color,omitempty"`
	Manufacturer     string        `bson:"manufacturer,omitempty"`
	ProductionDate   string        `bson:"productionDate,omitempty"`
	Features         []string      `bson:"features"`
	CareInstructions string        `bson:"careInstructions,omitempty"`
	ImageURL         string        `bson:"imageUrl,omitempty"`
}

func (d *materialDocument) toMaterial() *Material {
	features := d.Features
	if features == nil {
		features = []string{}
	}
	return &Material{
		ID:               d.ID.Hex(),
		QRCodeID:         d.QRCodeID,
		MaterialName:     d.MaterialName,
		MaterialType:     d.MaterialType,
		Color:            d.Color,
		Manufacturer:     d.Manufacturer,
		ProductionDate:   d.ProductionDate,
		Features:         features,
		CareInstructions: d.CareInstructions,
		ImageURL:         d.ImageURL,
	}
}

type MongoMaterialRepo struct {
	coll *mongo.Collection
}

func NewMongoMaterialRepo(db *mongo.Database) *MongoMaterialRepo {
	return &MongoMaterialRepo{coll: db.Collection("materials")}
}

func materialIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: "qrCodeId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("qrCodeId_unique"),
	}
}

func (r *MongoMaterialRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, materialIndex())
	if err != nil {
		return fmt.Errorf("failed to create material indexes: %w", err)
	}
	return nil
}

func (r *MongoMaterialRepo) GetByQRCodeID(ctx context.Context, qrCodeID string) (*Material, error) {
	var doc materialDocument
	if err := r.coll.FindOne(ctx, bson.D{{Key: "qrCodeId", Value: qrCodeID}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMaterialNotFound
		}
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	return doc.toMaterial(), nil
}

// Upsert replaces the material with the same qrCodeId, inserting it if absent.
func (r *MongoMaterialRepo) Upsert(ctx context.Context, m *Material) error {
	if err := m.Validate(); err != nil {
		return err
	}

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "materialName", Value: m.MaterialName},
		{Key: "materialType", Value: m.MaterialType},
		{Key: "color", Value: m.Color},
		{Key: "manufacturer", Value: m.Manufacturer},
		{Key: "productionDate", Value: m.ProductionDate},
		{Key: "features", Value: m.Features},
		{Key: "careInstructions", Value: m.CareInstructions},
		{Key: "imageUrl", Value: m.ImageURL},
	}}}

	var doc materialDocument
	err := r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "qrCodeId", Value: m.QRCodeID}},
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return fmt.Errorf("failed to upsert material: %w", err)
	}

	m.ID = doc.ID.Hex()
	return nil
}

func (r *MongoMaterialRepo) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}
