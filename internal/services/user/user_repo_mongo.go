package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usernameIndex    = "username_unique"
	emailIndex       = "email_unique"
	federatedIDIndex = "googleId_unique"
)

// userDocument mirrors the documents in the "users" collection.
type userDocument struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Username  string        `bson:"username"`
	Password  string        `bson:"password,omitempty"`
	GoogleID  string        `bson:"googleId,omitempty"`
	Email     string        `bson:"email"`
	CanScanQr bool          `bson:"canScanQr"`
	IsAdmin   bool          `bson:"isAdmin"`
	CreatedAt time.Time     `bson:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt"`
}

func (d *userDocument) toUser() (*User, error) {
	creds, err := credentialsFrom(d.Password, d.GoogleID)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", d.ID.Hex(), err)
	}
	return &User{
		ID:          d.ID.Hex(),
		Username:    d.Username,
		Email:       d.Email,
		Credentials: creds,
		CanScanQr:   d.CanScanQr,
		IsAdmin:     d.IsAdmin,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func newUserDocument(u *User) userDocument {
	hash, _ := u.PasswordHash()
	googleID, _ := u.FederatedID()
	return userDocument{
		Username:  u.Username,
		Password:  hash,
		GoogleID:  googleID,
		Email:     u.Email,
		CanScanQr: u.CanScanQr,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type MongoUserRepo struct {
	coll *mongo.Collection
}

func NewMongoUserRepo(db *mongo.Database) *MongoUserRepo {
	return &MongoUserRepo{coll: db.Collection("users")}
}

// userIndexes are the unique indexes the repo relies on. The googleId index
// is sparse so password-only users don't collide on a missing field.
func userIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName(usernameIndex)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(emailIndex)},
		{Keys: bson.D{{Key: "googleId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true).SetName(federatedIDIndex)},
	}
}

func (r *MongoUserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, userIndexes())
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func (r *MongoUserRepo) Create(ctx context.Context, u *User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	res, err := r.coll.InsertOne(ctx, newUserDocument(u))
	if err != nil {
		return mongoDuplicate(err, "failed to create user")
	}

	id, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	u.ID = id.Hex()
	return nil
}

func (r *MongoUserRepo) Update(ctx context.Context, u *User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	id, err := bson.ObjectIDFromHex(u.ID)
	if err != nil {
		return ErrUserNotFound
	}

	u.UpdatedAt = time.Now().UTC()
	doc := newUserDocument(u)
	doc.ID = id

	res, err := r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, doc)
	if err != nil {
		return mongoDuplicate(err, "failed to update user")
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *MongoUserRepo) GetByID(ctx context.Context, id string) (*User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *MongoUserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.findOne(ctx, bson.D{{Key: "username", Value: username}})
}

func (r *MongoUserRepo) GetByFederatedID(ctx context.Context, federatedID string) (*User, error) {
	return r.findOne(ctx, bson.D{{Key: "googleId", Value: federatedID}})
}

func (r *MongoUserRepo) List(ctx context.Context) ([]*User, error) {
	cursor, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*User, 0, len(docs))
	for i := range docs {
		u, err := docs[i].toUser()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *MongoUserRepo) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *MongoUserRepo) findOne(ctx context.Context, filter bson.D) (*User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return doc.toUser()
}

// mongoDuplicate maps a duplicate-key error to the violated index.
func mongoDuplicate(err error, msg string) error {
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return duplicateFor(err.Error(), err)
}

// duplicateFor picks the ErrDuplicate* error whose index or constraint name
// appears in detail.
func duplicateFor(detail string, err error) error {
	switch {
	case strings.Contains(detail, usernameIndex), strings.Contains(detail, "users_username_key"):
		return ErrDuplicateUsername
	case strings.Contains(detail, emailIndex), strings.Contains(detail, "users_email_key"):
		return ErrDuplicateEmail
	case strings.Contains(detail, federatedIDIndex), strings.Contains(detail, "users_google_id_key"):
		return ErrDuplicateFederatedID
	default:
		return fmt.Errorf("duplicate key: %w", err)
	}
}
