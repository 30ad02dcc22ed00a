package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionName is the MongoDB collection holding user documents.
const CollectionName = "users"

// userDocument is the stored shape of a user. Absent reset fields are
// omitted rather than stored as null.
type userDocument struct {
	ID                   string                     `bson:"_id"`
	Name                 string                     `bson:"name"`
	Email                string                     `bson:"email"`
	Salt                 string                     `bson:"salt"`
	Hash                 string                     `bson:"hash"`
	LoginHistory         []models.LoginHistoryEntry `bson:"loginHistory"`
	ResetPasswordToken   *string                    `bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpires *time.Time                 `bson:"resetPasswordExpires,omitempty"`
	CreatedAt            time.Time                  `bson:"createdAt"`
	UpdatedAt            time.Time                  `bson:"updatedAt"`
}

func toDocument(u *models.User) *userDocument {
	history := u.LoginHistory
	if history == nil {
		history = []models.LoginHistoryEntry{}
	}
	return &userDocument{
		ID:                   u.ID,
		Name:                 u.Name,
		Email:                u.Email,
		Salt:                 u.Salt,
		Hash:                 u.Hash,
		LoginHistory:         history,
		ResetPasswordToken:   u.ResetPasswordToken,
		ResetPasswordExpires: u.ResetPasswordExpires,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}

func (d *userDocument) toModel() *models.User {
	u := &models.User{
		ID:                 d.ID,
		Name:               d.Name,
		Email:              d.Email,
		Salt:               d.Salt,
		Hash:               d.Hash,
		LoginHistory:       d.LoginHistory,
		ResetPasswordToken: d.ResetPasswordToken,
		CreatedAt:          d.CreatedAt.UTC(),
		UpdatedAt:          d.UpdatedAt.UTC(),
	}
	if d.ResetPasswordExpires != nil {
		e := d.ResetPasswordExpires.UTC()
		u.ResetPasswordExpires = &e
	}
	return u
}

// MongoRepository stores one document per user. Email uniqueness is enforced
// by the index created in EnsureIndexes.
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName), now: time.Now}
}

// EnsureIndexes creates the unique email index and the reset token index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_email_key"),
		},
		{
			Keys:    bson.D{{Key: "resetPasswordToken", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("users_reset_password_token_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo create indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *MongoRepository) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.findOne(ctx, bson.D{{Key: "resetPasswordToken", Value: token}})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.D) (*models.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return doc.toModel(), nil
}

func (r *MongoRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	now := r.now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, toDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return user, nil
}

func (r *MongoRepository) Save(ctx context.Context, user *models.User) (*models.User, error) {
	prev := user.UpdatedAt
	user.UpdatedAt = r.now().UTC()

	res, err := r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: user.ID}}, toDocument(user))
	if err != nil {
		user.UpdatedAt = prev
		if mongo.IsDuplicateKeyError(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	if res.MatchedCount == 0 {
		user.UpdatedAt = prev
		return nil, common.ErrorNotFound
	}
	return user, nil
}

// AppendLoginHistory pushes entry and keeps the newest entries with $slice.
func (r *MongoRepository) AppendLoginHistory(ctx context.Context, id string, entry models.LoginHistoryEntry) error {
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "loginHistory", Value: bson.D{
			{Key: "$each", Value: bson.A{entry}},
			{Key: "$slice", Value: -models.MaxLoginHistory},
		}}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: r.now().UTC()}}},
	}
	return r.updateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
}

func (r *MongoRepository) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "resetPasswordToken", Value: token},
		{Key: "resetPasswordExpires", Value: expires.UTC()},
		{Key: "updatedAt", Value: r.now().UTC()},
	}}}
	return r.updateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
}

func (r *MongoRepository) ConsumeResetToken(ctx context.Context, id, token, salt, hash string) error {
	filter := bson.D{{Key: "_id", Value: id}, {Key: "resetPasswordToken", Value: token}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "salt", Value: salt},
			{Key: "hash", Value: hash},
			{Key: "updatedAt", Value: r.now().UTC()},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: "resetPasswordToken", Value: ""},
			{Key: "resetPasswordExpires", Value: ""},
		}},
	}
	return r.updateOne(ctx, filter, update)
}

func (r *MongoRepository) updateOne(ctx context.Context, filter, update bson.D) error {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}
