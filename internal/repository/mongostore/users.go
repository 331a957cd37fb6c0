package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/models"
	"github.com/nkiryanov/authsession/internal/repository"
)

const (
	defaultDatabase = "authsession"
	usersCollection = "users"
)

// Tell mongo dsn from postgres one
func IsMongoURI(uri string) bool {
	return strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://")
}

// Connect to mongo and check it answers
// Database is taken from uri path, "authsession" if not set
func Connect(ctx context.Context, uri string) (*mongo.Database, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid mongo uri. Err: %w", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cant initialize mongo client. Err: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo does not answer. Err: %w", err)
	}

	name := cs.Database
	if name == "" {
		name = defaultDatabase
	}

	return client.Database(name), nil
}

type userDocument struct {
	ID             string    `bson:"_id"`
	CreatedAt      time.Time `bson:"created_at"`
	Email          string    `bson:"email"`
	Username       string    `bson:"username"`
	HashedPassword string    `bson:"password_hash"`
}

func (d userDocument) toModel() (models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("corrupted user id %q. Err: %w", d.ID, err)
	}

	return models.User{
		ID:             id,
		CreatedAt:      d.CreatedAt,
		Email:          d.Email,
		Username:       d.Username,
		HashedPassword: d.HashedPassword,
	}, nil
}

type UserRepo struct {
	coll *mongo.Collection
}

var _ repository.UserRepo = (*UserRepo)(nil)

// Create repository and ensure unique email index
func NewUserRepo(ctx context.Context, db *mongo.Database) (*UserRepo, error) {
	coll := db.Collection(usersCollection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_uniq"),
	})
	if err != nil {
		return nil, fmt.Errorf("cant create users index. Err: %w", err)
	}

	return &UserRepo{coll: coll}, nil
}

func (r *UserRepo) CreateUser(ctx context.Context, email string, username string, hashedPassword string) (models.User, error) {
	doc := userDocument{
		ID:             uuid.NewString(),
		CreatedAt:      time.Now().UTC().Truncate(time.Millisecond), // bson dates keep milliseconds
		Email:          email,
		Username:       username,
		HashedPassword: hashedPassword,
	}

	_, err := r.coll.InsertOne(ctx, doc)
	switch {
	case mongo.IsDuplicateKeyError(err):
		return models.User{}, apperrors.ErrUserAlreadyExists
	case err != nil:
		return models.User{}, fmt.Errorf("mongo error: %w", err)
	}

	return doc.toModel()
}

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: userID.String()}})
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *UserRepo) UpdateUser(ctx context.Context, userID uuid.UUID, upd models.UserUpdate) (models.User, error) {
	filter := bson.D{{Key: "_id", Value: userID.String()}}

	set := bson.D{}
	if upd.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *upd.Email})
	}
	if upd.Username != nil {
		set = append(set, bson.E{Key: "username", Value: *upd.Username})
	}
	if upd.HashedPassword != nil {
		set = append(set, bson.E{Key: "password_hash", Value: *upd.HashedPassword})
	}
	if len(set) == 0 {
		return r.findOne(ctx, filter)
	}

	var doc userDocument
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	err := r.coll.FindOneAndUpdate(ctx, filter, bson.D{{Key: "$set", Value: set}}, opts).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.User{}, apperrors.ErrUserNotFound
	case mongo.IsDuplicateKeyError(err):
		return models.User{}, apperrors.ErrUserAlreadyExists
	case err != nil:
		return models.User{}, fmt.Errorf("mongo error: %w", err)
	}

	return doc.toModel()
}

func (r *UserRepo) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: userID.String()}})
	switch {
	case err != nil:
		return fmt.Errorf("mongo error: %w", err)
	case res.DeletedCount == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

func (r *UserRepo) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, readpref.Primary())
}

// Disconnect the underlying client
func (r *UserRepo) Close(ctx context.Context) error {
	return r.coll.Database().Client().Disconnect(ctx)
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.D) (models.User, error) {
	var doc userDocument

	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.User{}, apperrors.ErrUserNotFound
	case err != nil:
		return models.User{}, fmt.Errorf("mongo error: %w", err)
	}

	return doc.toModel()
}
