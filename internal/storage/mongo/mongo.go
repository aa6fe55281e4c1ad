// Package mongo provides the MongoDB-backed implementation of the
// storage.Storage interface, the default backend of the service.
//
// The collection is created with a $jsonSchema validator that mirrors the
// field constraints, so MongoDB itself rejects invalid documents on every
// insert and update.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aanand-mishra/student-crud-api/internal/config"
	"github.com/aanand-mishra/student-crud-api/internal/storage"
	"github.com/aanand-mishra/student-crud-api/internal/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Server error codes we react to.
const (
	codeNamespaceExists          = 48
	codeDocumentValidationFailed = 121
)

// newestFirst is the listing order: creation time, then id, descending.
var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

// Mongo is the concrete implementation of storage.Storage.
// *mongo.Client is safe for concurrent use and pools its connections.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// New connects to cfg.Storage.MongoURI, checks the connection with a ping
// and makes sure the students collection carries the schema validator and
// the listing index. The caller owns the returned handle and must Close it.
func New(ctx context.Context, cfg *config.Config) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Storage.ConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.Storage.MongoURI).
		SetConnectTimeout(cfg.Storage.ConnectTimeout).
		SetServerSelectionTimeout(cfg.Storage.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo.New: connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.New: ping: %w", err)
	}

	db := client.Database(cfg.Storage.Database)
	if err := ensureCollection(ctx, db, cfg.Storage.Collection); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.New: %w", err)
	}

	coll := db.Collection(cfg.Storage.Collection)
	if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: newestFirst}); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.New: create index: %w", err)
	}

	return &Mongo{client: client, collection: coll}, nil
}

// studentSchema is the $jsonSchema every stored student must satisfy.
func studentSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "age", "department", "createdAt", "updatedAt"},
			"properties": bson.M{
				"name": bson.M{
					"bsonType":    "string",
					"minLength":   1,
					"maxLength":   100,
					"description": "Name cannot exceed 100 characters",
				},
				"age": bson.M{
					"bsonType":    bson.A{"int", "long"},
					"minimum":     1,
					"maximum":     120,
					"description": "Age must be between 1 and 120",
				},
				"department": bson.M{
					"bsonType":    "string",
					"minLength":   1,
					"maxLength":   50,
					"description": "Department cannot exceed 50 characters",
				},
				"createdAt": bson.M{"bsonType": "date"},
				"updatedAt": bson.M{"bsonType": "date"},
			},
		},
	}
}

// ensureCollection creates the collection with the validator, or refreshes
// the validator with collMod when the collection already exists.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) error {
	err := db.CreateCollection(ctx, name, options.CreateCollection().SetValidator(studentSchema()))
	if err == nil {
		return nil
	}

	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Code != codeNamespaceExists {
		return fmt.Errorf("create collection: %w", err)
	}

	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: studentSchema()},
	}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("update collection validator: %w", err)
	}

	return nil
}

// CreateStudent inserts a new document with a fresh ObjectID.
func (m *Mongo) CreateStudent(ctx context.Context, fields types.StudentFields) (types.Student, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	student := types.Student{
		ID:         primitive.NewObjectID(),
		Name:       fields.Name,
		Age:        fields.Age,
		Department: fields.Department,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := m.collection.InsertOne(ctx, student); err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: %w", mapError(err))
	}

	return student, nil
}

// GetStudents returns one page of students, newest first.
func (m *Mongo) GetStudents(ctx context.Context, opts storage.ListOptions) ([]types.Student, error) {
	findOpts := options.Find().
		SetSort(newestFirst).
		SetSkip(int64(opts.Skip)).
		SetLimit(int64(opts.Limit))

	cursor, err := m.collection.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("GetStudents: find: %w", err)
	}

	students := make([]types.Student, 0)
	if err := cursor.All(ctx, &students); err != nil {
		return nil, fmt.Errorf("GetStudents: decode: %w", err)
	}

	return students, nil
}

// CountStudents returns the number of documents in the collection.
func (m *Mongo) CountStudents(ctx context.Context) (int64, error) {
	n, err := m.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("CountStudents: %w", err)
	}
	return n, nil
}

// GetStudentByID fetches one document by _id.
func (m *Mongo) GetStudentByID(ctx context.Context, id primitive.ObjectID) (types.Student, error) {
	var student types.Student

	err := m.collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&student)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Student{}, storage.ErrNotFound
		}
		return types.Student{}, fmt.Errorf("GetStudentByID: %w", err)
	}

	return student, nil
}

// UpdateStudentByID sets the provided fields and updatedAt, and returns
// the document as it is after the update.
func (m *Mongo) UpdateStudentByID(ctx context.Context, id primitive.ObjectID, patch types.StudentPatch) (types.Student, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var student types.Student
	err := m.collection.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		updatePipeline(patch, time.Now().UTC().Truncate(time.Millisecond)),
		opts,
	).Decode(&student)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Student{}, storage.ErrNotFound
		}
		return types.Student{}, fmt.Errorf("UpdateStudentByID: %w", mapError(err))
	}

	return student, nil
}

// updatePipeline sets updatedAt to max(createdAt, now), matching the sqlite
// backend. Patch values are wrapped in $literal: inside a pipeline a string
// such as "$name" is a field path.
func updatePipeline(patch types.StudentPatch, now time.Time) mongo.Pipeline {
	set := bson.D{}
	if patch.Name != nil {
		set = append(set, bson.E{Key: "name", Value: bson.D{{Key: "$literal", Value: *patch.Name}}})
	}
	if patch.Age != nil {
		set = append(set, bson.E{Key: "age", Value: bson.D{{Key: "$literal", Value: *patch.Age}}})
	}
	if patch.Department != nil {
		set = append(set, bson.E{Key: "department", Value: bson.D{{Key: "$literal", Value: *patch.Department}}})
	}
	set = append(set, bson.E{Key: "updatedAt", Value: bson.D{{Key: "$max", Value: bson.A{"$createdAt", now}}}})

	return mongo.Pipeline{{{Key: "$set", Value: set}}}
}

// DeleteStudentByID removes a document and returns it.
func (m *Mongo) DeleteStudentByID(ctx context.Context, id primitive.ObjectID) (types.Student, error) {
	var student types.Student

	err := m.collection.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&student)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Student{}, storage.ErrNotFound
		}
		return types.Student{}, fmt.Errorf("DeleteStudentByID: %w", err)
	}

	return student, nil
}

// Ping checks the primary is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client and drains its pool.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// mapError turns a schema-validation rejection into storage.ErrConstraint.
func mapError(err error) error {
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == codeDocumentValidationFailed {
				return fmt.Errorf("%w: %s", storage.ErrConstraint, we.Message)
			}
		}
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == codeDocumentValidationFailed {
		return fmt.Errorf("%w: %s", storage.ErrConstraint, cmdErr.Message)
	}

	return err
}
