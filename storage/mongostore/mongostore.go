// Package mongostore persists users, projects, teams and works in MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection    = "users"
	projectsCollection = "projects"
	teamsCollection    = "teams"
	worksCollection    = "works"
)

var ErrEnsureIndexes = errors.New("failed to ensure mongo indexes")

// EnsureIndexes creates the indexes the stores rely on. The unique email
// index backs user.ErrEmailTaken.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "name", Value: 1}}},
		},
		projectsCollection: {
			{Keys: bson.D{{Key: "members.user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
		},
		teamsCollection: {
			{Keys: bson.D{{Key: "members.user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
		},
		worksCollection: {
			{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "tasks.members", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Join(ErrEnsureIndexes, fmt.Errorf("%s: %w", name, err))
		}
	}
	return nil
}

func byID(id string) bson.D { return bson.D{{Key: "_id", Value: id}} }

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// updateOne applies update to the document with id and maps a miss to notFound.
func updateOne(ctx context.Context, coll *mongo.Collection, id string, update bson.D, notFound error) error {
	res, err := coll.UpdateOne(ctx, byID(id), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return notFound
	}
	return nil
}

// findAll runs a query and decodes every document. It never returns nil.
func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...options.Lister[options.FindOptions]) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
