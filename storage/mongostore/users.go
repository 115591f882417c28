package mongostore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/taskflow/svc/user"
)

// Users implements user.Store.
type Users struct {
	coll *mongo.Collection
}

func NewUsers(db *mongo.Database) *Users {
	return &Users{coll: db.Collection(usersCollection)}
}

func (s *Users) Create(ctx context.Context, u *user.User) error {
	doc := *u
	doc.Projects = orEmpty(doc.Projects)
	doc.Teams = orEmpty(doc.Teams)
	doc.Notifications = orEmpty(doc.Notifications)
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *Users) findOne(ctx context.Context, filter bson.D) (*user.User, error) {
	var u user.User
	if err := s.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Users) GetByID(ctx context.Context, id string) (*user.User, error) {
	return s.findOne(ctx, byID(id))
}

func (s *Users) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *Users) GetByIDs(ctx context.Context, ids []string) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	return findAll[user.User](ctx, s.coll, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
}

func (s *Users) update(ctx context.Context, id string, op string, fields bson.D) error {
	update := bson.D{
		{Key: op, Value: fields},
		{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}},
	}
	return updateOne(ctx, s.coll, id, update, user.ErrNotFound)
}

func (s *Users) UpdatePassword(ctx context.Context, id, hash string) error {
	return s.update(ctx, id, "$set", bson.D{{Key: "password_hash", Value: hash}})
}

func (s *Users) UpdateAvatar(ctx context.Context, id, url string) error {
	return s.update(ctx, id, "$set", bson.D{{Key: "img", Value: url}})
}

func (s *Users) AddProject(ctx context.Context, id, projectID string) error {
	return s.update(ctx, id, "$addToSet", bson.D{{Key: "projects", Value: projectID}})
}

func (s *Users) RemoveProject(ctx context.Context, id, projectID string) error {
	return s.update(ctx, id, "$pull", bson.D{{Key: "projects", Value: projectID}})
}

func (s *Users) AddTeam(ctx context.Context, id, teamID string) error {
	return s.update(ctx, id, "$addToSet", bson.D{{Key: "teams", Value: teamID}})
}

func (s *Users) RemoveTeam(ctx context.Context, id, teamID string) error {
	return s.update(ctx, id, "$pull", bson.D{{Key: "teams", Value: teamID}})
}

func (s *Users) PushNotification(ctx context.Context, id string, n user.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return s.update(ctx, id, "$push", bson.D{{Key: "notifications", Value: n}})
}

// Search matches name or email case-insensitively, ordered by name.
func (s *Users) Search(ctx context.Context, query string, limit int) ([]user.User, error) {
	re := bson.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "name", Value: re}},
		bson.D{{Key: "email", Value: re}},
	}}}
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.D{{Key: "notifications", Value: 0}, {Key: "password_hash", Value: 0}})
	return findAll[user.User](ctx, s.coll, filter, opts)
}
