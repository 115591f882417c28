package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/taskflow/svc/project"
	"github.com/dmitrymomot/taskflow/svc/team"
)

// Teams implements team.Store.
type Teams struct {
	coll *mongo.Collection
}

func NewTeams(db *mongo.Database) *Teams {
	return &Teams{coll: db.Collection(teamsCollection)}
}

func normalizeTeam(t *team.Team) team.Team {
	doc := *t
	doc.Tools = orEmpty(doc.Tools)
	doc.Members = orEmpty(doc.Members)
	doc.Projects = orEmpty(doc.Projects)
	return doc
}

func (s *Teams) Create(ctx context.Context, t *team.Team) error {
	_, err := s.coll.InsertOne(ctx, normalizeTeam(t))
	return err
}

func (s *Teams) Get(ctx context.Context, id string) (*team.Team, error) {
	var t team.Team
	if err := s.coll.FindOne(ctx, byID(id)).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, team.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *Teams) Replace(ctx context.Context, t *team.Team) error {
	res, err := s.coll.ReplaceOne(ctx, byID(t.ID), normalizeTeam(t))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return team.ErrNotFound
	}
	return nil
}

func (s *Teams) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, byID(id))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return team.ErrNotFound
	}
	return nil
}

func (s *Teams) AddMember(ctx context.Context, id string, m project.Member) error {
	return addMember(ctx, s.coll, id, m, team.ErrNotFound, team.ErrAlreadyMember)
}

func (s *Teams) RemoveMembers(ctx context.Context, id string, userIDs []string) error {
	return removeMembers(ctx, s.coll, id, userIDs, team.ErrNotFound)
}

func (s *Teams) AddProject(ctx context.Context, id, projectID string) error {
	update := bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "projects", Value: projectID}}},
		{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}},
	}
	return updateOne(ctx, s.coll, id, update, team.ErrNotFound)
}

func (s *Teams) ListByMember(ctx context.Context, userID string) ([]team.Team, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	return findAll[team.Team](ctx, s.coll, bson.D{{Key: "members.user_id", Value: userID}}, opts)
}
