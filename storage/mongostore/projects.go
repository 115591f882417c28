package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/taskflow/svc/project"
)

// Projects implements project.Store. Works live in their own collection and
// the project keeps the ordered list of their ids.
type Projects struct {
	projects *mongo.Collection
	works    *mongo.Collection
}

func NewProjects(db *mongo.Database) *Projects {
	return &Projects{
		projects: db.Collection(projectsCollection),
		works:    db.Collection(worksCollection),
	}
}

func normalizeProject(p *project.Project) project.Project {
	doc := *p
	doc.Tags = orEmpty(doc.Tags)
	doc.Members = orEmpty(doc.Members)
	doc.Works = orEmpty(doc.Works)
	return doc
}

func (s *Projects) Create(ctx context.Context, p *project.Project) error {
	_, err := s.projects.InsertOne(ctx, normalizeProject(p))
	return err
}

func (s *Projects) Get(ctx context.Context, id string) (*project.Project, error) {
	var p project.Project
	if err := s.projects.FindOne(ctx, byID(id)).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, project.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Projects) Replace(ctx context.Context, p *project.Project) error {
	res, err := s.projects.ReplaceOne(ctx, byID(p.ID), normalizeProject(p))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return project.ErrNotFound
	}
	return nil
}

// Delete removes the project and all of its works.
func (s *Projects) Delete(ctx context.Context, id string) error {
	res, err := s.projects.DeleteOne(ctx, byID(id))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return project.ErrNotFound
	}
	_, err = s.works.DeleteMany(ctx, bson.D{{Key: "project_id", Value: id}})
	return err
}

func (s *Projects) AddMember(ctx context.Context, id string, m project.Member) error {
	return addMember(ctx, s.projects, id, m, project.ErrNotFound, project.ErrAlreadyMember)
}

func (s *Projects) RemoveMembers(ctx context.Context, id string, userIDs []string) error {
	return removeMembers(ctx, s.projects, id, userIDs, project.ErrNotFound)
}

func (s *Projects) ListByMember(ctx context.Context, userID string) ([]project.Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	return findAll[project.Project](ctx, s.projects, bson.D{{Key: "members.user_id", Value: userID}}, opts)
}

func (s *Projects) AddWork(ctx context.Context, w *project.Work) error {
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "works", Value: w.ID}}},
		{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}},
	}
	if err := updateOne(ctx, s.projects, w.ProjectID, update, project.ErrNotFound); err != nil {
		return err
	}
	doc := *w
	doc.Tags = orEmpty(doc.Tags)
	doc.Tasks = orEmpty(doc.Tasks)
	if _, err := s.works.InsertOne(ctx, doc); err != nil {
		_, _ = s.projects.UpdateOne(ctx, byID(w.ProjectID), bson.D{{Key: "$pull", Value: bson.D{{Key: "works", Value: w.ID}}}})
		return err
	}
	return nil
}

func (s *Projects) ListWorks(ctx context.Context, projectIDs []string) ([]project.Work, error) {
	if len(projectIDs) == 0 {
		return []project.Work{}, nil
	}
	filter := bson.D{{Key: "project_id", Value: bson.D{{Key: "$in", Value: projectIDs}}}}
	return findAll[project.Work](ctx, s.works, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (s *Projects) ListWorksAssignedTo(ctx context.Context, userID string) ([]project.Work, error) {
	filter := bson.D{{Key: "tasks.members", Value: userID}}
	return findAll[project.Work](ctx, s.works, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

// addMember pushes m unless the user is already listed. A miss is resolved
// to notFound or already by checking whether the document exists.
func addMember(ctx context.Context, coll *mongo.Collection, id string, m project.Member, notFound, already error) error {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "members.user_id", Value: bson.D{{Key: "$ne", Value: m.UserID}}},
	}
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "members", Value: m}}},
		{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}},
	}
	res, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := coll.CountDocuments(ctx, byID(id))
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return already
}

func removeMembers(ctx context.Context, coll *mongo.Collection, id string, userIDs []string, notFound error) error {
	update := bson.D{
		{Key: "$pull", Value: bson.D{{Key: "members", Value: bson.D{
			{Key: "user_id", Value: bson.D{{Key: "$in", Value: userIDs}}},
		}}}},
		{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}},
	}
	return updateOne(ctx, coll, id, update, notFound)
}
