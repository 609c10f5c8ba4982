// Package mongostore implements project.Store on MongoDB.
package mongostore

import (
	"context"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongoLib "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/library/db/mongo"
	"github.com/Laisky/texpad/library/log"
	"github.com/Laisky/texpad/library/metrics"
)

// Store is a project.Store backed by two collections.
type Store struct {
	db     mongo.DB
	logger logSDK.Logger
	clock  func() time.Time
}

// New ensures indexes and returns the store.
func New(ctx context.Context, db mongo.DB, logger logSDK.Logger, clock func() time.Time) (*Store, error) {
	if db == nil {
		return nil, errors.New("mongo db is required")
	}
	s := newStore(db, logger, clock)
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("mongo store ready")
	return s, nil
}

func newStore(db mongo.DB, logger logSDK.Logger, clock func() time.Time) *Store {
	if logger == nil {
		logger = log.Logger.Named("mongo_store")
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Store{db: db, logger: logger, clock: clock}
}

// EnsureIndexes creates the name uniqueness and ordering indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.files().Indexes().CreateMany(ctx, []mongoLib.IndexModel{
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("project_name_unique"),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("project_created"),
		},
	})
	if err != nil {
		return errors.Wrap(err, "create file indexes")
	}
	return nil
}

func (s *Store) projects() *mongoLib.Collection {
	return s.db.GetCol(colProjects)
}

func (s *Store) files() *mongoLib.Collection {
	return s.db.GetCol(colFiles)
}

func (s *Store) observe(op string, start time.Time) {
	metrics.ObserveStoreOp("mongo", op, time.Since(start))
}

func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func alreadyExists(name string) error {
	return project.Errorf(project.ErrCodeAlreadyExists, "file %q already exists", name)
}

// CreateProject inserts a project and seeds main.tex, removing the project again when seeding fails.
func (s *Store) CreateProject(ctx context.Context, name, description string) (*project.ProjectWithFiles, error) {
	defer s.observe("create_project", time.Now())
	if name == "" {
		return nil, project.NewError(project.ErrCodeValidation, "project name is required")
	}

	now := s.clock()
	pdoc := &projectDoc{ID: newID(), Name: name, Description: description, CreatedAt: now}
	if _, err := s.projects().InsertOne(ctx, pdoc); err != nil {
		return nil, errors.Wrap(err, "insert project")
	}

	fdoc := newFileDoc(newID(), pdoc.ID, project.FileSpec{
		Name:     project.MainFileName,
		FileType: project.FileTypeTex,
		Content:  project.DefaultMainTexContent,
	}, now)
	if _, err := s.files().InsertOne(ctx, fdoc); err != nil {
		if _, rerr := s.projects().DeleteOne(ctx, bson.M{"_id": pdoc.ID}); rerr != nil {
			s.logger.Error("roll back project", zap.String("project", pdoc.ID), zap.Error(rerr))
		}
		return nil, errors.Wrap(err, "seed main file")
	}

	return &project.ProjectWithFiles{
		Project: pdoc.toProject(),
		Files:   []project.File{fdoc.toFile()},
	}, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]project.Project, error) {
	defer s.observe("list_projects", time.Now())

	cur, err := s.projects().Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find projects")
	}

	var docs []projectDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode projects")
	}

	out := make([]project.Project, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toProject())
	}
	return out, nil
}

// GetProjectWithFiles returns a project and its files in creation order.
func (s *Store) GetProjectWithFiles(ctx context.Context, projectID string) (*project.ProjectWithFiles, error) {
	defer s.observe("get_project", time.Now())

	p, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	cur, err := s.files().Find(ctx, bson.M{"project_id": projectID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find files")
	}
	var docs []fileDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode files")
	}

	out := &project.ProjectWithFiles{Project: p.toProject(), Files: make([]project.File, 0, len(docs))}
	for i := range docs {
		out.Files = append(out.Files, docs[i].toFile())
	}
	return out, nil
}

// GetFile returns one file.
func (s *Store) GetFile(ctx context.Context, fileID string) (*project.File, error) {
	defer s.observe("get_file", time.Now())

	doc, err := s.getFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	f := doc.toFile()
	return &f, nil
}

// CreateFile inserts a file into an existing project.
func (s *Store) CreateFile(ctx context.Context, projectID string, spec project.FileSpec) (*project.File, error) {
	defer s.observe("create_file", time.Now())

	name, err := project.NormalizeFileName(spec.Name)
	if err != nil {
		return nil, err
	}
	spec.Name = name
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}

	doc := newFileDoc(newID(), projectID, spec, s.clock())
	if _, err := s.files().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKey(err) {
			return nil, alreadyExists(name)
		}
		return nil, errors.Wrap(err, "insert file")
	}

	f := doc.toFile()
	s.logger.Debug("file created", zap.String("file", f.ID), zap.String("name", f.Name))
	return &f, nil
}

// RenameFile changes a file name and its derived paths.
func (s *Store) RenameFile(ctx context.Context, fileID, newName string) error {
	defer s.observe("rename_file", time.Now())

	name, err := project.NormalizeFileName(newName)
	if err != nil {
		return err
	}
	doc, err := s.getFile(ctx, fileID)
	if err != nil {
		return err
	}

	res, err := s.files().UpdateOne(ctx, bson.M{"_id": fileID}, bson.M{"$set": bson.M{
		"name":         name,
		"path":         project.FilePath(name),
		"storage_path": project.StoragePath(doc.ProjectID, name),
		"updated_at":   s.clock(),
	}})
	if err != nil {
		if mongo.IsDuplicateKey(err) {
			return alreadyExists(name)
		}
		return errors.Wrap(err, "update file name")
	}
	if res.MatchedCount == 0 {
		return project.Errorf(project.ErrCodeNotFound, "file %q not found", fileID)
	}
	return nil
}

// DeleteFile removes a file.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	defer s.observe("delete_file", time.Now())

	res, err := s.files().DeleteOne(ctx, bson.M{"_id": fileID})
	if err != nil {
		return errors.Wrap(err, "delete file")
	}
	if res.DeletedCount == 0 {
		return project.Errorf(project.ErrCodeNotFound, "file %q not found", fileID)
	}
	return nil
}

// UpdateFileContent replaces the persisted content of a file.
func (s *Store) UpdateFileContent(ctx context.Context, fileID, content string) error {
	defer s.observe("update_content", time.Now())

	res, err := s.files().UpdateOne(ctx, bson.M{"_id": fileID}, bson.M{"$set": bson.M{
		"content":    content,
		"size":       project.ContentSize(content),
		"updated_at": s.clock(),
	}})
	if err != nil {
		return errors.Wrap(err, "update file content")
	}
	if res.MatchedCount == 0 {
		return project.Errorf(project.ErrCodeNotFound, "file %q not found", fileID)
	}
	return nil
}

func (s *Store) getProject(ctx context.Context, projectID string) (*projectDoc, error) {
	doc := new(projectDoc)
	if err := s.projects().FindOne(ctx, bson.M{"_id": projectID}).Decode(doc); err != nil {
		if mongo.NotFound(err) {
			return nil, project.Errorf(project.ErrCodeNotFound, "project %q not found", projectID)
		}
		return nil, errors.Wrapf(err, "find project %s", projectID)
	}
	return doc, nil
}

func (s *Store) getFile(ctx context.Context, fileID string) (*fileDoc, error) {
	doc := new(fileDoc)
	if err := s.files().FindOne(ctx, bson.M{"_id": fileID}).Decode(doc); err != nil {
		if mongo.NotFound(err) {
			return nil, project.Errorf(project.ErrCodeNotFound, "file %q not found", fileID)
		}
		return nil, errors.Wrapf(err, "find file %s", fileID)
	}
	return doc, nil
}
