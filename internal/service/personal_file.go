package service

import (
	"context"

	"community-portal/internal/model"
)

// PersonalFileService exposes the personnel records.
type PersonalFileService struct {
	files PersonalFileStore
}

// NewPersonalFileService creates a new PersonalFileService instance.
func NewPersonalFileService(files PersonalFileStore) *PersonalFileService {
	return &PersonalFileService{files: files}
}

// List returns the id, nick and department of every file.
func (s *PersonalFileService) List(ctx context.Context) ([]model.PersonalFileSummary, error) {
	files, err := s.files.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.PersonalFileSummary, 0, len(files))
	for _, f := range files {
		out = append(out, model.PersonalFileSummary{
			ID:        f.ID,
			ForumNick: f.ForumNick,
			ForumDept: f.ForumDept,
		})
	}
	return out, nil
}

// Get returns one full file.
func (s *PersonalFileService) Get(ctx context.Context, id string) (*model.PersonalFile, error) {
	return s.files.GetByID(ctx, id)
}
