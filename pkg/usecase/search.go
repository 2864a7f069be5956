package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/monfocus/monfocus/pkg/domain/interfaces"
	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/domain/types"
	"github.com/monfocus/monfocus/pkg/service/retrieval"
)

// SearchUseCase runs semantic search over the notes visible to the
// principal. Visibility is enforced by prefiltering the candidate set;
// results can only cite notes the caller could read anyway.
type SearchUseCase struct {
	repo      interfaces.Repository
	retriever *retrieval.Service
}

// Search ranks the principal's notes against the query
func (uc *SearchUseCase) Search(ctx context.Context, p *model.Principal, query string) ([]retrieval.Result, error) {
	candidates, err := uc.candidates(ctx, p)
	if err != nil {
		return nil, err
	}

	results, err := uc.retriever.Search(ctx, query, candidates)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search notes")
	}
	return results, nil
}

// candidates collects the notes in the principal's scope
func (uc *SearchUseCase) candidates(ctx context.Context, p *model.Principal) ([]*model.Note, error) {
	if p.Kind == types.PrincipalTeacher {
		notes, err := uc.repo.Note().ListByCourses(ctx, p.CourseIDs)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list course notes for search")
		}
		return notes, nil
	}

	notes, err := uc.repo.Note().ListByOwner(ctx, p.UserID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list notes for search")
	}
	return notes, nil
}
