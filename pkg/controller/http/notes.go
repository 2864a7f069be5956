package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/domain/types"
	"github.com/monfocus/monfocus/pkg/service/retrieval"
	"github.com/monfocus/monfocus/pkg/usecase"
)

// searchTopK bounds the number of results the search endpoint returns
const searchTopK = 3

type noteRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	CourseID string `json:"course_id"`
}

func (x *noteRequest) input() *usecase.NoteInput {
	return &usecase.NoteInput{
		Title:    x.Title,
		Content:  x.Content,
		CourseID: types.CourseID(x.CourseID),
	}
}

type noteResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CourseID  string    `json:"course_id,omitempty"`
	Indexed   bool      `json:"indexed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newNoteResponse(note *model.Note) noteResponse {
	return noteResponse{
		ID:        string(note.ID),
		Title:     note.Title,
		Content:   note.Content,
		CourseID:  string(note.CourseID),
		Indexed:   note.HasEmbedding(),
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	}
}

func newNoteListResponse(notes []*model.Note) []noteResponse {
	resp := make([]noteResponse, len(notes))
	for i, note := range notes {
		resp[i] = newNoteResponse(note)
	}
	return resp
}

// searchHandler runs semantic search over the caller's notes and
// returns at most the top 3 matches. Queries under 4 characters yield
// an empty list, not an error.
func searchHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := model.PrincipalFromContext(ctx)
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		results, err := uc.Search.Search(ctx, p, r.URL.Query().Get("q"))
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		if len(results) > searchTopK {
			results = results[:searchTopK]
		}
		if results == nil {
			results = []retrieval.Result{}
		}
		respondJSON(ctx, w, http.StatusOK, results)
	}
}

func noteListHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := model.PrincipalFromContext(ctx)
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		var notes []*model.Note
		var err error
		if courseID := r.URL.Query().Get("course_id"); courseID != "" {
			notes, err = uc.Note.ListByCourse(ctx, p, types.CourseID(courseID))
		} else {
			notes, err = uc.Note.List(ctx, p)
		}
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		respondJSON(ctx, w, http.StatusOK, newNoteListResponse(notes))
	}
}

func noteCreateHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := model.PrincipalFromContext(ctx)
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		var req noteRequest
		if err := decodeJSON(r, &req); err != nil {
			handleError(ctx, w, err)
			return
		}

		note, err := uc.Note.Create(ctx, p, req.input())
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		respondJSON(ctx, w, http.StatusCreated, newNoteResponse(note))
	}
}

func noteGetHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := model.PrincipalFromContext(ctx)
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		note, err := uc.Note.Get(ctx, p, model.NoteID(chi.URLParam(r, "noteID")))
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		respondJSON(ctx, w, http.StatusOK, newNoteResponse(note))
	}
}

func noteUpdateHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := model.PrincipalFromContext(ctx)
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		var req noteRequest
		if err := decodeJSON(r, &req); err != nil {
			handleError(ctx, w, err)
			return
		}

		note, err := uc.Note.Update(ctx, p, model.NoteID(chi.URLParam(r, "noteID")), req.input())
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		respondJSON(ctx, w, http.StatusOK, newNoteResponse(note))
	}
}

func noteDeleteHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := model.PrincipalFromContext(ctx)
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		if err := uc.Note.Delete(ctx, p, model.NoteID(chi.URLParam(r, "noteID"))); err != nil {
			handleError(ctx, w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type attachmentResponse struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"note_id"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newAttachmentResponse(attachment *model.Attachment) attachmentResponse {
	return attachmentResponse{
		ID:        string(attachment.ID),
		NoteID:    string(attachment.NoteID),
		FileName:  attachment.FileName,
		FileType:  attachment.FileType,
		CreatedAt: attachment.CreatedAt,
	}
}

func attachmentListHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := model.PrincipalFromContext(ctx)
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		attachments, err := uc.Note.ListAttachments(ctx, p, model.NoteID(chi.URLParam(r, "noteID")))
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		resp := make([]attachmentResponse, len(attachments))
		for i, attachment := range attachments {
			resp[i] = newAttachmentResponse(attachment)
		}
		respondJSON(ctx, w, http.StatusOK, resp)
	}
}

func attachmentCreateHandler(uc *usecase.UseCases) http.HandlerFunc {
	type request struct {
		FileName string `json:"file_name"`
		FileType string `json:"file_type"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := model.PrincipalFromContext(ctx)
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		var req request
		if err := decodeJSON(r, &req); err != nil {
			handleError(ctx, w, err)
			return
		}

		attachment, err := uc.Note.AddAttachment(ctx, p, model.NoteID(chi.URLParam(r, "noteID")), req.FileName, req.FileType)
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		respondJSON(ctx, w, http.StatusCreated, newAttachmentResponse(attachment))
	}
}

func attachmentDeleteHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := model.PrincipalFromContext(ctx)
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		if err := uc.Note.DeleteAttachment(ctx, p, model.AttachmentID(chi.URLParam(r, "attachmentID"))); err != nil {
			handleError(ctx, w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
