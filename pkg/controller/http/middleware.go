package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/domain/types"
)

var errNoIdentity = errors.New("missing identity header")

// PrincipalResolver authenticates a request and yields the acting
// principal. Resolution failures end the request with 401.
type PrincipalResolver interface {
	Resolve(r *http.Request) (*model.Principal, error)
}

// HeaderPrincipalResolver trusts identity headers set by an upstream
// proxy or a development client:
//
//	X-Monfocus-User:    user ID (required)
//	X-Monfocus-Role:    "teacher" or "visitor" (default visitor)
//	X-Monfocus-Courses: comma separated course IDs
//
// When a course catalog is given, unknown course IDs are dropped.
type HeaderPrincipalResolver struct {
	knownCourses map[types.CourseID]bool
}

// NewHeaderPrincipalResolver creates a header-based resolver. A nil
// catalog accepts any course ID.
func NewHeaderPrincipalResolver(courseIDs []types.CourseID) *HeaderPrincipalResolver {
	resolver := &HeaderPrincipalResolver{}
	if courseIDs != nil {
		resolver.knownCourses = make(map[types.CourseID]bool, len(courseIDs))
		for _, id := range courseIDs {
			resolver.knownCourses[id] = true
		}
	}
	return resolver
}

func (x *HeaderPrincipalResolver) Resolve(r *http.Request) (*model.Principal, error) {
	userID := types.UserID(r.Header.Get("X-Monfocus-User"))
	if userID == "" {
		return nil, errNoIdentity
	}

	var courseIDs []types.CourseID
	if raw := r.Header.Get("X-Monfocus-Courses"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id := types.CourseID(strings.TrimSpace(part))
			if id == "" {
				continue
			}
			if x.knownCourses != nil && !x.knownCourses[id] {
				continue
			}
			courseIDs = append(courseIDs, id)
		}
	}

	if r.Header.Get("X-Monfocus-Role") == types.PrincipalTeacher.String() {
		return model.NewTeacher(userID, courseIDs), nil
	}
	return model.NewVisitor(userID, courseIDs), nil
}

// StaticPrincipalResolver always resolves to one fixed principal.
// Useful for single-user deployments and tests.
type StaticPrincipalResolver struct {
	principal *model.Principal
}

func NewStaticPrincipalResolver(p *model.Principal) *StaticPrincipalResolver {
	return &StaticPrincipalResolver{principal: p}
}

func (x *StaticPrincipalResolver) Resolve(r *http.Request) (*model.Principal, error) {
	return x.principal, nil
}

// principalMiddleware resolves the principal once and stores it in the
// request context
func principalMiddleware(resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := resolver.Resolve(r)
			if err != nil || p == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			ctx := model.ContextWithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
