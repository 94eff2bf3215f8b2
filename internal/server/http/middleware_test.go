package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"

	"github.com/jimei-edu/authsvc/internal/model"
	"github.com/jimei-edu/authsvc/internal/token"
)

func issueFor(t *testing.T, codec *token.Codec, u *model.User) string {
	t.Helper()
	tok, err := codec.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok.AccessToken
}

func TestAuthenticate_BindsPrincipalOnValidToken(t *testing.T) {
	t.Parallel()

	codec := token.NewCodec([]byte("mw-key"), time.Hour)
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Username: "alice", Role: model.RoleInstructor}

	var got model.Principal
	var bound bool
	h := Authenticate(codec, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, bound = PrincipalFromCtx(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+issueFor(t, codec, u))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !bound {
		t.Fatalf("principal not bound for a valid token")
	}
	if got.UserID != u.ID || got.Username != "alice" || got.Role != model.RoleInstructor {
		t.Fatalf("principal mismatch: %+v", got)
	}
}

func TestAuthenticate_FailsClosedButProceeds(t *testing.T) {
	t.Parallel()

	codec := token.NewCodec([]byte("mw-key"), time.Hour)
	other := token.NewCodec([]byte("other-key"), time.Hour)
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Username: "alice", Role: model.RoleStudent}

	cases := map[string]string{
		"no header":       "",
		"not bearer":      "Token abc",
		"empty bearer":    "Bearer   ",
		"garbage":         "Bearer not-a-token",
		"wrong signature": "Bearer " + issueFor(t, other, u),
	}

	for name, header := range cases {
		var bound bool
		var reached bool
		h := Authenticate(codec, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			_, bound = PrincipalFromCtx(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if !reached {
			t.Fatalf("%s: request must proceed unauthenticated, not be rejected", name)
		}
		if bound {
			t.Fatalf("%s: principal must not be bound", name)
		}
	}
}

func TestAuthenticate_DoesNotOverrideBoundPrincipal(t *testing.T) {
	t.Parallel()

	codec := token.NewCodec([]byte("mw-key"), time.Hour)
	existing := model.Principal{UserID: uuid.Must(uuid.NewV4()), Username: "pre", Role: model.RoleAdmin}
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Username: "alice", Role: model.RoleStudent}

	var got model.Principal
	h := Authenticate(codec, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromCtx(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+issueFor(t, codec, u))
	req = req.WithContext(WithPrincipal(req.Context(), existing))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != existing {
		t.Fatalf("middleware overrode a bound principal: %+v", got)
	}
}

func TestAuthenticate_SetsRefreshHeaderNearExpiry(t *testing.T) {
	t.Parallel()

	codec := token.NewCodec([]byte("mw-key"), time.Hour)
	aging := token.NewCodec([]byte("mw-key"), 20*time.Minute)
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Username: "alice", Role: model.RoleStudent}

	h := Authenticate(codec, zaptest.NewLogger(t))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	// Fresh token: no refresh hint.
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+issueFor(t, codec, u))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get(RefreshAdvisedHeader) != "" {
		t.Fatalf("fresh token should not advise refresh")
	}

	// 20 minutes remaining is inside the 30-minute window of a 1h codec.
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+issueFor(t, aging, u))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get(RefreshAdvisedHeader) != "true" {
		t.Fatalf("aging token should advise refresh")
	}
}

func TestLogging_Passthrough(t *testing.T) {
	t.Parallel()

	h := Logging(zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	t.Parallel()

	h := Recover(zaptest.NewLogger(t))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("oh no")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "oh no") {
		t.Fatalf("panic detail leaked to the client")
	}
}
