package social

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMux(store Store) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(NewService(store, nil, zap.NewNop()), zap.NewNop()).Register(mux)
	return mux
}

func TestCreateInvitationEndpoint(t *testing.T) {
	store := newFakeStore()
	mux := newTestMux(store)

	body := `{"inviterId":"u1","inviterName":"Alice","invitedId":"u2"}`
	req := httptest.NewRequest(http.MethodPost, "/invitations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.createdInvitations, 1)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestCreateInvitationValidation(t *testing.T) {
	mux := newTestMux(newFakeStore())

	req := httptest.NewRequest(http.MethodPost, "/invitations", strings.NewReader(`{"inviterId":"u1"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/invitations", strings.NewReader(`not json`))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateInvitationConflict(t *testing.T) {
	store := newFakeStore()
	store.friendships["u1|u2"] = true
	mux := newTestMux(store)

	body := `{"inviterId":"u1","inviterName":"Alice","invitedId":"u2"}`
	req := httptest.NewRequest(http.MethodPost, "/invitations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"conflict"`)
}

func TestAcceptInvitationEndpoint(t *testing.T) {
	store := newFakeStore()
	store.invitations["u2"] = []Invitation{{InviterID: "u1", InviterName: "Alice"}}
	mux := newTestMux(store)

	body := `{"inviterId":"u1","inviterName":"Alice","invitedId":"u2","invitedName":"Bob"}`
	req := httptest.NewRequest(http.MethodPost, "/invitations/accept", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, store.createdFriendships, 1)
}

func TestAcceptMissingInvitationEndpoint(t *testing.T) {
	mux := newTestMux(newFakeStore())

	body := `{"inviterId":"u1","invitedId":"u2"}`
	req := httptest.NewRequest(http.MethodPost, "/invitations/accept", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListFriendsEndpoint(t *testing.T) {
	store := newFakeStore()
	store.friends["u1"] = []Friend{{UserID: "u2", DisplayName: "Bob"}}
	mux := newTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/friends?userId=u1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	req = httptest.NewRequest(http.MethodGet, "/friends", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
