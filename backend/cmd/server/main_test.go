package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"campusnet/backend/internal/chat"
	"campusnet/backend/internal/graph"
	"campusnet/backend/internal/realtime"
	"campusnet/backend/internal/social"
	apperrors "campusnet/backend/pkg/errors"
	"campusnet/backend/pkg/logger"

	"context"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// fakeStore is an in-memory stand-in for the graph repository, implementing
// the store interfaces of every service the handlers touch.
type fakeStore struct {
	users       map[string]graph.FriendRecord
	pending     map[[2]string]bool
	friendships map[[2]string]bool
	messages    []graph.MessageRecord
	enrolled    map[[2]string]bool
}

func newFakeStore(userIDs ...string) *fakeStore {
	s := &fakeStore{
		users:       make(map[string]graph.FriendRecord),
		pending:     make(map[[2]string]bool),
		friendships: make(map[[2]string]bool),
		enrolled:    make(map[[2]string]bool),
	}
	for _, id := range userIDs {
		s.users[id] = graph.FriendRecord{ID: id, Name: id, Username: id}
	}
	return s
}

func pairKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

func (s *fakeStore) CreatePendingRequest(ctx context.Context, fromID, toID string) error {
	if s.friendships[pairKey(fromID, toID)] || s.pending[[2]string{fromID, toID}] || s.pending[[2]string{toID, fromID}] {
		return apperrors.NewConflict("already exists")
	}
	s.pending[[2]string{fromID, toID}] = true
	return nil
}

func (s *fakeStore) AcceptRequest(ctx context.Context, fromID, toID string) error {
	if !s.pending[[2]string{fromID, toID}] {
		return apperrors.NewNotFound("no pending request")
	}
	delete(s.pending, [2]string{fromID, toID})
	s.friendships[pairKey(fromID, toID)] = true
	return nil
}

func (s *fakeStore) DeletePendingRequest(ctx context.Context, fromID, toID string) error {
	delete(s.pending, [2]string{fromID, toID})
	return nil
}

func (s *fakeStore) DeleteFriendship(ctx context.Context, userID, friendID string) error {
	delete(s.friendships, pairKey(userID, friendID))
	return nil
}

func (s *fakeStore) ListFriends(ctx context.Context, userID string) ([]graph.FriendRecord, error) {
	out := []graph.FriendRecord{}
	for pair := range s.friendships {
		if pair[0] == userID {
			out = append(out, s.users[pair[1]])
		} else if pair[1] == userID {
			out = append(out, s.users[pair[0]])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ListPendingRequesters(ctx context.Context, userID string) ([]graph.FriendRecord, error) {
	out := []graph.FriendRecord{}
	for pair := range s.pending {
		if pair[1] == userID {
			out = append(out, s.users[pair[0]])
		}
	}
	return out, nil
}

func (s *fakeStore) FriendsOfFriends(ctx context.Context, userID string) ([]graph.SuggestionRecord, error) {
	return nil, nil
}

func (s *fakeStore) UsersSharingEnrollment(ctx context.Context, userID string) ([]graph.FriendRecord, error) {
	return nil, nil
}

func (s *fakeStore) MutualFriendCount(ctx context.Context, userID, candidateID string) (int64, error) {
	return 0, nil
}

func (s *fakeStore) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	return s.enrolled[[2]string{userID, courseID}], nil
}

func (s *fakeStore) EnrollUser(ctx context.Context, userID, courseID string) error {
	s.enrolled[[2]string{userID, courseID}] = true
	return nil
}

func (s *fakeStore) CreateMessage(ctx context.Context, msg graph.MessageRecord) error {
	if _, ok := s.users[msg.SenderID]; !ok {
		return apperrors.NewNotFound("sender not found")
	}
	if _, ok := s.users[msg.RecipientID]; !ok {
		return apperrors.NewNotFound("recipient not found")
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeStore) MessagesBetween(ctx context.Context, userAID, userBID string) ([]graph.MessageRecord, error) {
	out := []graph.MessageRecord{}
	for _, msg := range s.messages {
		if (msg.SenderID == userAID && msg.RecipientID == userBID) ||
			(msg.SenderID == userBID && msg.RecipientID == userAID) {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EpochMillis < out[j].EpochMillis })
	return out, nil
}

func (s *fakeStore) ConversationsFor(ctx context.Context, userID string) ([]graph.ConversationRecord, error) {
	return nil, nil
}

func (s *fakeStore) MarkRead(ctx context.Context, userID, peerID string, epochMillis int64) error {
	return nil
}

func setupTestRouter(store *fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.Get()

	hub := realtime.NewHub()
	handlers := newAPI(
		social.NewFriendshipService(store),
		social.NewSuggestionEngine(store),
		social.NewCatalogAdapter(store),
		chat.NewService(store, hub),
		hub,
		10,
		log,
	)

	router := gin.New()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handlers.registerRoutes(router)
	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router := setupTestRouter(newFakeStore())

	w := doJSON(router, "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "ok", response["status"])
}

func TestFriendRequestFlow(t *testing.T) {
	router := setupTestRouter(newFakeStore("alice", "bob"))

	w := doJSON(router, "POST", "/api/friends/requests", gin.H{"from_id": "alice", "to_id": "bob"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Duplicate request maps to 409.
	w = doJSON(router, "POST", "/api/friends/requests", gin.H{"from_id": "alice", "to_id": "bob"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, "POST", "/api/friends/requests/accept", gin.H{"from_id": "alice", "to_id": "bob"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Second accept maps to 404.
	w = doJSON(router, "POST", "/api/friends/requests/accept", gin.H{"from_id": "alice", "to_id": "bob"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, "GET", "/api/users/alice/friends", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var friendsResp struct {
		Friends []graph.FriendRecord `json:"friends"`
	}
	json.Unmarshal(w.Body.Bytes(), &friendsResp)
	assert.Len(t, friendsResp.Friends, 1)
	assert.Equal(t, "bob", friendsResp.Friends[0].ID)
}

func TestFriendRequestValidation(t *testing.T) {
	router := setupTestRouter(newFakeStore("alice"))

	// Missing fields fail binding.
	w := doJSON(router, "POST", "/api/friends/requests", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Self-request fails service validation.
	w = doJSON(router, "POST", "/api/friends/requests", gin.H{"from_id": "alice", "to_id": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRejectRequestAlwaysOK(t *testing.T) {
	router := setupTestRouter(newFakeStore("alice", "bob"))

	// Rejecting a request that was never sent is still 200.
	w := doJSON(router, "POST", "/api/friends/requests/reject", gin.H{"from_id": "alice", "to_id": "bob"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSendMessageEndpoint(t *testing.T) {
	router := setupTestRouter(newFakeStore("alice", "bob"))

	w := doJSON(router, "POST", "/api/messages", gin.H{"from_id": "alice", "to_id": "bob", "content": "hi"})
	assert.Equal(t, http.StatusOK, w.Code)

	var msg graph.MessageRecord
	json.Unmarshal(w.Body.Bytes(), &msg)
	assert.NotEmpty(t, msg.ID)
	assert.Positive(t, msg.EpochMillis)

	// Unknown recipient maps to 400, not 404.
	w = doJSON(router, "POST", "/api/messages", gin.H{"from_id": "alice", "to_id": "ghost", "content": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Blank content fails binding before the service sees it.
	w = doJSON(router, "POST", "/api/messages", gin.H{"from_id": "alice", "to_id": "bob", "content": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryEndpointOrdered(t *testing.T) {
	store := newFakeStore("alice", "bob")
	router := setupTestRouter(store)

	for _, content := range []string{"one", "two"} {
		w := doJSON(router, "POST", "/api/messages", gin.H{"from_id": "alice", "to_id": "bob", "content": content})
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(router, "GET", "/api/messages/history?user_a=bob&user_b=alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages []graph.MessageRecord `json:"messages"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Len(t, resp.Messages, 2)
	assert.LessOrEqual(t, resp.Messages[0].EpochMillis, resp.Messages[1].EpochMillis)

	// Missing query params map to 400.
	w = doJSON(router, "GET", "/api/messages/history?user_a=bob", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSuggestionsEndpointValidatesLimit(t *testing.T) {
	router := setupTestRouter(newFakeStore("alice"))

	w := doJSON(router, "GET", "/api/users/alice/suggestions?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, "GET", "/api/users/alice/suggestions?limit=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCourseInteractionAutoEnrolls(t *testing.T) {
	store := newFakeStore("alice")
	router := setupTestRouter(store)

	w := doJSON(router, "POST", "/api/courses/c-algo/interactions", gin.H{"user_id": "alice"})
	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, true, resp["newly_enrolled"])

	w = doJSON(router, "POST", "/api/courses/c-algo/interactions", gin.H{"user_id": "alice"})
	assert.Equal(t, http.StatusOK, w.Code)
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, false, resp["newly_enrolled"])
}

func TestWebSocketRequiresUserID(t *testing.T) {
	router := setupTestRouter(newFakeStore())

	w := doJSON(router, "GET", "/ws", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
