package graph

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "campusnet/backend/pkg/errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// These tests require a running Neo4j instance.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables.

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := "bolt://localhost:7687"
	user := "neo4j"
	password := "password"

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}

	// Verify connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}

	return driver, nil
}

func seedTestUsers(t *testing.T, ctx context.Context, repo *Repository, n int) []string {
	t.Helper()
	prefix := "test-user-" + time.Now().Format("20060102150405.000")
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%d", prefix, i)
		if err := repo.CreateUser(ctx, id, "Test User", id, ""); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func cleanupTestUsers(ctx context.Context, driver neo4j.DriverWithContext, ids []string) {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, _ = session.Run(ctx, `
		MATCH (u:User) WHERE u.id IN $ids
		OPTIONAL MATCH (u)-[:SENT]->(m:Message)
		DETACH DELETE u, m
	`, map[string]interface{}{"ids": ids})
}

func TestRepository_RequestAcceptSymmetry(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	ids := seedTestUsers(t, ctx, repo, 2)
	defer cleanupTestUsers(ctx, driver, ids)
	a, b := ids[0], ids[1]

	if err := repo.CreatePendingRequest(ctx, a, b); err != nil {
		t.Fatalf("CreatePendingRequest failed: %v", err)
	}

	pending, err := repo.ListPendingRequesters(ctx, b)
	if err != nil {
		t.Fatalf("ListPendingRequesters failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != a {
		t.Errorf("Expected pending request from %s, got %v", a, pending)
	}

	// The request is directed: A has no pending requests.
	pending, err = repo.ListPendingRequesters(ctx, a)
	if err != nil {
		t.Fatalf("ListPendingRequesters failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected no pending requests for %s, got %v", a, pending)
	}

	if err := repo.AcceptRequest(ctx, a, b); err != nil {
		t.Fatalf("AcceptRequest failed: %v", err)
	}

	for _, pair := range [][2]string{{a, b}, {b, a}} {
		friends, err := repo.ListFriends(ctx, pair[0])
		if err != nil {
			t.Fatalf("ListFriends failed: %v", err)
		}
		if len(friends) != 1 || friends[0].ID != pair[1] {
			t.Errorf("Expected %s to have friend %s, got %v", pair[0], pair[1], friends)
		}
	}

	// The pending edge is gone: friendship and request are exclusive.
	pending, _ = repo.ListPendingRequesters(ctx, b)
	if len(pending) != 0 {
		t.Errorf("Expected pending request to be consumed, got %v", pending)
	}
}

func TestRepository_DuplicateRequestConflicts(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	ids := seedTestUsers(t, ctx, repo, 2)
	defer cleanupTestUsers(ctx, driver, ids)
	a, b := ids[0], ids[1]

	if err := repo.CreatePendingRequest(ctx, a, b); err != nil {
		t.Fatalf("CreatePendingRequest failed: %v", err)
	}

	// Retry and reverse direction both conflict instead of duplicating.
	if err := repo.CreatePendingRequest(ctx, a, b); !apperrors.IsConflict(err) {
		t.Errorf("Expected conflict on duplicate request, got %v", err)
	}
	if err := repo.CreatePendingRequest(ctx, b, a); !apperrors.IsConflict(err) {
		t.Errorf("Expected conflict on reverse request, got %v", err)
	}

	if err := repo.AcceptRequest(ctx, a, b); err != nil {
		t.Fatalf("AcceptRequest failed: %v", err)
	}
	if err := repo.CreatePendingRequest(ctx, a, b); !apperrors.IsConflict(err) {
		t.Errorf("Expected conflict after friendship, got %v", err)
	}
}

func TestRepository_ConcurrentRequestsCreateOneEdge(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	ids := seedTestUsers(t, ctx, repo, 2)
	defer cleanupTestUsers(ctx, driver, ids)
	a, b := ids[0], ids[1]

	// Fire racing requests in both directions. The store must serialize them
	// so exactly one wins and the rest conflict.
	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		from, to := a, b
		if i%2 == 1 {
			from, to = b, a
		}
		wg.Add(1)
		go func(from, to string) {
			defer wg.Done()
			errs <- repo.CreatePendingRequest(ctx, from, to)
		}(from, to)
	}
	wg.Wait()
	close(errs)

	var created int
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		if !apperrors.IsConflict(err) {
			t.Errorf("Expected conflict for losing request, got %v", err)
		}
	}
	if created != 1 {
		t.Errorf("Expected exactly one request to win, got %d", created)
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)
	result, err := session.Run(ctx, `
		MATCH (:User {id: $a})-[r:REQUESTED]-(:User {id: $b})
		RETURN count(r) as edges
	`, map[string]interface{}{"a": a, "b": b})
	if err != nil {
		t.Fatalf("Failed to count pending edges: %v", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		t.Fatalf("Failed to read edge count: %v", err)
	}
	if n := getInt64FromRecord(record, "edges"); n != 1 {
		t.Errorf("Expected exactly 1 pending edge, got %d", n)
	}
}

func TestRepository_AcceptMissingRequestNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	ids := seedTestUsers(t, ctx, repo, 2)
	defer cleanupTestUsers(ctx, driver, ids)

	if err := repo.AcceptRequest(ctx, ids[0], ids[1]); !apperrors.IsNotFound(err) {
		t.Errorf("Expected not-found for missing request, got %v", err)
	}
}

func TestRepository_RejectIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	ids := seedTestUsers(t, ctx, repo, 2)
	defer cleanupTestUsers(ctx, driver, ids)
	a, b := ids[0], ids[1]

	if err := repo.CreatePendingRequest(ctx, a, b); err != nil {
		t.Fatalf("CreatePendingRequest failed: %v", err)
	}
	if err := repo.DeletePendingRequest(ctx, a, b); err != nil {
		t.Fatalf("DeletePendingRequest failed: %v", err)
	}
	if err := repo.DeletePendingRequest(ctx, a, b); err != nil {
		t.Errorf("Second delete should be a no-op, got %v", err)
	}
}

func TestRepository_MessageHistoryOrdering(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	ids := seedTestUsers(t, ctx, repo, 2)
	defer cleanupTestUsers(ctx, driver, ids)
	a, b := ids[0], ids[1]

	// Write out of order; reads must come back ascending by epoch.
	base := time.Now().UnixMilli()
	epochs := []int64{base + 2000, base, base + 1000}
	for i, epoch := range epochs {
		msg := MessageRecord{
			ID:          fmt.Sprintf("%s-msg-%d", a, i),
			SenderID:    a,
			RecipientID: b,
			Content:     fmt.Sprintf("message %d", i),
			CreatedAt:   time.UnixMilli(epoch),
			EpochMillis: epoch,
		}
		if err := repo.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	history, err := repo.MessagesBetween(ctx, b, a)
	if err != nil {
		t.Fatalf("MessagesBetween failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i-1].EpochMillis > history[i].EpochMillis {
			t.Errorf("History out of order at %d: %d > %d", i, history[i-1].EpochMillis, history[i].EpochMillis)
		}
	}
}

func TestRepository_ConversationsUnreadCount(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	ids := seedTestUsers(t, ctx, repo, 2)
	defer cleanupTestUsers(ctx, driver, ids)
	a, b := ids[0], ids[1]

	base := time.Now().UnixMilli()
	for i := 0; i < 2; i++ {
		msg := MessageRecord{
			ID:          fmt.Sprintf("%s-msg-%d", b, i),
			SenderID:    b,
			RecipientID: a,
			Content:     fmt.Sprintf("hello %d", i),
			CreatedAt:   time.UnixMilli(base + int64(i)*1000),
			EpochMillis: base + int64(i)*1000,
		}
		if err := repo.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	conversations, err := repo.ConversationsFor(ctx, a)
	if err != nil {
		t.Fatalf("ConversationsFor failed: %v", err)
	}
	if len(conversations) != 1 {
		t.Fatalf("Expected 1 conversation, got %d", len(conversations))
	}
	if conversations[0].Peer.ID != b {
		t.Errorf("Expected peer %s, got %s", b, conversations[0].Peer.ID)
	}
	if conversations[0].UnreadCount != 2 {
		t.Errorf("Expected 2 unread, got %d", conversations[0].UnreadCount)
	}
	if conversations[0].LastMessage.EpochMillis != base+1000 {
		t.Errorf("Expected latest message at %d, got %d", base+1000, conversations[0].LastMessage.EpochMillis)
	}

	if err := repo.MarkRead(ctx, a, b, base+1000); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	conversations, err = repo.ConversationsFor(ctx, a)
	if err != nil {
		t.Fatalf("ConversationsFor failed: %v", err)
	}
	if conversations[0].UnreadCount != 0 {
		t.Errorf("Expected 0 unread after mark-read, got %d", conversations[0].UnreadCount)
	}
}

func TestRepository_GetUser_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	if _, err := repo.GetUser(ctx, "non-existent-user"); !apperrors.IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}
