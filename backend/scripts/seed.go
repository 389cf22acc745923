package main

import (
	"context"
	"flag"
	"fmt"

	"campusnet/backend/internal/chat"
	"campusnet/backend/internal/graph"
	"campusnet/backend/pkg/config"
	"campusnet/backend/pkg/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

type seedUser struct {
	id, name, username string
}

type seedCourse struct {
	id, name string
}

func main() {
	withMessages := flag.Bool("messages", true, "Seed demo conversations")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting database seeding...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Verify connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	repo := graph.NewRepository(driver)

	log.Info("Ensuring schema constraints and indexes...")
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Warn("Failed to ensure schema (may already exist)", zap.Error(err))
	}

	users := []seedUser{
		{"u-alice", "Alice Chen", "alice"},
		{"u-bob", "Bob Duarte", "bob"},
		{"u-carol", "Carol Ionescu", "carol"},
		{"u-dave", "Dave Okafor", "dave"},
		{"u-erin", "Erin Walsh", "erin"},
	}
	for _, u := range users {
		if err := repo.CreateUser(ctx, u.id, u.name, u.username, ""); err != nil {
			log.Fatal("Failed to create user", zap.String("user_id", u.id), zap.Error(err))
		}
	}

	courses := []seedCourse{
		{"c-algo", "Algorithms"},
		{"c-db", "Database Systems"},
		{"c-net", "Computer Networks"},
	}
	for _, c := range courses {
		if err := repo.CreateCourse(ctx, c.id, c.name); err != nil {
			log.Fatal("Failed to create course", zap.String("course_id", c.id), zap.Error(err))
		}
	}

	enrollments := map[string][]string{
		"u-alice": {"c-algo", "c-db"},
		"u-bob":   {"c-algo"},
		"u-carol": {"c-db", "c-net"},
		"u-dave":  {"c-net"},
		"u-erin":  {"c-algo", "c-net"},
	}
	for userID, courseIDs := range enrollments {
		for _, courseID := range courseIDs {
			if err := repo.EnrollUser(ctx, userID, courseID); err != nil {
				log.Fatal("Failed to enroll user", zap.String("user_id", userID), zap.Error(err))
			}
		}
	}

	// Alice-Bob and Bob-Carol become friends; Dave has a pending request to
	// Alice. This leaves Carol as a friend-of-friend suggestion for Alice.
	friendships := [][2]string{
		{"u-alice", "u-bob"},
		{"u-bob", "u-carol"},
	}
	for _, pair := range friendships {
		if err := repo.CreatePendingRequest(ctx, pair[0], pair[1]); err != nil {
			log.Warn("Request already present", zap.Error(err))
		}
		if err := repo.AcceptRequest(ctx, pair[0], pair[1]); err != nil {
			log.Warn("Friendship already present", zap.Error(err))
		}
	}
	if err := repo.CreatePendingRequest(ctx, "u-dave", "u-alice"); err != nil {
		log.Warn("Pending request already present", zap.Error(err))
	}

	if *withMessages {
		messages := chat.NewService(repo, nil)
		demo := []struct{ from, to, content string }{
			{"u-alice", "u-bob", "Did you start the graded assignment yet?"},
			{"u-bob", "u-alice", "Halfway through, the second part is rough"},
			{"u-bob", "u-carol", "See you at the database lab?"},
		}
		for _, m := range demo {
			if _, err := messages.Send(ctx, m.from, m.to, m.content); err != nil {
				log.Fatal("Failed to seed message", zap.Error(err))
			}
		}
	}

	log.Info("Seeding complete",
		zap.Int("users", len(users)),
		zap.Int("courses", len(courses)),
	)
}
