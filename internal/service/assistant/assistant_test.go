package assistant

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"agentdocs/internal/apperr"
	"agentdocs/internal/models"
	"agentdocs/internal/storage"
)

const testUser = "test-user-id-12345"

func TestMessagesReadBackInAppendOrder(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	svc := NewService(db)
	ctx := context.Background()
	agent := insertTestAgent(t, svc, "writer")
	conv, err := svc.CreateConversation(ctx, testUser, agent.ID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	// the second and third messages share a timestamp; append order must still win
	stamps := []time.Time{base, base.Add(time.Second), base.Add(time.Second)}
	i := 0
	svc.WithClock(func() time.Time {
		ts := stamps[i]
		i++
		return ts
	})

	contents := []string{"one", "two", "three"}
	roles := []models.Role{models.RoleUser, models.RoleAssistant, models.RoleUser}
	for idx, c := range contents {
		if _, err := svc.AppendMessage(ctx, conv.ID, roles[idx], c); err != nil {
			t.Fatalf("append %s: %v", c, err)
		}
	}

	msgs, err := svc.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(msgs))
	}
	for idx, m := range msgs {
		if m.Content != contents[idx] || m.Role != roles[idx] {
			t.Fatalf("message %d: got %s/%q", idx, m.Role, m.Content)
		}
		if idx > 0 && m.CreatedAt.Before(msgs[idx-1].CreatedAt) {
			t.Fatalf("messages not in createdAt order at %d", idx)
		}
	}
}

func TestCreateConversationValidation(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.CreateConversation(ctx, testUser, "  "); apperr.KindOf(err) != apperr.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := svc.CreateConversation(ctx, testUser, "missing-agent"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	agent := insertTestAgent(t, svc, "writer")
	conv, err := svc.CreateConversation(ctx, testUser, agent.ID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if conv.Title != models.PlaceholderTitle {
		t.Fatalf("expected placeholder title, got %q", conv.Title)
	}
	// second creation reuses the stand-in user
	if _, err := svc.CreateConversation(ctx, testUser, agent.ID); err != nil {
		t.Fatalf("create second conversation: %v", err)
	}
}

func TestListConversationsIncludesAgentAndCount(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(db).WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	})
	ctx := context.Background()
	agent := insertTestAgent(t, svc, "writer")

	older, _ := svc.CreateConversation(ctx, testUser, agent.ID)
	newer, _ := svc.CreateConversation(ctx, testUser, agent.ID)
	if _, err := svc.AppendMessage(ctx, older.ID, models.RoleUser, "hi"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := svc.TouchConversation(ctx, older.ID, time.Time{}); err != nil {
		t.Fatalf("touch: %v", err)
	}

	list, err := svc.ListConversations(ctx, testUser)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
	if list[0].ID != older.ID || list[1].ID != newer.ID {
		t.Fatalf("expected most recently updated first, got %s then %s", list[0].ID, list[1].ID)
	}
	if list[0].MessageCount != 1 || list[1].MessageCount != 0 {
		t.Fatalf("unexpected message counts %d/%d", list[0].MessageCount, list[1].MessageCount)
	}
	if list[0].Agent.Slug != "writer" || list[0].Agent.ID != agent.ID {
		t.Fatalf("unexpected agent summary %+v", list[0].Agent)
	}

	other, err := svc.ListConversations(ctx, "someone-else")
	if err != nil || len(other) != 0 {
		t.Fatalf("expected no conversations for other user, got %d (%v)", len(other), err)
	}
}

func TestDeleteConversationCascadesAndIsNotFoundAfterwards(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	agent := insertTestAgent(t, svc, "writer")
	conv, _ := svc.CreateConversation(ctx, testUser, agent.ID)
	if _, err := svc.AppendMessage(ctx, conv.ID, models.RoleUser, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	doc, err := svc.CreateDocument(ctx, models.Document{
		Name: "Plan", Type: models.DocumentPDF, FileName: "plan-1.pdf", URL: "/api/documents/download/plan-1.pdf", ConversationID: conv.ID,
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	docs, err := svc.DeleteConversation(ctx, testUser, conv.ID)
	if err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	if len(docs) != 1 || docs[0].FileName != doc.FileName {
		t.Fatalf("expected deleted document to be returned, got %+v", docs)
	}
	if n, _ := svc.CountMessages(ctx, conv.ID); n != 0 {
		t.Fatalf("expected messages removed, got %d", n)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.DeleteConversation(ctx, testUser, conv.ID); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("delete #%d: expected not found, got %v", i, err)
		}
	}
	if _, err := svc.DeleteDocument(ctx, testUser, doc.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected document gone, got %v", err)
	}
}

func TestConversationDetailOrdering(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(db).WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	})
	ctx := context.Background()
	agent := insertTestAgent(t, svc, "writer")
	conv, _ := svc.CreateConversation(ctx, testUser, agent.ID)
	svc.AppendMessage(ctx, conv.ID, models.RoleUser, "q")
	svc.AppendMessage(ctx, conv.ID, models.RoleAssistant, "a")
	first, _ := svc.CreateDocument(ctx, models.Document{Name: "a", Type: models.DocumentDOCX, FileName: "a.docx", URL: "u1", ConversationID: conv.ID})
	second, _ := svc.CreateDocument(ctx, models.Document{Name: "b", Type: models.DocumentPDF, FileName: "b.pdf", URL: "u2", ConversationID: conv.ID})

	detail, err := svc.GetConversationDetail(ctx, testUser, conv.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Agent.SystemPrompt == "" {
		t.Fatalf("expected full agent in detail")
	}
	if len(detail.Messages) != 2 || detail.Messages[0].Content != "q" {
		t.Fatalf("unexpected messages %+v", detail.Messages)
	}
	if len(detail.Documents) != 2 || detail.Documents[0].ID != second.ID || detail.Documents[1].ID != first.ID {
		t.Fatalf("expected newest document first, got %+v", detail.Documents)
	}

	if _, err := svc.GetConversationDetail(ctx, "intruder", conv.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected other users to get not found, got %v", err)
	}
}

func TestSeedAgentsSkipsExisting(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	agents, err := storage.DefaultAgents()
	if err != nil {
		t.Fatalf("default agents: %v", err)
	}
	created, err := svc.SeedAgents(ctx, agents)
	if err != nil || created != len(agents) {
		t.Fatalf("first seed: created=%d err=%v", created, err)
	}
	created, err = svc.SeedAgents(ctx, agents)
	if err != nil || created != 0 {
		t.Fatalf("second seed: created=%d err=%v", created, err)
	}
	list, err := svc.ListAgents(ctx)
	if err != nil || len(list) != len(agents) {
		t.Fatalf("list agents: %d %v", len(list), err)
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Name > list[i].Name {
			t.Fatalf("agents not ordered by name: %s > %s", list[i-1].Name, list[i].Name)
		}
	}
	if _, err := svc.GetAgentBySlug(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for unknown slug, got %v", err)
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.OpenDSN("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func insertTestAgent(t *testing.T, svc *Service, slug string) *models.Agent {
	t.Helper()
	agent, err := svc.CreateAgent(context.Background(), models.Agent{
		Slug:         slug,
		Name:         "Agent " + slug,
		Description:  "test agent",
		SystemPrompt: "You are " + slug,
	})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	return agent
}
