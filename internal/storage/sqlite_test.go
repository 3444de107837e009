package storage

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, id, username string) User {
	t.Helper()
	u := User{
		ID:           id,
		Username:     username,
		PasswordHash: "hash",
		Email:        username + "@example.com",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := s.CreateUser(u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "u1", "alice")

	err := s.CreateUser(User{ID: "u2", Username: "alice", PasswordHash: "x", CreatedAt: time.Now()})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("CreateUser duplicate = %v, want ErrDuplicate", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	s := newTestStore(t)
	want := seedUser(t, s, "u1", "alice")

	got, err := s.GetUserByUsername("alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got.ID != want.ID || got.Email != want.Email {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if _, err := s.GetUserByUsername("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing user = %v, want ErrNotFound", err)
	}
}

func TestTokens_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "u1", "alice")

	if err := s.SaveToken("tokenhash", "u1"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	userID, err := s.GetUserIDByTokenHash("tokenhash")
	if err != nil {
		t.Fatalf("GetUserIDByTokenHash: %v", err)
	}
	if userID != "u1" {
		t.Errorf("userID = %q, want u1", userID)
	}

	if _, err := s.GetUserIDByTokenHash("unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown token = %v, want ErrNotFound", err)
	}
}

func TestCurricula_SaveAndUpdatePlan(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "u1", "alice")

	c := Curriculum{
		ID:          "c1",
		UserID:      "u1",
		Title:       "Algorithms",
		ContentText: "sorting and searching",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := s.SaveCurriculum(c); err != nil {
		t.Fatalf("SaveCurriculum: %v", err)
	}

	got, err := s.GetCurriculum("c1")
	if err != nil {
		t.Fatalf("GetCurriculum: %v", err)
	}
	if got.StudyPlan != nil {
		t.Errorf("fresh curriculum should have no plan, got %s", got.StudyPlan)
	}

	plan := json.RawMessage(`{"Day 1":["sorting"]}`)
	if err := s.UpdateStudyPlan("c1", "2 weeks", plan); err != nil {
		t.Fatalf("UpdateStudyPlan: %v", err)
	}
	got, err = s.GetCurriculum("c1")
	if err != nil {
		t.Fatalf("GetCurriculum: %v", err)
	}
	if got.Duration != "2 weeks" || string(got.StudyPlan) != string(plan) {
		t.Errorf("after update: duration=%q plan=%s", got.Duration, got.StudyPlan)
	}

	if err := s.UpdateStudyPlan("missing", "1 week", plan); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStudyPlan missing = %v, want ErrNotFound", err)
	}
}

func TestListCurricula_ScopedToUser(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "u1", "alice")
	seedUser(t, s, "u2", "bob")

	now := time.Now().UTC()
	for i, spec := range []struct{ id, user string }{
		{"c1", "u1"}, {"c2", "u2"}, {"c3", "u1"},
	} {
		err := s.SaveCurriculum(Curriculum{
			ID: spec.id, UserID: spec.user, Title: spec.id,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("SaveCurriculum %s: %v", spec.id, err)
		}
	}

	got, err := s.ListCurricula("u1")
	if err != nil {
		t.Fatalf("ListCurricula: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c3" || got[1].ID != "c1" {
		t.Errorf("ListCurricula(u1) = %+v, want [c3 c1]", got)
	}
}

func TestFlashcards_BatchSaveAndList(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "u1", "alice")

	now := time.Now().UTC().Truncate(time.Second)
	cards := []Flashcard{
		{ID: "f1", UserID: "u1", Topic: "Loops", Question: "Q1", Answer: "A1", CreatedAt: now},
		{ID: "f2", UserID: "u1", Topic: "Loops", Question: "Q2", Answer: "A2", CreatedAt: now},
	}
	if err := s.SaveFlashcards(cards); err != nil {
		t.Fatalf("SaveFlashcards: %v", err)
	}

	got, err := s.ListFlashcards("u1")
	if err != nil {
		t.Fatalf("ListFlashcards: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListFlashcards = %d cards, want 2", len(got))
	}
	if got[0].Question != "Q1" || got[1].Question != "Q2" {
		t.Errorf("cards = %+v", got)
	}
}

func TestWorksheets_AnswerDefaultsEmpty(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "u1", "alice")

	sheets := []Worksheet{
		{ID: "w1", UserID: "u1", Topic: "Graphs", Question: "Explain BFS", CreatedAt: time.Now()},
	}
	if err := s.SaveWorksheets(sheets); err != nil {
		t.Fatalf("SaveWorksheets: %v", err)
	}
	got, err := s.ListWorksheets("u1")
	if err != nil {
		t.Fatalf("ListWorksheets: %v", err)
	}
	if len(got) != 1 || got[0].Answer != "" {
		t.Errorf("worksheets = %+v", got)
	}
}

func TestLearningLog_AppendAndUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "u1", "alice")

	start := time.Now().UTC().Truncate(time.Second)
	err := s.AppendLearningEntry(LearningEntry{
		ID: "l1", UserID: "u1", Question: "what is recursion?",
		Topic: "Recursion", Difficulty: "medium", LastAttempt: start,
	})
	if err != nil {
		t.Fatalf("AppendLearningEntry: %v", err)
	}

	got, err := s.ListLearningEntries("u1")
	if err != nil {
		t.Fatalf("ListLearningEntries: %v", err)
	}
	if len(got) != 1 || got[0].Status != StatusUnattempted {
		t.Fatalf("entries = %+v, want one unattempted", got)
	}

	later := start.Add(time.Hour)
	if err := s.UpdateLearningStatus("u1", "what is recursion?", StatusMastered, later); err != nil {
		t.Fatalf("UpdateLearningStatus: %v", err)
	}
	got, err = s.ListLearningEntries("u1")
	if err != nil {
		t.Fatalf("ListLearningEntries: %v", err)
	}
	if got[0].Status != StatusMastered || !got[0].LastAttempt.Equal(later) {
		t.Errorf("after update: %+v", got[0])
	}
}

func TestListUsersWithLearningEntries(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "u1", "alice")
	seedUser(t, s, "u2", "bob")

	err := s.AppendLearningEntry(LearningEntry{
		ID: "l1", UserID: "u1", Question: "q", Topic: "Basics", LastAttempt: time.Now(),
	})
	if err != nil {
		t.Fatalf("AppendLearningEntry: %v", err)
	}

	got, err := s.ListUsersWithLearningEntries()
	if err != nil {
		t.Fatalf("ListUsersWithLearningEntries: %v", err)
	}
	if len(got) != 1 || got[0].ID != "u1" {
		t.Errorf("active users = %+v, want just u1", got)
	}
}

func TestAppState_SetOverwrites(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetAppState("reminder_last_sent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key = %v, want ErrNotFound", err)
	}

	if err := s.SetAppState("reminder_last_sent", "2026-08-28"); err != nil {
		t.Fatalf("SetAppState: %v", err)
	}
	if err := s.SetAppState("reminder_last_sent", "2026-08-29"); err != nil {
		t.Fatalf("SetAppState overwrite: %v", err)
	}

	got, err := s.GetAppState("reminder_last_sent")
	if err != nil {
		t.Fatalf("GetAppState: %v", err)
	}
	if got != "2026-08-29" {
		t.Errorf("value = %q, want 2026-08-29", got)
	}
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	seedUser(t, s, "u1", "alice")
	s.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s2.Close()
	if _, err := s2.GetUserByUsername("alice"); err != nil {
		t.Errorf("data lost across reopen: %v", err)
	}
}
