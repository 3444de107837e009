package api

import (
	"encoding/json"
	"net/http"

	"github.com/solenko/tutord/internal/storage"
	"github.com/solenko/tutord/internal/tutor"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func handleTutorChat(svc *tutor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		res, err := svc.Chat(r.Context(), requestUser(r).ID, req.SessionID, req.Message)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, map[string]string{
			"session_id": res.SessionID,
			"response":   res.Reply,
			"topic":      res.Topic,
		})
	}
}

func handleTutorHistory(svc *tutor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.History(requestUser(r).ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if entries == nil {
			entries = []storage.LearningEntry{}
		}
		writeJSON(w, entries)
	}
}

func handleTutorProgress(svc *tutor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.ProgressSummary(requestUser(r).ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if summary == nil {
			summary = []tutor.TopicProgress{}
		}
		writeJSON(w, summary)
	}
}

func handleTutorNextTopics(svc *tutor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topics, err := svc.NextTopics(requestUser(r).ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		if topics == nil {
			writeJSON(w, map[string]any{
				"topics":  []string{},
				"message": "You've reached the end of the roadmap. Revise what you've mastered.",
			})
			return
		}
		writeJSON(w, map[string]any{"topics": topics})
	}
}

type masteredRequest struct {
	Question string `json:"question"`
}

func handleTutorMastered(svc *tutor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req masteredRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if err := svc.MarkMastered(requestUser(r).ID, req.Question); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "mastered"})
	}
}

func handleTutorRevisionPlan(svc *tutor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := svc.RevisionPlan(r.Context(), requestUser(r).ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, map[string]string{"revision_plan": plan})
	}
}
