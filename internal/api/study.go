package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/solenko/tutord/internal/storage"
	"github.com/solenko/tutord/internal/studygen"
)

func handleCreateCurriculum(svc *studygen.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required")
			return
		}
		defer file.Close()

		title := r.FormValue("title")
		if title == "" {
			title = strings.TrimSuffix(header.Filename, ".pdf")
		}

		c, err := svc.CreateCurriculum(r.Context(), requestUser(r).ID, title, file, header.Size)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSONStatus(w, http.StatusCreated, map[string]any{
			"id":            c.ID,
			"title":         c.Title,
			"content_chars": len(c.ContentText),
		})
	}
}

type studyPlanRequest struct {
	CurriculumID string `json:"curriculum_id"`
	Duration     string `json:"duration"`
}

func handleGenerateStudyPlan(svc *studygen.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req studyPlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.CurriculumID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "curriculum_id is required")
			return
		}

		plan, err := svc.GenerateStudyPlan(r.Context(), requestUser(r).ID, req.CurriculumID, req.Duration)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, map[string]any{"study_plan": json.RawMessage(plan)})
	}
}

func handleGenerateContent(svc *studygen.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required")
			return
		}
		defer file.Close()

		choice := r.FormValue("choice")
		count, _ := strconv.Atoi(r.FormValue("count"))
		topic := r.FormValue("topic")
		if topic == "" {
			topic = strings.TrimSuffix(header.Filename, ".pdf")
		}

		items, err := svc.GenerateFromUpload(r.Context(), requestUser(r).ID, topic, choice, file, header.Size, count)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, map[string]any{"choice": choice, "items": items})
	}
}

func handleListStudyPlans(svc *studygen.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		curricula, err := svc.ListCurricula(requestUser(r).ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if curricula == nil {
			curricula = []storage.Curriculum{}
		}

		type planItem struct {
			CurriculumID string          `json:"curriculum_id"`
			Title        string          `json:"title"`
			Duration     string          `json:"duration,omitempty"`
			StudyPlan    json.RawMessage `json:"study_plan,omitempty"`
		}
		out := make([]planItem, 0, len(curricula))
		for _, c := range curricula {
			out = append(out, planItem{
				CurriculumID: c.ID,
				Title:        c.Title,
				Duration:     c.Duration,
				StudyPlan:    c.StudyPlan,
			})
		}
		writeJSON(w, out)
	}
}

func handleListFlashcards(svc *studygen.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := svc.ListFlashcards(requestUser(r).ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if cards == nil {
			cards = []storage.Flashcard{}
		}
		writeJSON(w, cards)
	}
}

func handleListWorksheets(svc *studygen.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sheets, err := svc.ListWorksheets(requestUser(r).ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if sheets == nil {
			sheets = []storage.Worksheet{}
		}
		writeJSON(w, sheets)
	}
}
