package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/dispatcher"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/model"
)

// The expected JSON request body for submitting a research job.
type researchRequest struct {
	Topic string `json:"topic"`
}

type statusResponse struct {
	JobID        string    `json:"job_id"`
	Topic        string    `json:"topic"`
	Status       string    `json:"status"`
	CurrentStage string    `json:"current_stage,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type errorResponse struct {
	Error string          `json:"error"`
	JobID string          `json:"job_id,omitempty"`
	Cause *model.JobError `json:"cause,omitempty"`
}

func submitHandler(disp *dispatcher.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req researchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		id, err := disp.Submit(r.Context(), req.Topic)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to submit job"})
			return
		}

		writeJSON(w, http.StatusAccepted, statusResponse{
			JobID:     id,
			Topic:     req.Topic,
			Status:    string(model.JobStateQueued),
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		})
	}
}

func statusHandler(disp *dispatcher.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobID")
		job, err := disp.Status(r.Context(), id)
		if err != nil {
			writeNotFound(w, id, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{
			JobID:        job.ID,
			Topic:        job.Topic,
			Status:       string(job.State),
			CurrentStage: job.CurrentStage,
			CreatedAt:    job.CreatedAt,
			UpdatedAt:    job.UpdatedAt,
		})
	}
}

func resultHandler(disp *dispatcher.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobID")
		report, jobErr, err := disp.Result(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrResultNotReady) {
				writeJSON(w, http.StatusConflict, errorResponse{
					Error: "job is not finished yet; poll the status endpoint",
					JobID: id,
				})
				return
			}
			writeNotFound(w, id, err)
			return
		}
		if jobErr != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error: "job failed",
				JobID: id,
				Cause: jobErr,
			})
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func cancelHandler(disp *dispatcher.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobID")
		err := disp.Cancel(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrTerminalState) {
				writeJSON(w, http.StatusConflict, errorResponse{
					Error: "job already finished",
					JobID: id,
				})
				return
			}
			writeNotFound(w, id, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id, "status": "cancelling"})
	}
}

// jobsListHandler serves the admin overview of recent jobs.
func jobsListHandler(disp *dispatcher.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		jobs, err := disp.List(r.Context(), limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list jobs"})
			return
		}
		resp := struct {
			Data  []*model.Job `json:"data"`
			Total int          `json:"total"`
		}{Data: jobs, Total: len(jobs)}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeNotFound(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, domain.ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found", JobID: id})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
