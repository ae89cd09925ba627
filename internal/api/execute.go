package api

import (
	"encoding/json"
	"net/http"

	"github.com/zohaib704-ai/Code-sphere/internal/model"
)

type executeResponse struct {
	Success  bool            `json:"success"`
	Executed bool            `json:"executed"`
	Language string          `json:"language"`
	Version  string          `json:"version"`
	Run      json.RawMessage `json:"run,omitempty"`
	Compile  json.RawMessage `json:"compile,omitempty"`
}

// batchRequest is the JSON body for POST /api/execute/batch.
type batchRequest struct {
	Executions []model.ExecutionRequest `json:"executions"`
}

type batchResponse struct {
	Success bool                    `json:"success"`
	BatchID string                  `json:"batch_id"`
	Results []model.BatchItemResult `json:"results"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req model.ExecutionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	res, err := s.executor.Execute(r.Context(), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, executeResponse{
		Success:  true,
		Executed: true,
		Language: res.Language,
		Version:  res.Version,
		Run:      res.Run,
		Compile:  res.Compile,
	})
}

func (s *Server) handleExecuteBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	batch, err := s.executor.ExecuteBatch(r.Context(), req.Executions)
	if err != nil {
		s.logger.Error("execute batch", "error", err)
		s.writeFailure(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, batchResponse{
		Success: true,
		BatchID: batch.ID,
		Results: batch.Results,
	})
}
