package controllers

import (
	"github.com/tripfetch/tripfetch/internal/domain"
	"github.com/tripfetch/tripfetch/internal/engine"
)

type StatusResponse struct {
	RunID string             `json:"run_id"`
	Items []engine.ItemState `json:"items"`
}

type RunsResponse struct {
	Runs []domain.RunRecord `json:"runs"`
}
