package handler

import (
	"net/http"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func Health(w http.ResponseWriter, r *http.Request) {
	manifest := DefaultManifest()
	JSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: manifest.ID,
		Version: manifest.Version,
	})
}
