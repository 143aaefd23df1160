package api

import (
	"log/slog"
	"net/http"

	"github.com/callgreet/callgreet/internal/database"
)

// settingsResponse is the shape returned by GET /settings.
type settingsResponse struct {
	Pickup    pickupSettingsResponse    `json:"pickup"`
	Routing   routingSettingsResponse   `json:"routing"`
	Retention retentionSettingsResponse `json:"retention"`
	Notify    notifySettingsResponse    `json:"notify"`
	Language  languageSettingsResponse  `json:"language"`
}

type pickupSettingsResponse struct {
	Mode             string `json:"mode"`  // "immediate" or "after_rings"
	Rings            string `json:"rings"` // ring count before assisted takeover
	MachineDetection string `json:"machine_detection"`
}

type routingSettingsResponse struct {
	HumanLine  string `json:"human_line"`
	FailPolicy string `json:"fail_policy"` // "open" or "closed"
}

type retentionSettingsResponse struct {
	Days string `json:"days"` // "0" or empty disables the purge
}

type notifySettingsResponse struct {
	Email string `json:"email"`
}

type languageSettingsResponse struct {
	Default string `json:"default"`
}

// settingsRequest is the shape accepted by PUT /settings. Nil sections
// are left unchanged.
type settingsRequest struct {
	Pickup    *pickupSettingsResponse    `json:"pickup"`
	Routing   *routingSettingsResponse   `json:"routing"`
	Retention *retentionSettingsResponse `json:"retention"`
	Notify    *notifySettingsResponse    `json:"notify"`
	Language  *languageSettingsResponse  `json:"language"`
}

// handleGetSettings returns all runtime configuration.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	get := func(key string) string {
		val, _ := s.sysConfig.Get(ctx, key)
		return val
	}

	resp := settingsResponse{
		Pickup: pickupSettingsResponse{
			Mode:             get(database.KeyPickupMode),
			Rings:            get(database.KeyPickupRings),
			MachineDetection: get(database.KeyMachineDetect),
		},
		Routing: routingSettingsResponse{
			HumanLine:  get(database.KeyHumanLine),
			FailPolicy: get(database.KeyFailPolicy),
		},
		Retention: retentionSettingsResponse{
			Days: get(database.KeyRetentionDays),
		},
		Notify: notifySettingsResponse{
			Email: get(database.KeyNotifyRecipient),
		},
		Language: languageSettingsResponse{
			Default: get(database.KeyDefaultLanguage),
		},
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleUpdateSettings validates and saves runtime configuration. Only
// the sections present in the request are touched.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if errMsg := validateSettings(&req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	ctx := r.Context()

	save := func(pairs map[string]string) error {
		for key, value := range pairs {
			if err := s.sysConfig.Set(ctx, key, value); err != nil {
				return err
			}
		}
		return nil
	}

	pairs := make(map[string]string)
	if req.Pickup != nil {
		pairs[database.KeyPickupMode] = req.Pickup.Mode
		pairs[database.KeyPickupRings] = req.Pickup.Rings
		pairs[database.KeyMachineDetect] = req.Pickup.MachineDetection
	}
	if req.Routing != nil {
		pairs[database.KeyHumanLine] = req.Routing.HumanLine
		pairs[database.KeyFailPolicy] = req.Routing.FailPolicy
	}
	if req.Retention != nil {
		pairs[database.KeyRetentionDays] = req.Retention.Days
	}
	if req.Notify != nil {
		pairs[database.KeyNotifyRecipient] = req.Notify.Email
	}
	if req.Language != nil {
		pairs[database.KeyDefaultLanguage] = req.Language.Default
	}

	if err := save(pairs); err != nil {
		slog.Error("failed to save settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("settings updated", "keys", len(pairs))
	s.handleGetSettings(w, r)
}
