package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-instar/internal/device"
)

// DeviceResponse is the JSON view of a device.
type DeviceResponse struct {
	Type              device.Type         `json:"type"`
	ID                string              `json:"id"`
	Key               string              `json:"key"`
	DisplayName       string              `json:"display_name"`
	CustomIdentifiers map[string]string   `json:"custom_identifiers,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	Capabilities      []CapabilityView    `json:"capabilities"`
	Motion            *device.MotionState `json:"motion,omitempty"`
}

// CapabilityView describes one capability of a device.
type CapabilityView struct {
	Property string `json:"property"`
	Key      string `json:"key"`
	Label    string `json:"label"`
}

// UpdateDeviceRequest is the body of PATCH /devices/{type}/{id}.
type UpdateDeviceRequest struct {
	DisplayName *string `json:"display_name"`
}

func toDeviceResponse(d *device.Device) DeviceResponse {
	id := d.ID()
	resp := DeviceResponse{
		Type:              id.Type,
		ID:                id.ID,
		Key:               id.String(),
		DisplayName:       d.DisplayName(),
		CustomIdentifiers: d.CustomIdentifiers(),
		CreatedAt:         d.CreatedAt(),
	}

	caps := d.Capabilities()
	resp.Capabilities = make([]CapabilityView, 0, len(caps))
	for _, c := range caps {
		resp.Capabilities = append(resp.Capabilities, CapabilityView{
			Property: c.PropertyID().String(),
			Key:      c.PropertyID().Key,
			Label:    c.Label(),
		})
	}

	if sensor, ok := d.Motion(); ok {
		if state, set := sensor.State(); set {
			resp.Motion = &state
		}
	}
	return resp
}

// deviceIDParam reads {type} and {id} from the route.
func deviceIDParam(r *http.Request) device.DeviceID {
	return device.DeviceID{
		Type: device.Type(chi.URLParam(r, "type")),
		ID:   chi.URLParam(r, "id"),
	}
}

// handleListDevices returns all known devices.
//
// Query parameters:
//   - type: filter by device type
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	typeFilter := device.Type(r.URL.Query().Get("type"))

	devices := s.registry.List()
	out := make([]DeviceResponse, 0, len(devices))
	for _, d := range devices {
		if typeFilter != "" && d.ID().Type != typeFilter {
			continue
		}
		out = append(out, toDeviceResponse(d))
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": out, "count": len(out)})
}

// handleGetDevice returns a single device with its motion state.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.registry.Get(deviceIDParam(r))
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, toDeviceResponse(d))
}

// handleUpdateDevice renames a device.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req UpdateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DisplayName == nil {
		writeBadRequest(w, "display_name is required")
		return
	}

	d, err := s.registry.Rename(r.Context(), deviceIDParam(r), *req.DisplayName)
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
		return
	case errors.Is(err, device.ErrInvalidName):
		writeValidationError(w, err.Error())
		return
	case err != nil:
		s.logger.Error("renaming device failed", "error", err)
		writeInternalError(w, "failed to update device")
		return
	}

	writeJSON(w, http.StatusOK, toDeviceResponse(d))
}

// handleMotionHistory returns recent motion readings of a device.
//
// Query parameters:
//   - limit: number of entries (default 50, max 200)
func (s *Server) handleMotionHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "motion history is not enabled")
		return
	}

	id := deviceIDParam(r)
	if _, err := s.registry.Get(id); err != nil {
		writeNotFound(w, "device not found")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.GetHistory(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("reading motion history failed", "device", id.String(), "error", err)
		writeInternalError(w, "failed to read motion history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device":  id.String(),
		"history": entries,
		"count":   len(entries),
	})
}

// handleListDeviceTypes returns the device types the bridge can create.
func (s *Server) handleListDeviceTypes(w http.ResponseWriter, _ *http.Request) {
	types := []device.Type{}
	if s.types != nil {
		types = s.types.SupportedTypes()
	}
	writeJSON(w, http.StatusOK, map[string]any{"types": types, "count": len(types)})
}

// handleBridgeStats returns the Instar subscriber's message counters.
func (s *Server) handleBridgeStats(w http.ResponseWriter, _ *http.Request) {
	if s.bridge == nil {
		writeUnavailable(w, "instar bridge is not running")
		return
	}
	writeJSON(w, http.StatusOK, s.bridge.Stats())
}
