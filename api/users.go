package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/warp/inventory-engine/accounts"
	"github.com/warp/inventory-engine/export"
	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// USER HANDLERS
// =============================================================================

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Accounts.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]UserDTO, len(users))
	for i, u := range users {
		out[i] = toUserDTO(u)
	}
	writeOK(w, out)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decode(w, r, &req) {
		return
	}
	role := inventory.Role(req.Role)
	if role == "" {
		role = inventory.RoleUser
	}
	id, err := h.Accounts.AddUser(r.Context(), actor(r), accounts.NewUser{
		Username:  req.Username,
		Password:  req.Password,
		Role:      role,
		AvatarRef: req.AvatarRef,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCreated(w, map[string]int64{"id": int64(id)})
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !decode(w, r, &req) {
		return
	}
	u := accounts.UserUpdate{Username: req.Username, Password: req.Password, AvatarRef: req.AvatarRef}
	if req.Role != nil {
		role := inventory.Role(*req.Role)
		u.Role = &role
	}
	if err := h.Accounts.UpdateUser(r.Context(), actor(r), inventory.UserID(id), u); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, map[string]int64{"id": id})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Accounts.DeleteUser(r.Context(), actor(r), inventory.UserID(id)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, map[string]int64{"deleted": id})
}

// Login checks credentials and returns the user. The caller owns sessions.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.Accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, toUserDTO(u))
}

// =============================================================================
// USER SPREADSHEETS
// =============================================================================

// ImportUsers reads the "file" part of a multipart upload.
func (h *Handler) ImportUsers(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, _, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file", "missing xlsx upload")
		return
	}
	defer file.Close()

	rows, bad, err := export.ReadUsers(file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Accounts.ImportUsers(r.Context(), actor(r), rows)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res.Failed = append(bad, res.Failed...)
	writeOK(w, toImportDTO(res))
}

// ExportUsers writes all users, or only those listed in ?ids=1,2.
func (h *Handler) ExportUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Accounts.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if ids := queryList(r, "ids"); len(ids) > 0 {
		keep := make(map[inventory.UserID]bool, len(ids))
		for _, raw := range ids {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				badRequest(w, "ids", "must be comma separated integers")
				return
			}
			keep[inventory.UserID(n)] = true
		}
		filtered := users[:0]
		for _, u := range users {
			if keep[u.ID] {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}
	var buf bytes.Buffer
	if err := export.WriteUsers(&buf, users, h.Inventory.Location()); err != nil {
		h.writeError(w, r, err)
		return
	}
	attachment(w, export.ContentType, "users.xlsx")
	w.Write(buf.Bytes())
}
