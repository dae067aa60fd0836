package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Imdavyking/openRoots/metrics"
	"github.com/Imdavyking/openRoots/store"
)

// maxUploadSize bounds the multipart body of an upload request.
const maxUploadSize = 50 << 20 // 50 MiB

// Handler serves the marketplace API.
type Handler struct {
	log      *slog.Logger
	groups   store.GroupStore
	ipAccess store.IPAccessStore
	datasets store.DatasetStore
	sessions *SessionService
	uploader *Uploader
}

// NewHandler wires the API surface.
func NewHandler(
	groups store.GroupStore,
	ipAccess store.IPAccessStore,
	datasets store.DatasetStore,
	sessions *SessionService,
	uploader *Uploader,
	log *slog.Logger,
) *Handler {
	return &Handler{
		log:      log,
		groups:   groups,
		ipAccess: ipAccess,
		datasets: datasets,
		sessions: sessions,
		uploader: uploader,
	}
}

// RegisterRoutes registers the API routes with the server's router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/group/add", h.addGroupMember)
	r.Get("/group/{groupId}", h.groupMembers)
	r.Get("/group/{groupId}/has/{userAddress}", h.groupHasAccess)

	r.Post("/ip/grant", h.grantIPAccess)
	r.Get("/ip/has/{ipId}/{userAddress}", h.ipHasAccess)

	r.Get("/user-group", h.userGroup)
	r.Post("/user-group", h.saveUserGroup)

	r.Post("/dataset", h.saveDataset)
	r.Get("/datasets", h.listDatasets)

	r.Post("/lit-session", h.litSession)
	r.Post("/upload-csv", h.uploadCSV)
	r.Post("/upload-json", h.uploadJSON)
}

type groupAddRequest struct {
	GroupID     string `json:"groupId"`
	UserAddress string `json:"userAddress"`
}

func (h *Handler) addGroupMember(w http.ResponseWriter, r *http.Request) {
	var req groupAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.GroupID == "" || req.UserAddress == "" {
		writeError(w, h.log, errValidation("groupId and userAddress are required"))
		return
	}

	group, err := h.groups.AddMember(r.Context(), req.GroupID, req.UserAddress)
	if err != nil {
		writeError(w, h.log, errUpstream("Failed to add user to group", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User added to group",
		"data":    group,
	})
}

func (h *Handler) groupMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.groups.ListMembers(r.Context(), chi.URLParam(r, "groupId"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, h.log, errNotFound("Group not found"))
		return
	}
	if err != nil {
		writeError(w, h.log, errUpstream("Failed to fetch group members", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"userAddresses": members})
}

func (h *Handler) groupHasAccess(w http.ResponseWriter, r *http.Request) {
	ok, err := h.groups.IsMember(r.Context(),
		chi.URLParam(r, "groupId"), chi.URLParam(r, "userAddress"))
	if err != nil {
		writeError(w, h.log, errUpstream("Failed to check access", err))
		return
	}
	writeAccessCheck(w, ok)
}

type ipGrantRequest struct {
	IPID        string `json:"ipId"`
	UserAddress string `json:"userAddress"`
}

func (h *Handler) grantIPAccess(w http.ResponseWriter, r *http.Request) {
	var req ipGrantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.IPID == "" || req.UserAddress == "" {
		writeError(w, h.log, errValidation("ipId and userAddress are required"))
		return
	}

	rec, err := h.ipAccess.Grant(r.Context(), req.IPID, req.UserAddress)
	if err != nil {
		writeError(w, h.log, errUpstream("Failed to grant access", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User access granted",
		"data":    rec,
	})
}

func (h *Handler) ipHasAccess(w http.ResponseWriter, r *http.Request) {
	ok, err := h.ipAccess.Allowed(r.Context(),
		chi.URLParam(r, "ipId"), chi.URLParam(r, "userAddress"))
	if err != nil {
		writeError(w, h.log, errUpstream("Failed to check access", err))
		return
	}
	writeAccessCheck(w, ok)
}

func (h *Handler) userGroup(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, h.log, errValidation("Invalid address"))
		return
	}

	groupID, err := h.groups.GroupForUser(r.Context(), address)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"groupId": nil})
		return
	}
	if err != nil {
		writeError(w, h.log, errUpstream("Internal Server Error", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groupId": groupID})
}

type userGroupSaveRequest struct {
	Address string `json:"address"`
	GroupID string `json:"groupId"`
}

func (h *Handler) saveUserGroup(w http.ResponseWriter, r *http.Request) {
	var req userGroupSaveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.Address == "" || req.GroupID == "" {
		writeError(w, h.log, errValidation("Address and groupId are required"))
		return
	}

	if err := h.groups.SetGroupForUser(r.Context(), req.Address, req.GroupID); err != nil {
		writeError(w, h.log, errUpstream("Internal Server Error", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) saveDataset(w http.ResponseWriter, r *http.Request) {
	var d store.Dataset
	if err := decodeJSON(r, &d); err != nil {
		writeError(w, h.log, err)
		return
	}
	if missing := missingDatasetField(&d); missing != "" {
		writeError(w, h.log, errValidation(missing+" is required"))
		return
	}

	if err := h.datasets.Save(r.Context(), &d); err != nil {
		writeError(w, h.log, errUpstream("Failed to save dataset", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Dataset saved",
		"data":    d,
	})
}

func (h *Handler) listDatasets(w http.ResponseWriter, r *http.Request) {
	all, err := h.datasets.List(r.Context())
	if err != nil {
		writeError(w, h.log, errUpstream("Failed to fetch datasets", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": all})
}

type sessionRequest struct {
	Signature string `json:"signature"`
	// Message carries the dataset identifier the claim was signed over.
	Message string `json:"message"`
}

func (h *Handler) litSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.Signature == "" || req.Message == "" {
		writeError(w, h.log, errValidation("signature and message are required"))
		return
	}

	authSig, err := h.sessions.Authorize(r.Context(), req.Signature, req.Message)
	if err != nil {
		metrics.StatusCounter("openroots_session_total", "denied").Inc()
		writeError(w, h.log, err)
		return
	}

	metrics.StatusCounter("openroots_session_total", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"message":                   "User has access to this dataset",
		"capacityDelegationAuthSig": authSig,
	})
}

func (h *Handler) uploadCSV(w http.ResponseWriter, r *http.Request) {
	socketID := r.URL.Query().Get("socketId")
	if socketID == "" {
		writeError(w, h.log, errValidation("Socket ID is required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, h.log, errValidation("CSV file is required"))
		return
	}
	file, header, err := r.FormFile("csvFile")
	if err != nil {
		writeError(w, h.log, errValidation("CSV file is required"))
		return
	}
	defer file.Close()

	if strings.ToLower(path.Ext(header.Filename)) != ".csv" {
		writeError(w, h.log, errValidation("Only CSV files are allowed"))
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, h.log, errUpstream("Failed to read uploaded file", err))
		return
	}

	var extraBlocks uint64
	if raw := r.URL.Query().Get("extraBlocks"); raw != "" {
		extraBlocks, err = strconv.ParseUint(raw, 10, 32)
		if err != nil {
			writeError(w, h.log, errValidation("extraBlocks must be a non-negative integer"))
			return
		}
	}

	result, err := h.uploader.Upload(r.Context(), &UploadRequest{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
		SocketID:    socketID,
		Encrypted:   r.URL.Query().Get("isEncrypted") == "true",
		ExtraBlocks: extraBlocks,
	})
	if err != nil {
		metrics.StatusCounter("openroots_upload_total", "error").Inc()
		writeError(w, h.log, err)
		return
	}

	metrics.StatusCounter("openroots_upload_total", "ok").Inc()
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) uploadJSON(w http.ResponseWriter, r *http.Request) {
	socketID := r.URL.Query().Get("socketId")
	if socketID == "" {
		writeError(w, h.log, errValidation("Socket ID is required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	doc, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, h.log, errValidation("JSON data is required"))
		return
	}
	defer r.Body.Close()

	if len(doc) == 0 || !json.Valid(doc) {
		writeError(w, h.log, errValidation("JSON data is required"))
		return
	}

	result, err := h.uploader.UploadJSON(r.Context(), socketID, doc)
	if err != nil {
		metrics.StatusCounter("openroots_upload_total", "error").Inc()
		writeError(w, h.log, err)
		return
	}

	metrics.StatusCounter("openroots_upload_total", "ok").Inc()
	writeJSON(w, http.StatusOK, result)
}

// writeAccessCheck reports an allow/deny decision: 200 when allowed, 403
// with the same body shape when denied.
func writeAccessCheck(w http.ResponseWriter, allowed bool) {
	status := http.StatusOK
	if !allowed {
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]bool{"hasAccess": allowed})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &Error{Kind: KindValidation, Message: "Invalid request body", Err: err}
	}
	return nil
}

func missingDatasetField(d *store.Dataset) string {
	switch {
	case d.Creator == "":
		return "creator"
	case d.Address == "":
		return "address"
	case d.ContentID == "":
		return "cid"
	case d.CreatedAt == 0:
		return "createdAt"
	case d.Category == "":
		return "category"
	case d.Name == "":
		return "name"
	case d.Description == "":
		return "description"
	case d.Preview == "":
		return "preview"
	case d.GroupID == "":
		return "groupId"
	case d.IPID == "":
		return "ipId"
	default:
		return ""
	}
}
