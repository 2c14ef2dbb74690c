package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"photocatalog/internal/catalogerr"
	"photocatalog/internal/coordinator"
	"photocatalog/internal/model"
	"photocatalog/internal/utils"
)

type handlers struct {
	engine coordinator.Engine
}

// httpStatusFor maps a classified catalog error to the HTTP status a
// caller should see, mirroring the teacher's per-error-code switch in
// its own handlers package.
func httpStatusFor(err error) int {
	switch catalogerr.CodeOf(err) {
	case catalogerr.FolderNotFound:
		return http.StatusNotFound
	case catalogerr.PermissionDenied:
		return http.StatusForbidden
	case catalogerr.ScanCancelled:
		return http.StatusConflict
	case catalogerr.StorageFull:
		return http.StatusInsufficientStorage
	case catalogerr.DatabaseError, catalogerr.ThumbnailError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) respondErr(c *gin.Context, err error) {
	utils.SendError(c, httpStatusFor(err), err.Error(), err)
}

func priorityFromQuery(c *gin.Context) model.Priority {
	switch c.DefaultQuery("priority", "VISIBLE") {
	case "BACKGROUND":
		return model.BACKGROUND
	case "PRELOAD":
		return model.PRELOAD
	case "NEAR_VISIBLE":
		return model.NEAR_VISIBLE
	default:
		return model.VISIBLE
	}
}

func (h *handlers) listRecentFolders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	folders, err := h.engine.ListRecentFolders(c.Request.Context(), limit)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	utils.SendSuccess(c, "recent folders", folders)
}

func (h *handlers) selectFolder(c *gin.Context) {
	folder, err := h.engine.SelectFolder(c.Request.Context())
	if err != nil {
		h.respondErr(c, err)
		return
	}
	if folder == nil {
		utils.SendSuccess(c, "folder selection cancelled", nil)
		return
	}
	utils.SendSuccess(c, "folder selected", folder)
}

func (h *handlers) loadFolderByKey(c *gin.Context) {
	key := c.Param("key")
	ok, err := h.engine.LoadFolderByKey(c.Request.Context(), key)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	if !ok {
		utils.SendError(c, http.StatusForbidden, "folder is not accessible, re-select it", nil)
		return
	}
	utils.SendSuccess(c, "folder loaded", nil)
}

func (h *handlers) scan(c *gin.Context) {
	recursive := true
	if v := c.Query("recursive"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			utils.SendValidationError(c, err)
			return
		}
		recursive = parsed
	}
	if err := h.engine.Scan(c.Request.Context(), recursive); err != nil {
		h.respondErr(c, err)
		return
	}
	utils.SendSuccess(c, "scan complete", nil)
}

func (h *handlers) cancelScan(c *gin.Context) {
	h.engine.CancelScan()
	utils.SendSuccess(c, "scan cancelled", nil)
}

func (h *handlers) listAssets(c *gin.Context) {
	utils.SendSuccess(c, "assets", h.engine.ListAssets())
}

func (h *handlers) getAsset(c *gin.Context) {
	id := c.Param("id")
	asset, ok := h.engine.GetAsset(id)
	if !ok {
		utils.SendError(c, http.StatusNotFound, "asset not found", nil)
		return
	}
	utils.SendSuccess(c, "asset", asset)
}

func (h *handlers) flagCounts(c *gin.Context) {
	counts, err := h.engine.FlagCounts(c.Request.Context())
	if err != nil {
		h.respondErr(c, err)
		return
	}
	utils.SendSuccess(c, "flag counts", counts)
}

type flagRequest struct {
	Flag model.Flag `json:"flag" binding:"required"`
}

func (h *handlers) setFlag(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err)
		return
	}
	id := c.Param("id")
	if err := h.engine.SetFlag(c.Request.Context(), id, req.Flag); err != nil {
		h.respondErr(c, err)
		return
	}
	utils.SendSuccess(c, "flag set", nil)
}

type flagBatchRequest struct {
	IDs  []string   `json:"ids" binding:"required"`
	Flag model.Flag `json:"flag" binding:"required"`
}

func (h *handlers) setFlagBatch(c *gin.Context) {
	var req flagBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err)
		return
	}
	if err := h.engine.SetFlagBatch(c.Request.Context(), req.IDs, req.Flag); err != nil {
		h.respondErr(c, err)
		return
	}
	utils.SendSuccess(c, "flags set", nil)
}

func (h *handlers) requestThumbnail(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.RequestThumbnail(id, priorityFromQuery(c)); err != nil {
		h.respondErr(c, err)
		return
	}
	utils.SendSuccess(c, "thumbnail requested", nil)
}

func (h *handlers) requestPreview(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.RequestPreview(id, priorityFromQuery(c)); err != nil {
		h.respondErr(c, err)
		return
	}
	utils.SendSuccess(c, "preview requested", nil)
}

func (h *handlers) updateThumbnailPriority(c *gin.Context) {
	h.engine.UpdateThumbnailPriority(c.Param("id"), priorityFromQuery(c))
	utils.SendSuccess(c, "priority updated", nil)
}

func (h *handlers) updatePreviewPriority(c *gin.Context) {
	h.engine.UpdatePreviewPriority(c.Param("id"), priorityFromQuery(c))
	utils.SendSuccess(c, "priority updated", nil)
}

func (h *handlers) cancelThumbnail(c *gin.Context) {
	h.engine.CancelThumbnail(c.Param("id"))
	utils.SendSuccess(c, "thumbnail request cancelled", nil)
}

func (h *handlers) cancelPreview(c *gin.Context) {
	h.engine.CancelPreview(c.Param("id"))
	utils.SendSuccess(c, "preview request cancelled", nil)
}

func (h *handlers) regenerateThumbnail(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.SendValidationError(c, err)
		return
	}
	if err := h.engine.RegenerateThumbnail(c.Param("id"), body, priorityFromQuery(c)); err != nil {
		h.respondErr(c, err)
		return
	}
	utils.SendSuccess(c, "thumbnail regeneration requested", nil)
}

func (h *handlers) regeneratePreview(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.SendValidationError(c, err)
		return
	}
	if err := h.engine.RegeneratePreview(c.Param("id"), body, priorityFromQuery(c)); err != nil {
		h.respondErr(c, err)
		return
	}
	utils.SendSuccess(c, "preview regeneration requested", nil)
}

func (h *handlers) getEditState(c *gin.Context) {
	rec, err := h.engine.LoadEditState(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondErr(c, err)
		return
	}
	if rec == nil {
		utils.SendSuccess(c, "no edit state saved", nil)
		return
	}
	utils.SendSuccess(c, "edit state", rec)
}

type editStateRequest struct {
	SchemaVersion int             `json:"schema_version" binding:"required"`
	Payload       json.RawMessage `json:"payload" binding:"required"`
}

func (h *handlers) saveEditState(c *gin.Context) {
	var req editStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err)
		return
	}
	if err := h.engine.SaveEditState(c.Request.Context(), c.Param("id"), req.SchemaVersion, req.Payload); err != nil {
		h.respondErr(c, err)
		return
	}
	utils.SendSuccess(c, "edit state saved", nil)
}

func (h *handlers) destroy(c *gin.Context) {
	h.engine.Destroy()
	utils.SendSuccess(c, "catalog destroyed", nil)
}
