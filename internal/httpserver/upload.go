package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kmalykhin/storefront/internal/logging"
	mwauth "github.com/kmalykhin/storefront/internal/middleware/auth"
	"github.com/kmalykhin/storefront/internal/service"
)

type UploadHTTP struct {
	Svc *service.UploadService
}

func (h *UploadHTTP) StartUpload(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "upload.start")

	var req StartUploadRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("start_upload_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	session, err := h.Svc.StartUpload(ctx, req.Name, req.ContentType, req.TotalChunks, mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "start_upload_error", err)
	}
	return c.JSON(http.StatusCreated, session)
}

func (h *UploadHTTP) PutChunk(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "upload.chunk")

	uploadID := c.Param("id")
	index, err := strconv.Atoi(c.QueryParam("index"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid chunk index"})
	}

	session, err := h.Svc.PutChunk(ctx, uploadID, index, c.Request().Body, mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "put_chunk_error", err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *UploadHTTP) CompleteUpload(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "upload.complete")

	file, err := h.Svc.CompleteUpload(ctx, c.Param("id"), mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "complete_upload_error", err)
	}
	return c.JSON(http.StatusCreated, file)
}

func (h *UploadHTTP) Download(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "upload.download")

	fileID, err := uintPathParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid file id"})
	}

	result, err := h.Svc.Download(ctx, fileID)
	if err != nil {
		return respondError(c, l, "download_error", err)
	}

	switch r := result.(type) {
	case service.BytesResult:
		return c.Blob(http.StatusOK, r.Meta.ContentType, r.Data)
	case service.StreamResult:
		defer r.Reader.Close()
		return c.Stream(http.StatusOK, r.Meta.ContentType, r.Reader)
	default:
		l.Error("download_error", "error", "unknown result shape")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
