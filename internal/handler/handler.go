package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"checkin/internal/attendance"
	"checkin/internal/cloudinary"
	"checkin/internal/credential"
	"checkin/internal/export"
	"checkin/internal/roster"
)

// maxRosterBytes bounds a roster upload.
const maxRosterBytes = 8 << 20

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Options carries the optional collaborators of a Handler.
type Options struct {
	Cloud      *cloudinary.Client // nil if Cloudinary not configured
	Location   *time.Location
	TimeLayout string
	Now        func() time.Time
	Health     map[string]HealthCheck
}

type Handler struct {
	svc      *attendance.Service
	codec    *credential.Codec
	renderer *credential.Renderer
	cloud    *cloudinary.Client
	loc      *time.Location
	layout   string
	now      func() time.Time
	health   map[string]HealthCheck
}

func New(svc *attendance.Service, codec *credential.Codec, renderer *credential.Renderer, opts Options) *Handler {
	h := &Handler{
		svc:      svc,
		codec:    codec,
		renderer: renderer,
		cloud:    opts.Cloud,
		loc:      opts.Location,
		layout:   opts.TimeLayout,
		now:      opts.Now,
		health:   opts.Health,
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	if h.layout == "" {
		h.layout = "02/01/2006, 15:04:05"
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Routes mounts the API. limit guards the check-in routes and may be nil.
func (h *Handler) Routes(r gin.IRouter, limit gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	{
		v1.POST("/roster", h.UploadRoster)
		v1.GET("/roster", h.GetRoster)
		v1.GET("/guests", h.SearchGuests)
		v1.GET("/guests/:id", h.GuestStatus)
		v1.GET("/guests/:id/credential", h.Credential)
		v1.GET("/guests/:id/card", h.Card)
		v1.POST("/guests/:id/card/publish", h.PublishCard)

		checkins := v1.Group("")
		if limit != nil {
			checkins.Use(limit)
		}
		checkins.POST("/checkins", h.CheckIn)
		checkins.POST("/scan", h.Scan)

		v1.GET("/checkins", h.ListCheckIns)
		v1.POST("/checkins/reload", h.ReloadCheckIns)
		v1.GET("/stats", h.Stats)

		v1.GET("/export/attendance.csv", h.ExportAttendance)
		v1.GET("/export/roster.csv", h.ExportRoster)
	}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok", "store": h.svc.StoreName(), "durable": h.svc.Durable()}
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Roster ----------

// UploadRoster accepts a multipart "file" field or the raw file as the body.
func (h *Handler) UploadRoster(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRosterBytes)

	var src io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return
		}
		defer file.Close()
		src = file
	}

	summary, err := h.svc.Ingest(c.Request.Context(), src)
	if err != nil {
		log.Printf("roster upload rejected: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "expected": roster.ExpectedFormat})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "message": summary.Message()})
}

func (h *Handler) GetRoster(c *gin.Context) {
	ros := h.svc.Roster()
	c.JSON(http.StatusOK, gin.H{"students": nonNil(ros.Students()), "guests": ros.Len()})
}

func (h *Handler) SearchGuests(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"guests": nonNil(h.svc.Roster().Search(c.Query("q")))})
}

func (h *Handler) GuestStatus(c *gin.Context) {
	lookup := h.svc.Status(c.Param("id"))
	if lookup.Status == attendance.StatusNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": attendance.ErrGuestNotFound.Error()})
		return
	}
	body := gin.H{"status": lookup.Status.String(), "guest": lookup.Guest}
	if lookup.Entry != nil {
		body["entry"] = lookup.Entry
	}
	c.JSON(http.StatusOK, body)
}

// ---------- Credentials ----------

func (h *Handler) Credential(c *gin.Context) {
	g, ok := h.guest(c)
	if !ok {
		return
	}
	payload, err := h.codec.Encode(g)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode credential failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"guest":      g,
		"payload":    payload,
		"qrImageUrl": h.renderer.ImageURL(payload),
		"fileName":   credential.CardFileName(g),
	})
}

func (h *Handler) Card(c *gin.Context) {
	g, ok := h.guest(c)
	if !ok {
		return
	}
	png, ok := h.composeCard(c, g)
	if !ok {
		return
	}
	c.Header("Content-Disposition", attachment(credential.CardFileName(g)))
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) PublishCard(c *gin.Context) {
	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}
	g, ok := h.guest(c)
	if !ok {
		return
	}
	png, ok := h.composeCard(c, g)
	if !ok {
		return
	}
	result, err := h.cloud.UploadCard(c.Request.Context(), png, g.ID, credential.CardFileName(g))
	if err != nil {
		log.Printf("cloudinary upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": result.SecureURL, "public_id": result.PublicID})
}

func (h *Handler) composeCard(c *gin.Context, g roster.Guest) ([]byte, bool) {
	payload, err := h.codec.Encode(g)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode credential failed"})
		return nil, false
	}
	qr, err := h.renderer.Render(c.Request.Context(), payload)
	if err != nil {
		log.Printf("qr render for %s failed: %v", g.ID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "qr service unavailable"})
		return nil, false
	}
	png, err := credential.ComposeCard(g, qr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return png, true
}

func (h *Handler) guest(c *gin.Context) (roster.Guest, bool) {
	g, ok := h.svc.Roster().Guest(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": attendance.ErrGuestNotFound.Error()})
	}
	return g, ok
}

// ---------- Check-ins ----------

type checkInResponse struct {
	Guest     attendance.RegisteredGuest `json:"guest"`
	Duplicate bool                       `json:"duplicate"`
	Persisted bool                       `json:"persisted"`
	Warning   string                     `json:"warning,omitempty"`
}

// CheckIn registers the first guest matching a manual search term.
func (h *Handler) CheckIn(c *gin.Context) {
	var req struct {
		Term string `json:"term" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.RegisterTerm(c.Request.Context(), strings.TrimSpace(req.Term))
	h.respondCheckIn(c, res, err)
}

// Scan registers the guest named by a decoded QR payload. Text that is not a
// credential is handled like a manual search.
func (h *Handler) Scan(c *gin.Context) {
	var req struct {
		Payload string `json:"payload" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	g, err := h.codec.Decode(req.Payload)
	if err != nil {
		res, err := h.svc.RegisterTerm(ctx, strings.TrimSpace(req.Payload))
		h.respondCheckIn(c, res, err)
		return
	}
	res, err := h.svc.RegisterID(ctx, g.ID)
	h.respondCheckIn(c, res, err)
}

func (h *Handler) respondCheckIn(c *gin.Context, res attendance.Result, err error) {
	switch {
	case errors.Is(err, attendance.ErrGuestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		log.Printf("check-in %s not persisted: %v", res.Entry.ID, err)
		c.JSON(http.StatusCreated, checkInResponse{
			Guest:   res.Entry,
			Warning: "registered locally, the store did not accept the record",
		})
	case res.Duplicate:
		c.JSON(http.StatusOK, checkInResponse{Guest: res.Entry, Duplicate: true, Persisted: res.Persisted})
	default:
		c.JSON(http.StatusCreated, checkInResponse{Guest: res.Entry, Persisted: res.Persisted})
	}
}

func (h *Handler) ListCheckIns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": nonNil(h.svc.Entries()), "stats": h.svc.Stats()})
}

// ReloadCheckIns merges check-ins written by other stations.
func (h *Handler) ReloadCheckIns(c *gin.Context) {
	added := h.svc.Load(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"added": added, "total": len(h.svc.Entries())})
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}

// ---------- Export ----------

func (h *Handler) ExportAttendance(c *gin.Context) {
	var buf bytes.Buffer
	if err := export.Attendance(&buf, h.svc.Entries()); err != nil {
		h.exportFailed(c, err)
		return
	}
	h.sendCSV(c, export.AttendanceFileName(h.now()), buf.Bytes())
}

func (h *Handler) ExportRoster(c *gin.Context) {
	var buf bytes.Buffer
	if err := export.Roster(&buf, h.svc.Roster().Guests(), h.loc, h.layout); err != nil {
		h.exportFailed(c, err)
		return
	}
	h.sendCSV(c, export.RosterFileName(h.now()), buf.Bytes())
}

func (h *Handler) exportFailed(c *gin.Context, err error) {
	if errors.Is(err, export.ErrNothingToExport) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (h *Handler) sendCSV(c *gin.Context, name string, data []byte) {
	c.Header("Content-Disposition", attachment(name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// attachment quotes name for a Content-Disposition header, RFC 2231 encoding
// non-ASCII names.
func attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
