package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/appolinair2355/Mon/internal/auth"
	"github.com/appolinair2355/Mon/internal/domain/models"
	"github.com/appolinair2355/Mon/internal/service/notify"
	"github.com/appolinair2355/Mon/internal/service/school"
	"github.com/appolinair2355/Mon/internal/service/spreadsheet"
)

// Registry is the access layer as seen by the HTTP handlers.
type Registry interface {
	AddStudent(ctx context.Context, category models.Category, input models.StudentInput) (int, error)
	Students(ctx context.Context, category models.Category) ([]models.StudentRecord, error)
	StudentsByClass(ctx context.Context, category models.Category, classe string) ([]models.StudentRecord, error)
	AllStudents(ctx context.Context) []models.TaggedStudent
	FindStudent(ctx context.Context, id int, category models.Category) (models.StudentRecord, bool)
	Classes(ctx context.Context, category models.Category) ([]string, error)
	Subjects() []string
	AddPayment(ctx context.Context, id int, category models.Category, amount float64) (bool, error)
	Tuition(ctx context.Context) ([]models.TuitionLine, error)
	AddNotes(ctx context.Context, inputs []models.NoteInput) error
	NoteViews(ctx context.Context, filter models.NoteFilter) []models.NoteView
	NoteFilters(ctx context.Context) models.NoteFilters
	ClassGradeSheet(ctx context.Context, classe, matiere string) []models.GradeSheetRow
	Stats(ctx context.Context) models.Stats
}

// Workbooks imports and exports .xlsx files.
type Workbooks interface {
	Import(ctx context.Context, r io.Reader) (spreadsheet.ImportResult, error)
	Export(ctx context.Context, w io.Writer) error
}

// AccessGate exchanges a shared password for an access token.
type AccessGate interface {
	Verify(password string) (string, error)
	TTL() time.Duration
}

// SchoolHandler serves the school API.
type SchoolHandler struct {
	registry  Registry
	workbooks Workbooks
	gate      AccessGate
	receipts  notify.ReceiptSender
	logger    *zap.Logger
	now       func() time.Time
}

// NewSchoolHandler constructs the HTTP handler adapter. receipts may be nil.
func NewSchoolHandler(registry Registry, workbooks Workbooks, gate AccessGate, receipts notify.ReceiptSender, logger *zap.Logger) *SchoolHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if receipts == nil {
		receipts = notify.Nop{}
	}
	return &SchoolHandler{
		registry:  registry,
		workbooks: workbooks,
		gate:      gate,
		receipts:  receipts,
		logger:    logger,
		now:       time.Now,
	}
}

type verifyRequest struct {
	Password string `json:"password" form:"password"`
}

type paymentRequest struct {
	Amount *float64 `json:"amount" binding:"required"`
}

type saveNotesRequest struct {
	Notes []models.NoteInput `json:"notes" binding:"required,dive"`
}

type gradeSheetRequest struct {
	Classe  string `json:"classe" binding:"required"`
	Matiere string `json:"matiere" binding:"required"`
}

// VerifyAccess exchanges a shared password for an access token, also set as a cookie.
func (h *SchoolHandler) VerifyAccess(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, err := h.gate.Verify(req.Password)
	if errors.Is(err, auth.ErrInvalidPassword) {
		h.logger.Warn("access denied", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "mot de passe incorrect"})
		return
	}
	if err != nil {
		h.logger.Error("failed issuing access token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	ttl := int(h.gate.TTL().Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, ttl, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": ttl})
}

// RegisterStudent handles POST /api/students/:category.
func (h *SchoolHandler) RegisterStudent(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}

	var input models.StudentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	id, err := h.registry.AddStudent(c.Request.Context(), category, input)
	if err != nil {
		h.respondError(c, "failed to register student", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": id})
}

// ListStudents handles GET /api/students/:category with an optional classe filter.
func (h *SchoolHandler) ListStudents(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}

	var (
		students []models.StudentRecord
		err      error
	)
	if classe := c.Query("classe"); classe != "" {
		students, err = h.registry.StudentsByClass(c.Request.Context(), category, classe)
	} else {
		students, err = h.registry.Students(c.Request.Context(), category)
	}
	if err != nil {
		h.respondError(c, "failed to list students", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// ListAllStudents handles GET /api/students.
func (h *SchoolHandler) ListAllStudents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"students": h.registry.AllStudents(c.Request.Context())})
}

// Stats handles GET /api/stats.
func (h *SchoolHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Stats(c.Request.Context()))
}

// Classes handles GET /api/classes, the data behind the grade entry form.
func (h *SchoolHandler) Classes(c *gin.Context) {
	ctx := c.Request.Context()
	ecoliers, err := h.registry.Classes(ctx, models.CategoryEcolier)
	if err != nil {
		h.respondError(c, "failed to list classes", err)
		return
	}
	eleves, err := h.registry.Classes(ctx, models.CategoryEleve)
	if err != nil {
		h.respondError(c, "failed to list classes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"classes_ecoliers": ecoliers,
		"classes_eleves":   eleves,
		"matieres":         h.registry.Subjects(),
	})
}

// SaveNotes handles POST /api/notes. Entries are appended, never overwritten.
func (h *SchoolHandler) SaveNotes(c *gin.Context) {
	var req saveNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := h.registry.AddNotes(c.Request.Context(), req.Notes); err != nil {
		h.respondError(c, "failed to save notes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(req.Notes)})
}

// ListNotes handles GET /api/notes?classe=&matiere=.
func (h *SchoolHandler) ListNotes(c *gin.Context) {
	var filter models.NoteFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": h.registry.NoteViews(c.Request.Context(), filter)})
}

// NoteFilters handles GET /api/notes/filters.
func (h *SchoolHandler) NoteFilters(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.NoteFilters(c.Request.Context()))
}

// ClassGradeSheet handles POST /api/notes/by-class.
func (h *SchoolHandler) ClassGradeSheet(c *gin.Context) {
	var req gradeSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "classe and matiere are required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": h.registry.ClassGradeSheet(c.Request.Context(), req.Classe, req.Matiere)})
}

// AddPayment handles POST /api/students/:category/:id/payments.
func (h *SchoolHandler) AddPayment(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student id must be numeric"})
		return
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}

	ctx := c.Request.Context()
	found, err := h.registry.AddPayment(ctx, id, category, *req.Amount)
	if err != nil {
		h.respondError(c, "failed to record payment", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}

	record, _ := h.registry.FindStudent(ctx, id, category)
	student := models.TaggedStudent{StudentRecord: record, Type: category}
	if err := h.receipts.SendPaymentReceipt(ctx, student, *req.Amount); err != nil {
		h.logger.Warn("payment receipt not sent", zap.Error(err), zap.String("category", string(category)), zap.Int("id", id))
	}

	resp := gin.H{"success": true}
	if line, err := school.TuitionFor(student); err == nil {
		resp["total_paid"] = line.TotalPaid
		resp["reste"] = line.Reste
	}
	c.JSON(http.StatusOK, resp)
}

// Tuition handles GET /api/tuition.
func (h *SchoolHandler) Tuition(c *gin.Context) {
	lines, err := h.registry.Tuition(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to compute tuition", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": lines})
}

// ImportWorkbook handles POST /api/import. The upload replaces all data.
func (h *SchoolHandler) ImportWorkbook(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".xlsx") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .xlsx files are accepted"})
		return
	}

	h.logger.Info("received workbook upload", zap.String("filename", header.Filename), zap.Int64("size", header.Size))

	result, err := h.workbooks.Import(c.Request.Context(), file)
	if err != nil {
		h.logger.Error("workbook import failed", zap.String("filename", header.Filename), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, spreadsheet.ErrNoSheets) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": "import failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "imported": result})
}

// ExportWorkbook handles GET /api/export.
func (h *SchoolHandler) ExportWorkbook(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.workbooks.Export(c.Request.Context(), &buf); err != nil {
		h.respondError(c, "failed to export workbook", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, spreadsheet.ExportFilename(h.now())))
	c.Data(http.StatusOK, spreadsheet.ContentType, buf.Bytes())
}

func (h *SchoolHandler) category(c *gin.Context) (models.Category, bool) {
	category, err := models.ParseCategory(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category must be ecolier or eleve"})
		return "", false
	}
	return category, true
}

func (h *SchoolHandler) respondError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidCategory),
		errors.Is(err, school.ErrInvalidAmount),
		errors.Is(err, school.ErrMissingField):
		h.logger.Warn(message, zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error(message, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
