package server

import (
	"context"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/carloslauriano/sendMyFiles/transfer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// contentTypeByExt mapeia extensões comuns para tipos MIME
var contentTypeByExt = map[string]string{
	".txt":  "text/plain",
	".csv":  "text/csv",
	".html": "text/html",
	".json": "application/json",
	".xml":  "application/xml",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Handlers contém os handlers HTTP das transferências
type Handlers struct {
	svc            TransferService
	health         Pinger
	baseURL        string
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewHandlers(svc TransferService, health Pinger, baseURL string, maxUploadBytes int64, logger *zap.Logger) *Handlers {
	return &Handlers{
		svc:            svc,
		health:         health,
		baseURL:        strings.TrimRight(baseURL, "/"),
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

type uploadForm struct {
	SenderEmail    string                `form:"senderEmail" binding:"required,email"`
	RecipientEmail string                `form:"recipientEmail" binding:"required,email"`
	File           *multipart.FileHeader `form:"file" binding:"required"`
}

type tokenQuery struct {
	Token string `form:"token" binding:"required"`
}

type quotaQuery struct {
	Email string `form:"email" binding:"required,email"`
}

type transfersQuery struct {
	Recipient string `form:"recipient" binding:"required,email"`
}

// statusFor traduz a categoria do engine em status HTTP
func statusFor(category transfer.Category) int {
	switch category {
	case transfer.ValidationError:
		return http.StatusBadRequest
	case transfer.QuotaExceeded:
		return http.StatusRequestEntityTooLarge
	case transfer.NotificationError:
		return http.StatusBadGateway
	case transfer.NotFound:
		return http.StatusNotFound
	case transfer.Expired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	var terr *transfer.Error
	if errors.As(err, &terr) {
		c.JSON(statusFor(terr.Category), gin.H{"success": false, "message": terr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error."})
}

// downloadLink monta o link absoluto enviado ao destinatário
func (h *Handlers) downloadLink(token string) string {
	return h.baseURL + transfer.DownloadPath(token)
}

// Upload recebe o arquivo (POST /upload)
func (h *Handlers) Upload(c *gin.Context) {
	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "A file and valid sender and recipient emails are required.",
			"details": err.Error(),
		})
		return
	}

	if h.maxUploadBytes > 0 && form.File.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"success": false,
			"message": "File exceeds the maximum upload size.",
		})
		return
	}

	file, err := form.File.Open()
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Could not read the uploaded file."})
		return
	}
	defer file.Close()

	contentType := form.File.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = detectContentType(form.File.Filename)
	}

	res := h.svc.Submit(c.Request.Context(), transfer.SubmitRequest{
		SenderEmail:    form.SenderEmail,
		RecipientEmail: form.RecipientEmail,
		Body:           file,
		FileName:       filepath.Base(form.File.Filename),
		ContentType:    contentType,
		Size:           form.File.Size,
		Link:           h.downloadLink,
	})

	body := gin.H{
		"success": res.Success,
		"message": res.Message,
	}
	if res.Token != "" {
		body["transferId"] = res.TransferID
		body["token"] = res.Token
	}

	if !res.Success {
		if err := res.Err(); err != nil {
			c.Error(err)
		}
		c.JSON(statusFor(res.Category), body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// Download entrega o arquivo (GET /download?token=)
func (h *Handlers) Download(c *gin.Context) {
	var q tokenQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Access token is required."})
		return
	}

	res := h.svc.Claim(c.Request.Context(), q.Token)
	if !res.Success {
		if err := res.Err(); err != nil {
			c.Error(err)
		}
		c.JSON(statusFor(res.Category), gin.H{"success": false, "message": res.Message})
		return
	}
	defer res.Body.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": res.FileName})
	if disposition == "" {
		disposition = "attachment"
	}
	c.DataFromReader(http.StatusOK, res.Size, res.ContentType, res.Body, map[string]string{
		"Content-Disposition": disposition,
	})
}

// Link redireciona para o link direto do arquivo (GET /link?token=)
func (h *Handlers) Link(c *gin.Context) {
	var q tokenQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Access token is required."})
		return
	}

	link, err := h.svc.DirectLink(c.Request.Context(), q.Token)
	if err != nil {
		c.Error(err)
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, link)
}

// Quota informa o uso de cota do remetente (GET /quota?email=)
func (h *Handlers) Quota(c *gin.Context) {
	var q quotaQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "A valid email is required."})
		return
	}

	status, err := h.svc.QuotaStatus(c.Request.Context(), q.Email)
	if err != nil {
		c.Error(err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Transfers lista as transferências de um destinatário (GET /transfers?recipient=)
func (h *Handlers) Transfers(c *gin.Context) {
	var q transfersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "A valid recipient email is required."})
		return
	}

	list, err := h.svc.ListForRecipient(c.Request.Context(), q.Recipient)
	if err != nil {
		c.Error(err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfers": list, "count": len(list)})
}

// Health verifica o banco de dados (GET /health)
func (h *Handlers) Health(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			h.logger.Warn("health check falhou", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "sendmyfiles"})
}

// detectContentType deduz o tipo MIME pela extensão
func detectContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if contentType, ok := contentTypeByExt[ext]; ok {
		return contentType
	}
	return "application/octet-stream"
}
