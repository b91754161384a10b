package transfer

import (
	"io"
	"time"

	"github.com/carloslauriano/sendMyFiles/storage"
)

// SubmitRequest descreve um envio de arquivo
type SubmitRequest struct {
	SenderEmail    string
	RecipientEmail string
	Body           io.Reader
	FileName       string
	ContentType    string
	Size           int64
	// Link monta o link de download a partir do token. Sem ele o próprio token é enviado.
	Link func(token string) string
}

// SubmitResult é o resultado de Submit. Em NotificationError o arquivo já foi
// gravado, então TransferID e Token vêm preenchidos.
type SubmitResult struct {
	Success    bool
	Message    string
	Category   Category
	TransferID int64
	Token      string

	cause error
}

// Err retorna nil em caso de sucesso, senão um *Error
func (r SubmitResult) Err() error {
	if r.Success {
		return nil
	}
	return newError(r.Category, r.Message, r.cause)
}

// ClaimResult é o resultado de Claim. O chamador deve fechar Body.
type ClaimResult struct {
	Success     bool
	Message     string
	Category    Category
	Body        io.ReadCloser
	FileName    string
	ContentType string
	Size        int64

	cause error
}

// Err retorna nil em caso de sucesso, senão um *Error
func (r ClaimResult) Err() error {
	if r.Success {
		return nil
	}
	return newError(r.Category, r.Message, r.cause)
}

// TransferSummary é a visão de uma transferência na listagem do destinatário
type TransferSummary struct {
	ID           int64      `json:"id"`
	FileName     string     `json:"fileName"`
	FileSize     int64      `json:"fileSize"`
	ContentType  string     `json:"contentType"`
	SenderEmail  string     `json:"senderEmail"`
	UploadedAt   time.Time  `json:"uploadedAt"`
	DownloadedAt *time.Time `json:"downloadedAt,omitempty"`
	IsDownloaded bool       `json:"isDownloaded"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	Expired      bool       `json:"expired"`
}

func summarize(t *storage.Transfer, now time.Time) TransferSummary {
	return TransferSummary{
		ID:           t.ID,
		FileName:     t.FileName,
		FileSize:     t.FileSize,
		ContentType:  t.ContentType,
		SenderEmail:  t.SenderEmail,
		UploadedAt:   t.UploadedAt,
		DownloadedAt: t.DownloadedAt,
		IsDownloaded: t.IsDownloaded,
		ExpiresAt:    t.ExpiresAt,
		Expired:      t.Expired(now),
	}
}

// QuotaStatus é o uso de cota de um remetente
type QuotaStatus struct {
	Email     string       `json:"email"`
	Tier      storage.Tier `json:"tier"`
	Used      int64        `json:"used"`
	Limit     int64        `json:"limit"`
	Available int64        `json:"available"`
	Unlimited bool         `json:"unlimited"`
}
