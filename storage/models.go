package storage

import (
	"time"
)

// Tier representa o plano de um remetente
type Tier string

const (
	TierFree    Tier = "Free"
	TierPremium Tier = "Premium"
)

// Sender representa um remetente, criado na primeira transferência
type Sender struct {
	ID        int64
	Email     string
	Tier      Tier
	UsedQuota int64 // bytes já consumidos
	CreatedAt time.Time
}

// Transfer representa um arquivo enviado e o seu link de download
type Transfer struct {
	ID             int64
	FileName       string
	StoragePointer string // chave do objeto no armazenamento
	FileSize       int64
	ContentType    string
	SenderEmail    string
	RecipientEmail string
	UploadedAt     time.Time
	DownloadedAt   *time.Time
	IsDownloaded   bool
	Token          string
	ExpiresAt      time.Time
}

// Expired informa se o link já expirou no instante now
func (t *Transfer) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
