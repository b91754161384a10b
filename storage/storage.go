package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carloslauriano/sendMyFiles/config"
)

// ErrSenderNotFound é retornado quando um remetente não é encontrado
var ErrSenderNotFound = errors.New("remetente não encontrado")

// ErrTransferNotFound é retornado quando uma transferência não é encontrada
var ErrTransferNotFound = errors.New("transferência não encontrada")

// ErrDuplicateToken é retornado quando o token já pertence a outra transferência
var ErrDuplicateToken = errors.New("token de acesso duplicado")

// Storage é a interface para operações de armazenamento
type Storage interface {
	// Métodos de inicialização
	Open() error
	Close() error
	Ping(ctx context.Context) error

	// Métodos de remetente
	GetOrCreateSender(ctx context.Context, email string) (*Sender, error)
	CommitQuota(ctx context.Context, senderID int64, deltaBytes int64) error

	// Métodos de transferência
	CreateTransfer(ctx context.Context, transfer *Transfer) (int64, error)
	GetTransferByToken(ctx context.Context, token string) (*Transfer, error)
	MarkDownloaded(ctx context.Context, transferID int64, at time.Time) error
	ListTransfersByRecipient(ctx context.Context, email string) ([]*Transfer, error)
}

// NewStorage cria uma nova instância de armazenamento com base na configuração
func NewStorage(cfg *config.Config) (Storage, error) {
	switch cfg.Database.Type {
	case "sqlite":
		return NewSQLiteStorage(&cfg.Database)
	case "postgres":
		return NewPostgresStorage(&cfg.Database)
	default:
		return nil, fmt.Errorf("tipo de banco de dados não suportado: %s", cfg.Database.Type)
	}
}

func validateTransfer(t *Transfer) error {
	if t == nil {
		return errors.New("transferência é obrigatória")
	}
	if t.Token == "" {
		return errors.New("token é obrigatório")
	}
	if t.StoragePointer == "" {
		return errors.New("storage_pointer é obrigatório")
	}
	if t.FileName == "" {
		return errors.New("file_name é obrigatório")
	}
	return nil
}

func validateQuotaDelta(deltaBytes int64) error {
	if deltaBytes <= 0 {
		return fmt.Errorf("incremento de cota inválido: %d", deltaBytes)
	}
	return nil
}

// rowScanner abstrai *sql.Row e *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

const transferColumns = `id, file_name, storage_pointer, file_size, content_type, sender_email,
		recipient_email, uploaded_at, downloaded_at, is_downloaded, token, expires_at`

func scanTransfer(row rowScanner) (*Transfer, error) {
	t := &Transfer{}
	var downloadedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.FileName, &t.StoragePointer, &t.FileSize, &t.ContentType, &t.SenderEmail,
		&t.RecipientEmail, &t.UploadedAt, &downloadedAt, &t.IsDownloaded, &t.Token, &t.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	if downloadedAt.Valid {
		at := downloadedAt.Time
		t.DownloadedAt = &at
	}
	return t, nil
}

func scanSender(row rowScanner) (*Sender, error) {
	s := &Sender{}
	var tier string
	if err := row.Scan(&s.ID, &s.Email, &tier, &s.CreatedAt, &s.UsedQuota); err != nil {
		return nil, err
	}
	s.Tier = Tier(tier)
	return s, nil
}
