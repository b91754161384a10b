package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/carloslauriano/sendMyFiles/config"
	"github.com/mattn/go-sqlite3"
)

// SQLiteStorage implementa a interface Storage para SQLite
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage cria uma nova instância de armazenamento SQLite
func NewSQLiteStorage(cfg *config.DatabaseConfig) (Storage, error) {
	// Garantir que o diretório existe
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("falha ao criar diretório para SQLite: %w", err)
	}

	return &SQLiteStorage{
		path: cfg.Path,
	}, nil
}

// Open abre a conexão com o banco de dados
func (s *SQLiteStorage) Open() error {
	dsn := s.path + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("falha ao abrir banco de dados SQLite: %w", err)
	}
	s.db = db

	if err := s.createSchema(); err != nil {
		s.db.Close()
		return fmt.Errorf("falha ao criar esquema SQLite: %w", err)
	}

	return nil
}

// Close fecha a conexão com o banco de dados
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifica se o banco de dados responde
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// createSchema cria o esquema do banco de dados
func (s *SQLiteStorage) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS senders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		tier TEXT NOT NULL DEFAULT 'Free' CHECK(tier IN ('Free', 'Premium')),
		created_at DATETIME NOT NULL,
		used_quota INTEGER NOT NULL DEFAULT 0 CHECK(used_quota >= 0)
	);

	CREATE TABLE IF NOT EXISTS transfers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name TEXT NOT NULL,
		storage_pointer TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		content_type TEXT NOT NULL,
		sender_email TEXT NOT NULL,
		recipient_email TEXT NOT NULL,
		uploaded_at DATETIME NOT NULL,
		downloaded_at DATETIME,
		is_downloaded BOOLEAN NOT NULL DEFAULT 0,
		token TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_recipient
	ON transfers (recipient_email, uploaded_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetOrCreateSender obtém o remetente pelo email, criando-o no plano Free se não existir
func (s *SQLiteStorage) GetOrCreateSender(ctx context.Context, email string) (*Sender, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO senders (email, tier, created_at, used_quota) VALUES (?, ?, ?, 0) ON CONFLICT(email) DO NOTHING",
		email, string(TierFree), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("falha ao criar remetente: %w", err)
	}

	sender, err := scanSender(s.db.QueryRowContext(ctx,
		"SELECT id, email, tier, created_at, used_quota FROM senders WHERE email = ?",
		email,
	))
	if err == sql.ErrNoRows {
		return nil, ErrSenderNotFound
	} else if err != nil {
		return nil, fmt.Errorf("falha ao obter remetente: %w", err)
	}

	return sender, nil
}

// CommitQuota soma deltaBytes à cota usada pelo remetente
func (s *SQLiteStorage) CommitQuota(ctx context.Context, senderID int64, deltaBytes int64) error {
	if err := validateQuotaDelta(deltaBytes); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE senders SET used_quota = used_quota + ? WHERE id = ?",
		deltaBytes, senderID,
	)
	if err != nil {
		return fmt.Errorf("falha ao atualizar cota do remetente: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("falha ao ler linhas afetadas da cota: %w", err)
	}
	if n == 0 {
		return ErrSenderNotFound
	}

	return nil
}

// CreateTransfer registra uma nova transferência
func (s *SQLiteStorage) CreateTransfer(ctx context.Context, transfer *Transfer) (int64, error) {
	if err := validateTransfer(transfer); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO transfers
		(file_name, storage_pointer, file_size, content_type, sender_email, recipient_email,
		uploaded_at, is_downloaded, token, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		transfer.FileName, transfer.StoragePointer, transfer.FileSize, transfer.ContentType,
		transfer.SenderEmail, transfer.RecipientEmail, transfer.UploadedAt.UTC(),
		transfer.IsDownloaded, transfer.Token, transfer.ExpiresAt.UTC(),
	)
	if err != nil {
		if isSQLiteDuplicateToken(err) {
			return 0, ErrDuplicateToken
		}
		return 0, fmt.Errorf("falha ao criar transferência: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("falha ao obter ID da transferência: %w", err)
	}
	transfer.ID = id

	return id, nil
}

// GetTransferByToken obtém uma transferência pelo token de acesso
func (s *SQLiteStorage) GetTransferByToken(ctx context.Context, token string) (*Transfer, error) {
	transfer, err := scanTransfer(s.db.QueryRowContext(ctx,
		"SELECT "+transferColumns+" FROM transfers WHERE token = ?",
		token,
	))
	if err == sql.ErrNoRows {
		return nil, ErrTransferNotFound
	} else if err != nil {
		return nil, fmt.Errorf("falha ao obter transferência: %w", err)
	}

	return transfer, nil
}

// MarkDownloaded marca a transferência como baixada; a data do primeiro download é preservada
func (s *SQLiteStorage) MarkDownloaded(ctx context.Context, transferID int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE transfers SET is_downloaded = 1, downloaded_at = ? WHERE id = ? AND is_downloaded = 0",
		at.UTC(), transferID,
	)
	if err != nil {
		return fmt.Errorf("falha ao marcar transferência como baixada: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("falha ao ler linhas afetadas do download: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM transfers WHERE id = ?", transferID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrTransferNotFound
	} else if err != nil {
		return fmt.Errorf("falha ao verificar transferência: %w", err)
	}

	return nil
}

// ListTransfersByRecipient lista as transferências de um destinatário, da mais recente para a mais antiga
func (s *SQLiteStorage) ListTransfersByRecipient(ctx context.Context, email string) ([]*Transfer, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+transferColumns+" FROM transfers WHERE recipient_email = ? ORDER BY uploaded_at DESC, id DESC",
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar transferências: %w", err)
	}
	defer rows.Close()

	var transfers []*Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("falha ao ler dados da transferência: %w", err)
		}
		transfers = append(transfers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar sobre transferências: %w", err)
	}

	return transfers, nil
}

func isSQLiteDuplicateToken(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(sqliteErr.Error(), "transfers.token")
}
