package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carloslauriano/sendMyFiles/config"
	"github.com/lib/pq"
)

// PostgresStorage implementa a interface Storage para PostgreSQL
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage cria uma nova instância de armazenamento PostgreSQL
func NewPostgresStorage(cfg *config.DatabaseConfig) (Storage, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode,
	)

	return newPostgresStorageDSN(connStr)
}

func newPostgresStorageDSN(connStr string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("falha ao abrir banco de dados PostgreSQL: %w", err)
	}

	return &PostgresStorage{
		db: db,
	}, nil
}

// Open abre a conexão com o banco de dados
func (s *PostgresStorage) Open() error {
	if err := s.createSchema(); err != nil {
		return fmt.Errorf("falha ao criar esquema PostgreSQL: %w", err)
	}
	return nil
}

// Close fecha a conexão com o banco de dados
func (s *PostgresStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifica se o banco de dados responde
func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// createSchema cria o esquema do banco de dados
func (s *PostgresStorage) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS senders (
		id BIGSERIAL PRIMARY KEY,
		email VARCHAR(320) NOT NULL UNIQUE,
		tier VARCHAR(16) NOT NULL DEFAULT 'Free' CHECK (tier IN ('Free', 'Premium')),
		created_at TIMESTAMPTZ NOT NULL,
		used_quota BIGINT NOT NULL DEFAULT 0 CHECK (used_quota >= 0)
	);

	CREATE TABLE IF NOT EXISTS transfers (
		id BIGSERIAL PRIMARY KEY,
		file_name VARCHAR(255) NOT NULL,
		storage_pointer TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		content_type VARCHAR(255) NOT NULL,
		sender_email VARCHAR(320) NOT NULL,
		recipient_email VARCHAR(320) NOT NULL,
		uploaded_at TIMESTAMPTZ NOT NULL,
		downloaded_at TIMESTAMPTZ,
		is_downloaded BOOLEAN NOT NULL DEFAULT FALSE,
		token CHAR(32) NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT transfers_token_key UNIQUE (token)
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_recipient
	ON transfers (recipient_email, uploaded_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetOrCreateSender obtém o remetente pelo email, criando-o no plano Free se não existir
func (s *PostgresStorage) GetOrCreateSender(ctx context.Context, email string) (*Sender, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO senders (email, tier, created_at, used_quota) VALUES ($1, $2, $3, 0) ON CONFLICT (email) DO NOTHING",
		email, string(TierFree), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("falha ao criar remetente: %w", err)
	}

	sender, err := scanSender(s.db.QueryRowContext(ctx,
		"SELECT id, email, tier, created_at, used_quota FROM senders WHERE email = $1",
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
func (s *PostgresStorage) CommitQuota(ctx context.Context, senderID int64, deltaBytes int64) error {
	if err := validateQuotaDelta(deltaBytes); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE senders SET used_quota = used_quota + $1 WHERE id = $2",
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
func (s *PostgresStorage) CreateTransfer(ctx context.Context, transfer *Transfer) (int64, error) {
	if err := validateTransfer(transfer); err != nil {
		return 0, err
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO transfers
		(file_name, storage_pointer, file_size, content_type, sender_email, recipient_email,
		uploaded_at, is_downloaded, token, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		transfer.FileName, transfer.StoragePointer, transfer.FileSize, transfer.ContentType,
		transfer.SenderEmail, transfer.RecipientEmail, transfer.UploadedAt.UTC(),
		transfer.IsDownloaded, transfer.Token, transfer.ExpiresAt.UTC(),
	).Scan(&id)
	if err != nil {
		if isPostgresDuplicateToken(err) {
			return 0, ErrDuplicateToken
		}
		return 0, fmt.Errorf("falha ao criar transferência: %w", err)
	}
	transfer.ID = id

	return id, nil
}

// GetTransferByToken obtém uma transferência pelo token de acesso
func (s *PostgresStorage) GetTransferByToken(ctx context.Context, token string) (*Transfer, error) {
	transfer, err := scanTransfer(s.db.QueryRowContext(ctx,
		"SELECT "+transferColumns+" FROM transfers WHERE token = $1",
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
func (s *PostgresStorage) MarkDownloaded(ctx context.Context, transferID int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE transfers SET is_downloaded = TRUE, downloaded_at = $1 WHERE id = $2 AND is_downloaded = FALSE",
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
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM transfers WHERE id = $1", transferID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrTransferNotFound
	} else if err != nil {
		return fmt.Errorf("falha ao verificar transferência: %w", err)
	}

	return nil
}

// ListTransfersByRecipient lista as transferências de um destinatário, da mais recente para a mais antiga
func (s *PostgresStorage) ListTransfersByRecipient(ctx context.Context, email string) ([]*Transfer, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+transferColumns+" FROM transfers WHERE recipient_email = $1 ORDER BY uploaded_at DESC, id DESC",
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

func isPostgresDuplicateToken(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && pqErr.Constraint == "transfers_token_key"
}
