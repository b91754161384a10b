package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/carloslauriano/sendMyFiles/notify"
	"github.com/carloslauriano/sendMyFiles/objectstore"
	"github.com/carloslauriano/sendMyFiles/storage"
	"go.uber.org/zap"
)

const (
	DefaultFreeQuotaBytes int64 = 50 * 1024 * 1024
	DefaultLinkTTL              = 7 * 24 * time.Hour
	DefaultPresignTTL           = time.Hour
	DefaultTokenAttempts        = 3

	defaultContentType = "application/octet-stream"
)

// QuotaLedger guarda o uso acumulado de cada remetente
type QuotaLedger interface {
	GetOrCreateSender(ctx context.Context, email string) (*storage.Sender, error)
	CommitQuota(ctx context.Context, senderID int64, deltaBytes int64) error
}

// RecordStore guarda os registros de transferência
type RecordStore interface {
	CreateTransfer(ctx context.Context, transfer *storage.Transfer) (int64, error)
	GetTransferByToken(ctx context.Context, token string) (*storage.Transfer, error)
	MarkDownloaded(ctx context.Context, transferID int64, at time.Time) error
	ListTransfersByRecipient(ctx context.Context, email string) ([]*storage.Transfer, error)
}

// ObjectStore guarda o conteúdo dos arquivos
type ObjectStore interface {
	Put(ctx context.Context, r io.Reader, size int64, fileName, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Options são as regras de negócio do engine. Campos zerados usam os padrões.
type Options struct {
	FreeQuotaBytes   int64
	LinkTTL          time.Duration
	PresignTTL       time.Duration
	OperationTimeout time.Duration
	TokenAttempts    int
	Clock            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.FreeQuotaBytes <= 0 {
		o.FreeQuotaBytes = DefaultFreeQuotaBytes
	}
	if o.LinkTTL <= 0 {
		o.LinkTTL = DefaultLinkTTL
	}
	if o.PresignTTL <= 0 {
		o.PresignTTL = DefaultPresignTTL
	}
	if o.TokenAttempts <= 0 {
		o.TokenAttempts = DefaultTokenAttempts
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Engine coordena o ciclo de vida das transferências: cota, armazenamento,
// registro e notificação no envio; busca, validade e leitura no resgate.
type Engine struct {
	ledger   QuotaLedger
	records  RecordStore
	objects  ObjectStore
	notifier notify.Notifier
	opts     Options
	logger   *zap.Logger

	newToken func() (string, error)
}

func New(ledger QuotaLedger, records RecordStore, objects ObjectStore, notifier notify.Notifier, opts Options, logger *zap.Logger) *Engine {
	return &Engine{
		ledger:   ledger,
		records:  records,
		objects:  objects,
		notifier: notifier,
		opts:     opts.withDefaults(),
		logger:   logger.Named("transfer"),
		newToken: newToken,
	}
}

// metaCtx limita as chamadas de metadados ao OperationTimeout
func (e *Engine) metaCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.OperationTimeout > 0 {
		return context.WithTimeout(ctx, e.opts.OperationTimeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) now() time.Time {
	return e.opts.Clock().UTC()
}

func submitFailure(category Category, message string, cause error) SubmitResult {
	return SubmitResult{Category: category, Message: message, cause: cause}
}

func claimFailure(category Category, message string, cause error) ClaimResult {
	return ClaimResult{Category: category, Message: message, cause: cause}
}

func validateSubmit(req SubmitRequest) string {
	switch {
	case req.SenderEmail == "":
		return "Sender email is required."
	case req.RecipientEmail == "":
		return "Recipient email is required."
	case req.FileName == "":
		return "File name is required."
	case req.Body == nil:
		return "File content is required."
	case req.Size <= 0:
		return "File is empty."
	}
	return ""
}

// Submit grava o arquivo e notifica o destinatário. A cota só é consumida
// depois que o conteúdo e o registro foram gravados.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) SubmitResult {
	if msg := validateSubmit(req); msg != "" {
		return submitFailure(ValidationError, msg, nil)
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	log := e.logger.With(
		zap.String("sender", req.SenderEmail),
		zap.String("recipient", req.RecipientEmail),
		zap.String("file_name", req.FileName),
		zap.Int64("size", req.Size),
	)

	mctx, cancel := e.metaCtx(ctx)
	sender, err := e.ledger.GetOrCreateSender(mctx, req.SenderEmail)
	cancel()
	if err != nil {
		log.Error("falha ao obter remetente", zap.Error(err))
		return submitFailure(PersistenceError, "Error uploading file: could not load sender.", err)
	}

	// Verificação e consumo da cota não formam uma transação: dois envios
	// simultâneos do mesmo remetente podem ultrapassar o limite.
	if sender.Tier != storage.TierPremium && sender.UsedQuota+req.Size > e.opts.FreeQuotaBytes {
		remaining := e.opts.FreeQuotaBytes - sender.UsedQuota
		if remaining < 0 {
			remaining = 0
		}
		msg := fmt.Sprintf("File size exceeds your available quota. You have %s remaining out of %s.",
			formatBytes(remaining), formatBytes(e.opts.FreeQuotaBytes))
		log.Info("cota excedida", zap.Int64("used", sender.UsedQuota))
		return submitFailure(QuotaExceeded, msg, nil)
	}

	guard := &sizeGuard{r: req.Body, limit: req.Size}
	key, err := e.objects.Put(ctx, guard, req.Size, req.FileName, contentType)
	if err != nil {
		log.Error("falha ao gravar arquivo", zap.Error(err))
		return submitFailure(StorageError, "Error uploading file: could not store file.", err)
	}
	if guard.read != req.Size {
		err := fmt.Errorf("tamanho declarado %d, recebidos %d bytes", req.Size, guard.read)
		log.Error("conteúdo incompleto", zap.Error(err))
		e.discard(key, log)
		return submitFailure(StorageError, "Error uploading file: file content is incomplete.", err)
	}

	now := e.now()
	record := &storage.Transfer{
		FileName:       req.FileName,
		StoragePointer: key,
		FileSize:       req.Size,
		ContentType:    contentType,
		SenderEmail:    req.SenderEmail,
		RecipientEmail: req.RecipientEmail,
		UploadedAt:     now,
		IsDownloaded:   false,
		ExpiresAt:      now.Add(e.opts.LinkTTL),
	}
	id, err := e.createRecord(ctx, record)
	if err != nil {
		log.Error("falha ao registrar transferência", zap.Error(err))
		e.discard(key, log)
		return submitFailure(PersistenceError, "Error uploading file: could not save transfer.", err)
	}

	mctx, cancel = e.metaCtx(ctx)
	err = e.ledger.CommitQuota(mctx, sender.ID, req.Size)
	cancel()
	if err != nil {
		log.Error("falha ao consumir cota", zap.Int64("transfer_id", id), zap.Error(err))
		return submitFailure(PersistenceError, "Error uploading file: could not update quota.", err)
	}

	link := record.Token
	if req.Link != nil {
		link = req.Link(record.Token)
	}

	if err := e.notifier.Notify(ctx, req.RecipientEmail, req.SenderEmail, req.FileName, link); err != nil {
		log.Warn("transferência gravada, mas a notificação falhou", zap.Int64("transfer_id", id), zap.Error(err))
		return SubmitResult{
			Category:   NotificationError,
			Message:    "File uploaded, but the recipient could not be notified.",
			TransferID: id,
			Token:      record.Token,
			cause:      err,
		}
	}

	log.Info("transferência criada", zap.Int64("transfer_id", id))
	return SubmitResult{
		Success:    true,
		Message:    "File uploaded successfully and recipient has been notified.",
		TransferID: id,
		Token:      record.Token,
	}
}

// createRecord grava o registro gerando um novo token a cada colisão
func (e *Engine) createRecord(ctx context.Context, record *storage.Transfer) (int64, error) {
	var lastErr error
	for attempt := 1; attempt <= e.opts.TokenAttempts; attempt++ {
		token, err := e.newToken()
		if err != nil {
			return 0, err
		}
		record.Token = token

		mctx, cancel := e.metaCtx(ctx)
		id, err := e.records.CreateTransfer(mctx, record)
		cancel()
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, storage.ErrDuplicateToken) {
			return 0, err
		}

		e.logger.Warn("token duplicado, gerando outro", zap.Int("attempt", attempt))
		lastErr = err
	}
	return 0, fmt.Errorf("%d tentativas de token esgotadas: %w", e.opts.TokenAttempts, lastErr)
}

// discard remove um objeto órfão; falhas são apenas registradas
func (e *Engine) discard(key string, log *zap.Logger) {
	ctx, cancel := e.metaCtx(context.Background())
	defer cancel()
	if err := e.objects.Delete(ctx, key); err != nil {
		log.Warn("falha ao remover objeto órfão", zap.String("key", key), zap.Error(err))
	}
}

// resolve busca a transferência pelo token e verifica a validade
func (e *Engine) resolve(ctx context.Context, token string) (*storage.Transfer, *Error) {
	if token == "" {
		return nil, newError(ValidationError, "Access token is required.", nil)
	}

	mctx, cancel := e.metaCtx(ctx)
	record, err := e.records.GetTransferByToken(mctx, token)
	cancel()
	if errors.Is(err, storage.ErrTransferNotFound) {
		return nil, newError(NotFound, "File not found or invalid access token.", err)
	} else if err != nil {
		return nil, newError(PersistenceError, "Error downloading file: could not load transfer.", err)
	}

	if record.Expired(e.now()) {
		return nil, newError(Expired, "This file link has expired.", nil)
	}

	return record, nil
}

// Claim abre o arquivo de uma transferência válida. Resgates repetidos antes
// da expiração são permitidos; só o primeiro registra a data do download.
func (e *Engine) Claim(ctx context.Context, token string) ClaimResult {
	record, rerr := e.resolve(ctx, token)
	if rerr != nil {
		return claimFailure(rerr.Category, rerr.Message, rerr.Err)
	}

	log := e.logger.With(zap.Int64("transfer_id", record.ID))

	body, err := e.objects.Get(ctx, record.StoragePointer)
	if err != nil {
		log.Error("falha ao ler arquivo", zap.String("key", record.StoragePointer), zap.Error(err))
		return claimFailure(StorageError, "Error downloading file: could not read file.", err)
	}

	if !record.IsDownloaded {
		mctx, cancel := e.metaCtx(ctx)
		if err := e.records.MarkDownloaded(mctx, record.ID, e.now()); err != nil {
			log.Warn("falha ao marcar download", zap.Error(err))
		}
		cancel()
	}

	log.Info("transferência resgatada")
	return ClaimResult{
		Success:     true,
		Body:        body,
		FileName:    record.FileName,
		ContentType: record.ContentType,
		Size:        record.FileSize,
	}
}

// DirectLink retorna uma URL pré-assinada do backend, ou o caminho relativo
// de download quando o backend não gera URLs assinadas
func (e *Engine) DirectLink(ctx context.Context, token string) (string, error) {
	record, rerr := e.resolve(ctx, token)
	if rerr != nil {
		return "", rerr
	}

	ttl := e.opts.PresignTTL
	if left := record.ExpiresAt.Sub(e.now()); left < ttl {
		ttl = left
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	link, err := e.objects.PresignedURL(ctx, record.StoragePointer, ttl)
	if errors.Is(err, objectstore.ErrPresignUnsupported) {
		return DownloadPath(token), nil
	} else if err != nil {
		return "", newError(StorageError, "Error creating download link.", err)
	}
	return link, nil
}

// DownloadPath é o caminho relativo da rota de download
func DownloadPath(token string) string {
	return "/download?token=" + url.QueryEscape(token)
}

// ListForRecipient lista as transferências destinadas a um email, da mais recente para a mais antiga
func (e *Engine) ListForRecipient(ctx context.Context, email string) ([]TransferSummary, error) {
	if email == "" {
		return nil, newError(ValidationError, "Recipient email is required.", nil)
	}

	mctx, cancel := e.metaCtx(ctx)
	defer cancel()
	records, err := e.records.ListTransfersByRecipient(mctx, email)
	if err != nil {
		return nil, newError(PersistenceError, "Error listing transfers.", err)
	}

	now := e.now()
	summaries := make([]TransferSummary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, summarize(r, now))
	}
	return summaries, nil
}

// QuotaStatus informa o uso de cota do remetente, criando-o se necessário
func (e *Engine) QuotaStatus(ctx context.Context, email string) (QuotaStatus, error) {
	if email == "" {
		return QuotaStatus{}, newError(ValidationError, "Sender email is required.", nil)
	}

	mctx, cancel := e.metaCtx(ctx)
	defer cancel()
	sender, err := e.ledger.GetOrCreateSender(mctx, email)
	if err != nil {
		return QuotaStatus{}, newError(PersistenceError, "Error loading quota.", err)
	}

	status := QuotaStatus{
		Email: sender.Email,
		Tier:  sender.Tier,
		Used:  sender.UsedQuota,
	}
	if sender.Tier == storage.TierPremium {
		status.Unlimited = true
		return status, nil
	}

	status.Limit = e.opts.FreeQuotaBytes
	status.Available = e.opts.FreeQuotaBytes - sender.UsedQuota
	if status.Available < 0 {
		status.Available = 0
	}
	return status, nil
}
