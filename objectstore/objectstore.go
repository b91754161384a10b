package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/carloslauriano/sendMyFiles/config"
	"github.com/google/uuid"
)

// ErrObjectNotFound é retornado quando o objeto não existe no backend
var ErrObjectNotFound = errors.New("objeto não encontrado")

// ErrPresignUnsupported é retornado por backends que não geram URLs pré-assinadas
var ErrPresignUnsupported = errors.New("backend não suporta URLs pré-assinadas")

// Store é a interface do armazenamento de objetos
type Store interface {
	// Put grava o conteúdo e retorna a chave do objeto
	Put(ctx context.Context, r io.Reader, size int64, fileName, contentType string) (string, error)
	// Get abre o objeto para leitura; o chamador deve fechar o leitor
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// New cria o backend de armazenamento indicado em storage.backend
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "minio":
		return NewMinioStore(ctx, cfg)
	case "jetstream":
		return NewJetStreamStore(ctx, cfg.NATSURL, cfg.Bucket)
	case "filesystem":
		return NewFilesystemStore(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("backend de armazenamento não suportado: %s", cfg.Backend)
	}
}

// objectKey gera a chave {uuid}_{nome saneado}
func objectKey(fileName string) string {
	return uuid.NewString() + "_" + sanitizeFilename(fileName)
}

// sanitizeFilename remove componentes de diretório e separadores do nome
func sanitizeFilename(filename string) string {
	clean := filepath.Base(filepath.Clean(filename))
	clean = strings.ReplaceAll(clean, "/", "_")
	clean = strings.ReplaceAll(clean, "\\", "_")
	if clean == "." || clean == ".." || clean == "" {
		return "unnamed"
	}
	return clean
}

func contentTypeOrDefault(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}
