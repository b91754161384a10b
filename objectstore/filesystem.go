package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FilesystemStore grava objetos como arquivos em um diretório local
type FilesystemStore struct {
	root string
}

// NewFilesystemStore cria o diretório raiz se necessário
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if root == "" {
		return nil, errors.New("storage.local_path é obrigatório para o backend filesystem")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("falha ao criar diretório de armazenamento: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

func (s *FilesystemStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", ErrObjectNotFound
	}
	return filepath.Join(s.root, key), nil
}

// Put grava em um arquivo temporário e o renomeia para a chave final
func (s *FilesystemStore) Put(ctx context.Context, r io.Reader, size int64, fileName, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := objectKey(fileName)
	final, err := s.path(key)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("falha ao criar arquivo temporário: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("falha ao gravar arquivo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("falha ao fechar arquivo: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("falha ao mover arquivo: %w", err)
	}

	return key, nil
}

// Get abre o arquivo do objeto
func (s *FilesystemStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("falha ao abrir arquivo: %w", err)
	}
	return f, nil
}

// PresignedURL não é suportado no sistema de arquivos local
func (s *FilesystemStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "", ErrPresignUnsupported
}

// Delete remove o arquivo do objeto
func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	err = os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		return ErrObjectNotFound
	} else if err != nil {
		return fmt.Errorf("falha ao remover arquivo: %w", err)
	}
	return nil
}

func (s *FilesystemStore) Close() error {
	return nil
}
