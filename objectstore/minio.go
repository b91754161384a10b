package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/carloslauriano/sendMyFiles/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore implementa Store sobre um servidor compatível com S3
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore cria o cliente e garante que o bucket existe
func NewMinioStore(ctx context.Context, cfg config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("falha ao criar cliente MinIO: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("falha ao verificar bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("falha ao criar bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Put envia o conteúdo com tamanho conhecido
func (s *MinioStore) Put(ctx context.Context, r io.Reader, size int64, fileName, contentType string) (string, error) {
	key := objectKey(fileName)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentTypeOrDefault(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("falha ao enviar objeto: %w", err)
	}
	return key, nil
}

// Get abre o objeto; a existência é confirmada antes de devolver o leitor
func (s *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapError(err, "falha ao obter objeto")
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, s.mapError(err, "falha ao obter objeto")
	}
	return obj, nil
}

// PresignedURL gera uma URL GET temporária para o objeto
func (s *MinioStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("falha ao gerar URL pré-assinada: %w", err)
	}
	return u.String(), nil
}

// Delete remove o objeto do bucket
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s.mapError(err, "falha ao remover objeto")
	}
	return nil
}

func (s *MinioStore) Close() error {
	return nil
}

func (s *MinioStore) mapError(err error, msg string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrObjectNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
