package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamStore implementa Store sobre o object store do NATS JetStream
type JetStreamStore struct {
	conn  *nats.Conn
	js    jetstream.JetStream
	store jetstream.ObjectStore
}

// NewJetStreamStore conecta ao NATS e abre (ou cria) o bucket
func NewJetStreamStore(ctx context.Context, natsURL, bucket string) (*JetStreamStore, error) {
	conn, err := nats.Connect(natsURL, nats.Name("sendmyfiles"))
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar ao NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("falha ao criar contexto JetStream: %w", err)
	}

	store, err := js.ObjectStore(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		store, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "Arquivos enviados pelo SendMyFiles",
		})
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("falha ao abrir bucket %s: %w", bucket, err)
	}

	return &JetStreamStore{
		conn:  conn,
		js:    js,
		store: store,
	}, nil
}

// Put grava o objeto com o tipo de conteúdo nos cabeçalhos
func (s *JetStreamStore) Put(ctx context.Context, r io.Reader, size int64, fileName, contentType string) (string, error) {
	key := objectKey(fileName)
	meta := jetstream.ObjectMeta{
		Name: key,
		Headers: nats.Header{
			"Content-Type":  []string{contentTypeOrDefault(contentType)},
			"Original-Name": []string{fileName},
			"Declared-Size": []string{strconv.FormatInt(size, 10)},
		},
	}

	if _, err := s.store.Put(ctx, meta, r); err != nil {
		return "", fmt.Errorf("falha ao gravar objeto: %w", err)
	}
	return key, nil
}

// Get abre o objeto para leitura em streaming
func (s *JetStreamStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.store.Get(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("falha ao obter objeto: %w", err)
	}
	return result, nil
}

// PresignedURL não é suportado pelo JetStream
func (s *JetStreamStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "", ErrPresignUnsupported
}

// Delete remove o objeto do bucket. O JetStream aceita apagar um objeto já
// apagado, por isso a existência é verificada antes.
func (s *JetStreamStore) Delete(ctx context.Context, key string) error {
	if _, err := s.store.GetInfo(ctx, key); errors.Is(err, jetstream.ErrObjectNotFound) {
		return ErrObjectNotFound
	} else if err != nil {
		return fmt.Errorf("falha ao consultar objeto: %w", err)
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("falha ao remover objeto: %w", err)
	}
	return nil
}

// Close fecha a conexão com o NATS
func (s *JetStreamStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
