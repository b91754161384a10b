package objectstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/carloslauriano/sendMyFiles/config"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runJetStreamServer sobe um nats-server embutido com JetStream habilitado
func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats-server não ficou pronto")
	}
	t.Cleanup(ns.Shutdown)

	return ns
}

func TestJetStreamStore(t *testing.T) {
	ns := runJetStreamServer(t)

	store, err := New(context.Background(), config.StorageConfig{
		Backend: "jetstream",
		NATSURL: ns.ClientURL(),
		Bucket:  "sendmyfiles-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exerciseStore(t, store)

	_, err = store.PresignedURL(context.Background(), "qualquer", time.Minute)
	assert.ErrorIs(t, err, ErrPresignUnsupported)
}

func TestJetStreamStoreReopensExistingBucket(t *testing.T) {
	ns := runJetStreamServer(t)
	ctx := context.Background()

	first, err := NewJetStreamStore(ctx, ns.ClientURL(), "reaberto")
	require.NoError(t, err)
	defer first.Close()

	second, err := NewJetStreamStore(ctx, ns.ClientURL(), "reaberto")
	require.NoError(t, err)
	defer second.Close()

	key, err := first.Put(ctx, strings.NewReader("abc"), 3, "a.txt", "text/plain")
	require.NoError(t, err)

	rc, err := second.Get(ctx, key)
	require.NoError(t, err)
	rc.Close()
}
