package transfer

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
)

// formatBytes formata em B, KB, MB ou GB com até duas casas decimais
func formatBytes(n int64) string {
	sizes := []string{"B", "KB", "MB", "GB"}
	value := float64(n)
	order := 0
	for value >= 1024 && order < len(sizes)-1 {
		order++
		value /= 1024
	}
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizes[order]
}

// newToken gera 16 bytes aleatórios em hexadecimal (32 caracteres)
func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("falha ao gerar token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
