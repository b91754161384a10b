package transfer

import (
	"errors"
	"io"
)

var errBodyTooLarge = errors.New("conteúdo maior que o tamanho declarado")

// sizeGuard lê no máximo limit bytes e falha se a origem tiver mais
type sizeGuard struct {
	r     io.Reader
	limit int64
	read  int64
}

func (g *sizeGuard) Read(p []byte) (int, error) {
	if g.read >= g.limit {
		var probe [1]byte
		n, err := g.r.Read(probe[:])
		if n > 0 {
			return 0, errBodyTooLarge
		}
		return 0, err
	}

	if remaining := g.limit - g.read; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := g.r.Read(p)
	g.read += int64(n)
	return n, err
}
