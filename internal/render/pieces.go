package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Piece glyphs are simple vector shapes on a 45x45 viewBox, rasterized
// on demand and cached per size.

const pieceSVGDoc = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45"><path d="%s" fill="%s" stroke="%s" stroke-width="1.4" stroke-linejoin="round"/></svg>`

var pieceShapes = map[nchess.PieceType]string{
	nchess.Pawn: "M22.5 10c-2.3 0-4.2 1.9-4.2 4.2 0 1 .4 2 1 2.7-2.1 1.3-3.5 3.6-3.5 6.2 0 2.1.9 4 2.4 5.3-3.4 1.9-5.7 5.4-5.7 9.6h20c0-4.2-2.3-7.7-5.7-9.6 1.5-1.3 2.4-3.2 2.4-5.3 0-2.6-1.4-4.9-3.5-6.2.6-.7 1-1.7 1-2.7 0-2.3-1.9-4.2-4.2-4.2z",
	nchess.Rook: "M12 38h21v-3H12zM14 34h17v-3H14zM15 30l-1-13h17l-1 13zM13 16v-7h4v3h3V9h5v3h3V9h4v7z",
	nchess.Knight: "M14 38h18c.5-9-1.4-16.3-7.5-20.3l.9-5.9-4.7 3.6-5.9-1.8 2.1 5C12.6 22.8 13.4 30.6 14 38zM20 14.5a1.2 1.2 0 110 .1z",
	nchess.Bishop: "M22.5 8.5a2.7 2.7 0 100 5.4 2.7 2.7 0 000-5.4zM18 31c-1.6-6 .5-11.4 4.5-15 4 3.6 6.1 9 4.5 15zM14.5 33h16v3h-16zM13 37.5h19v2.5H13z",
	nchess.Queen: "M12 34l-2.8-15 6.8 4.8 6.5-9.8 6.5 9.8 6.8-4.8L33 34zM12 36h21v3H12zM9 16.8a1.8 1.8 0 110 .1zM22.5 12.1a1.8 1.8 0 110 .1zM36 16.8a1.8 1.8 0 110 .1z",
	nchess.King: "M21 7h3v3.5h3.5v3H24V17h-3v-3.5h-3.5v-3H21zM15.5 20.5c4-3.2 10-3.2 14 0 3.3 4.7 2.5 9.8-1.2 13H16.7c-3.7-3.2-4.5-8.3-1.2-13zM14 35h17v3.5H14z",
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	shape, ok := pieceShapes[piece.Type()]
	if !ok {
		return nil, fmt.Errorf("no glyph for piece type %v", piece.Type())
	}
	fill, stroke := "#f0f0f0", "#2e2e2e"
	if piece.Color() == nchess.Black {
		fill, stroke = "#3a3a3a", "#101010"
	}
	doc := fmt.Sprintf(pieceSVGDoc, shape, fill, stroke)

	icon, err := oksvg.ReadIconStream(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
