package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Highlight marks the from/to squares of the last applied move.
type Highlight struct {
	From nchess.Square
	To   nchess.Square
}

// Options selects the overlays drawn on top of the position.
type Options struct {
	Selected    *nchess.Square
	Targets     []nchess.Square
	LastMove    *Highlight
	CheckSquare *nchess.Square
	WhiteBottom bool
}

var (
	lightSquare    = color.RGBA{233, 207, 163, 255}
	darkSquare     = color.RGBA{187, 136, 96, 255}
	selectionFill  = color.NRGBA{R: 255, G: 228, B: 120, A: 150}
	lastMoveFill   = color.NRGBA{R: 170, G: 200, B: 120, A: 130}
	checkFill      = color.NRGBA{R: 224, G: 70, B: 60, A: 150}
	targetDotColor = color.NRGBA{R: 40, G: 44, B: 52, A: 110}
	labelColor     = color.NRGBA{R: 60, G: 42, B: 24, A: 255}
)

// Renderer rasterizes a position into a PNG snapshot.
type Renderer struct {
	squareSize int
}

func New() *Renderer {
	return &Renderer{squareSize: 72}
}

func (r *Renderer) PNG(ctx context.Context, board *nchess.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}

	const margin = 24
	boardSize := r.squareSize * 8
	origin := image.Point{X: margin, Y: margin / 2}
	img := image.NewRGBA(image.Rect(0, 0, boardSize+margin+margin/2, boardSize+margin+margin/2))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, imagedraw.Src)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.drawSquares(img, origin, opts.WhiteBottom)

	if opts.LastMove != nil {
		r.overlay(img, opts.LastMove.From, origin, opts.WhiteBottom, lastMoveFill)
		r.overlay(img, opts.LastMove.To, origin, opts.WhiteBottom, lastMoveFill)
	}
	if opts.CheckSquare != nil {
		r.overlay(img, *opts.CheckSquare, origin, opts.WhiteBottom, checkFill)
	}
	if opts.Selected != nil {
		r.overlay(img, *opts.Selected, origin, opts.WhiteBottom, selectionFill)
	}

	if err := r.drawPieces(img, board, origin, opts.WhiteBottom); err != nil {
		return nil, err
	}

	for _, sq := range opts.Targets {
		rect := r.squareRect(sq, origin, opts.WhiteBottom)
		center := image.Point{
			X: rect.Min.X + r.squareSize/2,
			Y: rect.Min.Y + r.squareSize/2,
		}
		drawDisc(img, center, r.squareSize/7, targetDotColor)
	}

	r.drawLabels(img, origin, opts.WhiteBottom, margin)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawSquares(img *image.RGBA, origin image.Point, whiteBottom bool) {
	for f := 0; f < 8; f++ {
		for rank := 0; rank < 8; rank++ {
			sq := nchess.NewSquare(nchess.File(f), nchess.Rank(rank))
			clr := lightSquare
			if (f+rank)%2 == 0 {
				clr = darkSquare
			}
			imagedraw.Draw(img, r.squareRect(sq, origin, whiteBottom), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func (r *Renderer) drawPieces(img *image.RGBA, board *nchess.Board, origin image.Point, whiteBottom bool) error {
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		pieceImg, err := renderPieceImage(piece, r.squareSize)
		if err != nil {
			return err
		}
		imagedraw.Draw(img, r.squareRect(sq, origin, whiteBottom), pieceImg, image.Point{}, imagedraw.Over)
	}
	return nil
}

func (r *Renderer) overlay(img *image.RGBA, sq nchess.Square, origin image.Point, whiteBottom bool, clr color.Color) {
	imagedraw.Draw(img, r.squareRect(sq, origin, whiteBottom), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

// squareRect maps a square to pixel space, honoring board orientation.
func (r *Renderer) squareRect(sq nchess.Square, origin image.Point, whiteBottom bool) image.Rectangle {
	row, col := rowCol(sq, whiteBottom)
	x := origin.X + col*r.squareSize
	y := origin.Y + row*r.squareSize
	return image.Rect(x, y, x+r.squareSize, y+r.squareSize)
}

func rowCol(sq nchess.Square, whiteBottom bool) (int, int) {
	rank := int(sq.Rank())
	file := int(sq.File())
	if whiteBottom {
		return 7 - rank, file
	}
	return rank, 7 - file
}

func (r *Renderer) drawLabels(img *image.RGBA, origin image.Point, whiteBottom bool, margin int) {
	drawer := &font.Drawer{
		Dst:  img,
		Face: basicfont.Face7x13,
		Src:  image.NewUniform(labelColor),
	}
	boardBottom := origin.Y + 8*r.squareSize

	for i := 0; i < 8; i++ {
		rank := nchess.Rank(i)
		file := nchess.File(i)
		rankRow, _ := rowCol(nchess.NewSquare(nchess.FileA, rank), whiteBottom)
		_, fileCol := rowCol(nchess.NewSquare(file, nchess.Rank1), whiteBottom)

		rankY := origin.Y + rankRow*r.squareSize + r.squareSize/2 + 4
		drawer.Dot = fixed.P(origin.X-margin*2/3, rankY)
		drawer.DrawString(rank.String())

		fileX := origin.X + fileCol*r.squareSize + r.squareSize/2 - 3
		drawer.Dot = fixed.P(fileX, boardBottom+margin*2/3)
		drawer.DrawString(file.String())
	}
}

func drawDisc(img *image.RGBA, center image.Point, radius int, clr color.Color) {
	if radius <= 0 {
		blendPixel(img, center.X, center.Y, clr)
		return
	}
	rSquared := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > rSquared {
				continue
			}
			blendPixel(img, center.X+x, center.Y+y, clr)
		}
	}
}

func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}

	sr, sg, sb, sa := clr.RGBA()
	srcA := float64(sa) / 65535.0
	if srcA <= 0 {
		return
	}
	srcR := float64(sr) / 65535.0
	srcG := float64(sg) / 65535.0
	srcB := float64(sb) / 65535.0

	dst := img.RGBAAt(x, y)
	dstA := float64(dst.A) / 255.0

	var dstR, dstG, dstB float64
	if dstA > 0 {
		inv := 1.0 / dstA
		dstR = float64(dst.R) / 255.0 * inv
		dstG = float64(dst.G) / 255.0 * inv
		dstB = float64(dst.B) / 255.0 * inv
	}

	outA := srcA + dstA*(1-srcA)
	if outA <= 0 {
		img.SetRGBA(x, y, color.RGBA{})
		return
	}

	outR := (srcR*srcA + dstR*dstA*(1-srcA)) / outA
	outG := (srcG*srcA + dstG*dstA*(1-srcA)) / outA
	outB := (srcB*srcA + dstB*dstA*(1-srcA)) / outA

	img.SetRGBA(x, y, color.RGBA{
		R: floatToUint8(outR * outA * 255.0),
		G: floatToUint8(outG * outA * 255.0),
		B: floatToUint8(outB * outA * 255.0),
		A: floatToUint8(outA * 255.0),
	})
}

func floatToUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// BoardFromFEN rebuilds a board value from position notation.
func BoardFromFEN(fen string) (*nchess.Board, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	game := nchess.NewGame(opt)
	return game.Position().Board(), nil
}

// KingSquare locates the king of the given color.
func KingSquare(board *nchess.Board, c nchess.Color) (nchess.Square, bool) {
	for sq, piece := range board.SquareMap() {
		if piece.Type() == nchess.King && piece.Color() == c {
			return sq, true
		}
	}
	return 0, false
}
