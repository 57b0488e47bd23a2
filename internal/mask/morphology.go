package mask

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

type morphOp int

const (
	opDilate morphOp = iota
	opErode
)

// binaryMorph applies a size x size rectangular dilation or erosion to m.
// Pixels outside the grid count as unmasked for both operations, so erosion
// retracts regions touching the border.
func binaryMorph(m Mask, size int, op morphOp) Mask {
	src := maskToMat(m)
	defer src.Close()

	pad := size
	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(src, &padded, pad, pad, pad, pad, gocv.BorderConstant, color.RGBA{})

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: size, Y: size})
	defer kernel.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	switch op {
	case opDilate:
		gocv.Dilate(padded, &dst, kernel)
	case opErode:
		gocv.Erode(padded, &dst, kernel)
	}

	out := New(m.Rows, m.Cols)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			out.Data[r*m.Cols+c] = dst.GetUCharAt(r+pad, c+pad) > 0
		}
	}
	return out
}

// dilate grows masked regions by a size x size square.
func dilate(m Mask, size int) Mask {
	return binaryMorph(m, size, opDilate)
}

// erode shrinks masked regions by a size x size square.
func erode(m Mask, size int) Mask {
	return binaryMorph(m, size, opErode)
}

// minFilter returns the minimum over each size x size window, ignoring
// positions outside the image.
func minFilter(img *mat.Dense, size int) *mat.Dense {
	src := denseToMat(img)
	defer src.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: size, Y: size})
	defer kernel.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Erode(src, &dst, kernel)

	return matToDense(dst)
}

func maskToMat(m Mask) gocv.Mat {
	out := gocv.NewMatWithSize(m.Rows, m.Cols, gocv.MatTypeCV8U)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			var v uint8
			if m.Data[r*m.Cols+c] {
				v = 255
			}
			out.SetUCharAt(r, c, v)
		}
	}
	return out
}

func denseToMat(d *mat.Dense) gocv.Mat {
	rows, cols := d.Dims()
	out := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV64F)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.SetDoubleAt(r, c, d.At(r, c))
		}
	}
	return out
}

func matToDense(m gocv.Mat) *mat.Dense {
	rows, cols := m.Rows(), m.Cols()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.Set(r, c, m.GetDoubleAt(r, c))
		}
	}
	return out
}
