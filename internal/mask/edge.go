package mask

import (
	"srxmask/internal/config"
)

// EdgeMask masks the border band described by crop on a rows x cols grid.
// Only the interior rows [Top, rows-Bottom) x cols [Left, cols-Right) stay unmasked.
func EdgeMask(rows, cols int, crop config.Crop) (Mask, error) {
	if err := crop.Validate(rows, cols); err != nil {
		return Mask{}, err
	}
	m := Full(rows, cols)
	in := crop.Interior(rows, cols)
	for r := in.Y; r < in.Y+in.Height; r++ {
		row := m.Data[r*cols : (r+1)*cols]
		for c := in.X; c < in.X+in.Width; c++ {
			row[c] = false
		}
	}
	return m, nil
}
