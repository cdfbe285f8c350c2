package runtime

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// Icon is a window icon given either as a file path or raw image bytes.
type Icon struct {
	Path string
	Raw  []byte
}

// IconFromFile returns an icon read from path when converted.
func IconFromFile(path string) Icon {
	return Icon{Path: path}
}

// IconFromBytes returns an icon holding encoded image bytes.
func IconFromBytes(raw []byte) Icon {
	return Icon{Raw: raw}
}

// Bytes returns the encoded image.
func (i Icon) Bytes() ([]byte, error) {
	if len(i.Raw) > 0 {
		return i.Raw, nil
	}
	if i.Path == "" {
		return nil, fmt.Errorf("%w: empty icon", ErrInvalidIcon)
	}
	data, err := os.ReadFile(i.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIcon, err)
	}
	return data, nil
}

// DecodedIcon is an icon the engine has validated.
type DecodedIcon struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// DecodeIcon validates that the icon is a PNG or JPEG image.
func DecodeIcon(i Icon) (DecodedIcon, error) {
	data, err := i.Bytes()
	if err != nil {
		return DecodedIcon{}, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return DecodedIcon{}, fmt.Errorf("%w: %w", ErrInvalidIcon, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return DecodedIcon{}, fmt.Errorf("%w: zero-sized image", ErrInvalidIcon)
	}
	return DecodedIcon{Data: data, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
