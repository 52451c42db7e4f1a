package handler

import (
	"errors"
	"fmt"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/octobees/cardscan/internal/extraction"
)

const imageField = "image"

var errMissingImage = errors.New("missing image file")

// readImage loads the multipart "image" field, refusing uploads above maxBytes.
func readImage(c echo.Context, maxBytes int64) (extraction.Image, error) {
	fileHeader, err := c.FormFile(imageField)
	if err != nil {
		return extraction.Image{}, errMissingImage
	}
	if maxBytes > 0 && fileHeader.Size > maxBytes {
		return extraction.Image{}, fmt.Errorf("image exceeds %d bytes", maxBytes)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return extraction.Image{}, errors.New("unable to open image")
	}
	defer file.Close()

	reader := io.Reader(file)
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return extraction.Image{}, errors.New("unable to read image")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return extraction.Image{}, fmt.Errorf("image exceeds %d bytes", maxBytes)
	}
	if len(data) == 0 {
		return extraction.Image{}, errors.New("image file is empty")
	}

	return extraction.Image{Data: data, MIMEType: fileHeader.Header.Get(echo.HeaderContentType)}, nil
}
