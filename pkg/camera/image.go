package camera

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"github.com/teslashibe/go-pokedex/internal/httpc"
)

// EncodeFrame scales img onto a width x height surface and encodes it as a
// base64 JPEG Frame. A zero-area surface yields an empty Frame, not an error.
func EncodeFrame(img image.Image, width, height, quality int) (Frame, error) {
	frame := Frame{MimeType: MimeJPEG, CapturedAt: time.Now()}
	if width <= 0 || height <= 0 {
		return frame, nil
	}

	surface := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(surface, surface.Bounds(), img, img.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, surface, &jpeg.Options{Quality: quality}); err != nil {
		return frame, fmt.Errorf("camera: encode jpeg: %w", err)
	}

	frame.Data = base64.StdEncoding.EncodeToString(buf.Bytes())
	return frame, nil
}

// ImageToBase64 loads an image from an http(s) URL or a local path and
// returns its bytes base64-encoded. Any failure is logged and yields "".
func ImageToBase64(ctx context.Context, src string) string {
	logger := slog.Default().With("component", "camera.image")

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		data, err = httpc.Fetch(ctx, src)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		logger.Error("image conversion failed", "src", src, "error", err)
		return ""
	}

	return base64.StdEncoding.EncodeToString(data)
}

// DecodeImage decodes a base64 payload into an image.
func DecodeImage(b64 string) (image.Image, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
