package colors

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/desertthunder/pulse/internal/shared"
	_ "golang.org/x/image/webp"
)

// maxImageBytes caps a downloaded cover image.
const maxImageBytes = 20 << 20

// fetchImage downloads the raw bytes at url.
func fetchImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &shared.WorkerError{Stage: shared.StageFetch, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &shared.WorkerError{Stage: shared.StageFetch, Err: shared.Aborted(ctx, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &shared.WorkerError{Stage: shared.StageFetch, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, &shared.WorkerError{Stage: shared.StageFetch, Err: shared.Aborted(ctx, err)}
	}
	if len(data) > maxImageBytes {
		return nil, &shared.WorkerError{Stage: shared.StageFetch, Err: fmt.Errorf("image exceeds %d bytes", maxImageBytes)}
	}
	return data, nil
}

// decodeImage decodes jpeg, png, gif or webp data.
func decodeImage(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &shared.WorkerError{Stage: shared.StageDecode, Err: err}
	}
	return img, format, nil
}
