package gdrive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mentorium/backend/internal/platform/apierr"
	"github.com/mentorium/backend/internal/platform/ctxutil"
	"github.com/mentorium/backend/internal/platform/logger"
)

// Client downloads publicly shared Drive files through the uc?export=download
// endpoint. No OAuth: course resources are link-shared by the catalog.
type Client interface {
	Download(ctx context.Context, driveID, destPath string) error
}

type client struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
}

func New(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimSpace(os.Getenv("GDRIVE_EXPORT_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://drive.google.com/uc"
	}
	return &client{
		log:     log.With("client", "GDriveClient"),
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

func (c *client) Download(ctx context.Context, driveID, destPath string) error {
	driveID = strings.TrimSpace(driveID)
	if driveID == "" {
		return apierr.Newf(http.StatusBadRequest, apierr.CodeInvalidArgument, "drive id required")
	}

	u := fmt.Sprintf("%s?export=download&id=%s", c.baseURL, driveID)
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), "GET", u, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apierr.New(http.StatusBadGateway, apierr.CodeFetchFailed, fmt.Errorf("drive download: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierr.Newf(http.StatusBadGateway, apierr.CodeFetchFailed, "drive download http %d for id %s", resp.StatusCode, driveID)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return apierr.New(http.StatusInternalServerError, apierr.CodeFetchFailed, fmt.Errorf("create %s: %w", destPath, err))
	}
	written, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(destPath)
		return apierr.New(http.StatusBadGateway, apierr.CodeFetchFailed, fmt.Errorf("drive body copy: %w", err))
	}

	c.log.Debug("Drive file downloaded", "drive_id", driveID, "bytes", written, "dest", destPath)
	return nil
}
