// Package media uploads staged files to the hosting API and hands back
// their public URLs.
package media

import (
	"context"
	"errors"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/psantos/loro/internal/config"
	"go.uber.org/zap"
)

// Uploader sends one staged file to the media host. Returns the secure
// URL of the hosted asset.
type Uploader interface {
	Upload(ctx context.Context, path string, isVideo bool) (string, error)
}

// Cloudinary uploads to the Cloudinary REST API.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	logger *zap.Logger
}

// NewCloudinary creates an uploader from media credentials.
func NewCloudinary(cfg config.Media, logger *zap.Logger) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, err
	}
	return &Cloudinary{cld: cld, logger: logger}, nil
}

// Upload implements Uploader. Video uploads must be tagged with the
// video resource type or the host rejects the payload.
func (c *Cloudinary) Upload(ctx context.Context, path string, isVideo bool) (string, error) {
	params := uploader.UploadParams{}
	if isVideo {
		params.ResourceType = "video"
	}

	resp, err := c.cld.Upload.Upload(ctx, path, params)
	if err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", errors.New(resp.Error.Message)
	}

	c.logger.Info("media uploaded",
		zap.String("path", path),
		zap.Bool("video", isVideo))
	return resp.SecureURL, nil
}
