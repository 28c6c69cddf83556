package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// ErrInvalidAssetURL is returned when a URL does not point at a Cloudinary delivery path.
var ErrInvalidAssetURL = errors.New("not a cloudinary asset url")

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores lost and found photos on Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload stores the image under name inside the configured folder and returns its secure URL.
// The name is used verbatim as the public id, so callers pass an already sanitised key.
func (s *Service) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	overwrite := false
	params := uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     strings.TrimSuffix(name, path.Ext(name)),
		ResourceType: "image",
		Overwrite:    &overwrite,
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("file uploaded to cloudinary")

	return result.SecureURL, nil
}

// DeleteByURL destroys the asset behind a delivery URL. An asset that is already gone is not an error.
func (s *Service) DeleteByURL(ctx context.Context, assetURL string) error {
	publicID, err := PublicIDFromURL(assetURL)
	if err != nil {
		return err
	}

	invalidate := true
	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: "image",
		Invalidate:   &invalidate,
	})
	if err != nil {
		return fmt.Errorf("failed to destroy asset %s: %w", publicID, err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("failed to destroy asset %s: %s", publicID, result.Error.Message)
	}

	switch result.Result {
	case "ok":
		s.logger.Info().Str("public_id", publicID).Msg("asset removed from cloudinary")
	case "not found":
		s.logger.Debug().Str("public_id", publicID).Msg("asset already absent")
	default:
		return fmt.Errorf("failed to destroy asset %s: %s", publicID, result.Result)
	}
	return nil
}

// PublicIDFromURL extracts the public id from a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v1712/gema/lost-found/1712_cap.jpg.
func PublicIDFromURL(assetURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(assetURL))
	if err != nil || parsed.Path == "" {
		return "", ErrInvalidAssetURL
	}

	_, rest, found := strings.Cut(parsed.Path, "/upload/")
	if !found || rest == "" {
		return "", ErrInvalidAssetURL
	}

	segments := strings.Split(rest, "/")
	if len(segments) > 1 && isVersionSegment(segments[0]) {
		segments = segments[1:]
	}

	publicID := strings.Join(segments, "/")
	publicID = strings.TrimSuffix(publicID, path.Ext(publicID))
	if publicID == "" {
		return "", ErrInvalidAssetURL
	}

	if decoded, err := url.PathUnescape(publicID); err == nil {
		publicID = decoded
	}
	return publicID, nil
}

func isVersionSegment(segment string) bool {
	if len(segment) < 2 || segment[0] != 'v' {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
