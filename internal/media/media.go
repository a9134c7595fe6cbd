// Package media hands uploaded images to the image host and returns the
// URL it serves them from. Binary content is never stored locally.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

type Kind string

const (
	KindPost   Kind = "post"
	KindAvatar Kind = "avatar"
)

var ErrUnknownKind = errors.New("unknown upload kind")

// ErrDisabled is returned when no image host is configured.
var ErrDisabled = errors.New("uploads are not configured")

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPost, KindAvatar:
		return Kind(s), nil
	}
	return "", ErrUnknownKind
}

type Uploader interface {
	Upload(ctx context.Context, userID uint, kind Kind, file io.Reader) (string, error)
}

type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

var transformations = map[Kind]string{
	KindAvatar: "c_limit,w_400,h_400,q_auto",
	KindPost:   "c_limit,w_1200,h_1200,q_auto",
}

// CloudinaryUploader uploads to Cloudinary.
type CloudinaryUploader struct {
	api    uploadAPI
	folder string
	newID  func() string
}

// NewCloudinaryUploader connects with a cloudinary:// URL.
func NewCloudinaryUploader(cloudinaryURL, folder string) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary configuration error: %w", err)
	}
	return &CloudinaryUploader{api: &cld.Upload, folder: folder, newID: uuid.NewString}, nil
}

func (u *CloudinaryUploader) Upload(ctx context.Context, userID uint, kind Kind, file io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:         fmt.Sprintf("%s/%ss", u.folder, kind),
		PublicID:       fmt.Sprintf("%d_%s", userID, u.newID()),
		Transformation: transformations[kind],
	}
	res, err := u.api.Upload(ctx, file, params)
	if err != nil {
		return "", err
	}
	if res.Error.Message != "" {
		return "", errors.New(res.Error.Message)
	}
	return res.SecureURL, nil
}

// Disabled rejects every upload.
type Disabled struct{}

func (Disabled) Upload(context.Context, uint, Kind, io.Reader) (string, error) {
	return "", ErrDisabled
}
