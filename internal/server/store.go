package server

import (
	"github.com/canaldelcongreso/portal/internal/config"
	"github.com/canaldelcongreso/portal/internal/errors"
	"github.com/canaldelcongreso/portal/pkg/upload"
)

// NewStore builds the upload store selected by storage.backend.
func NewStore(cfg *config.Config) (upload.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendDisk:
		store, err := upload.NewDiskStore(cfg.UploadRoot(), cfg.Storage.URLPrefix)
		if err != nil {
			return nil, errors.New("P120").
				WithDetail("storage.root is " + cfg.UploadRoot()).
				Wrap(err)
		}
		return store, nil

	case config.BackendS3:
		s3cfg := cfg.Storage.S3
		if s3cfg.Bucket == "" {
			return nil, errors.New("P106")
		}
		client := upload.NewS3Client(upload.S3Config{
			Endpoint:  s3cfg.Endpoint,
			Region:    s3cfg.Region,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
			PathStyle: s3cfg.PathStyle,
		})
		return upload.NewS3Store(client, s3cfg.Bucket, s3cfg.Prefix, s3cfg.PublicURL), nil

	default:
		return nil, errors.New("P102").
			WithDetail(`storage.backend is "` + cfg.Storage.Backend + `"`)
	}
}
