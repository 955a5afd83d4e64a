package storage

import (
	"context"
	"fmt"
	"os"
)

type FactoryResult struct {
	Driver   string
	Archiver Archiver
}

func FromEnv(ctx context.Context) (FactoryResult, error) {
	driver := os.Getenv("ARCHIVE_DRIVER")
	if driver == "" {
		driver = "local"
	}

	switch driver {
	case "local":
		baseDir := envOr("ARCHIVE_LOCAL_DIR", "./storage/callbacks")
		return FactoryResult{Driver: "local", Archiver: NewLocal(baseDir)}, nil

	case "s3":
		region := envOr("S3_REGION", "")
		bucket := envOr("S3_BUCKET", "")
		prefix := envOr("S3_PREFIX", "callbacks")
		if region == "" || bucket == "" {
			return FactoryResult{}, fmt.Errorf("S3 config missing: S3_REGION, S3_BUCKET required")
		}
		s, err := NewS3(ctx, S3Config{Region: region, Bucket: bucket, Prefix: prefix})
		if err != nil {
			return FactoryResult{}, err
		}
		return FactoryResult{Driver: "s3", Archiver: s}, nil

	default:
		return FactoryResult{}, fmt.Errorf("unknown ARCHIVE_DRIVER: %s", driver)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
