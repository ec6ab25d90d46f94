package app

import (
	"fmt"
	"log"
	"strings"

	"redline/internal/gateway/config"
	artifactrepo "redline/internal/gateway/repository/artifact"
)

func initArtifactStore(cfg *config.Config) (artifactrepo.Store, error) {
	origin, err := chooseArtifactOrigin(cfg)
	if err != nil {
		return nil, err
	}
	return artifactrepo.NewCachedStore(origin, artifactrepo.DefaultCacheConfig()), nil
}

func chooseArtifactOrigin(cfg *config.Config) (artifactrepo.Store, error) {
	if cfg.Artifact.CanUseS3() {
		s3Cfg := artifactrepo.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		}
		s3Store, err := artifactrepo.NewS3Store(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact s3 store: %w", err)
		}
		log.Printf("artifact store: s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint)
		return s3Store, nil
	}

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		pgStore, err := artifactrepo.NewPostgresStore(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact postgres store: %w", err)
		}
		log.Printf("artifact store: postgres")
		return pgStore, nil
	}

	if cfg.Artifact.Enabled {
		log.Printf("artifact store: using in-memory fallback (s3 config incomplete)")
	}
	return artifactrepo.NewMemoryStore(), nil
}
