// Package scenestore persists committed marker scenes to MinIO so a restarted
// server can republish the scene it last flushed.
package scenestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"markerhub/internal/marker"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// Scene is one persisted registry snapshot.
type Scene struct {
	Namespace string              `json:"namespace"`
	SeqNum    uint64              `json:"seq_num"`
	SavedAt   time.Time           `json:"saved_at"`
	Markers   []marker.Definition `json:"markers"`
}

type Store struct {
	client *minio.Client
	bucket string
}

// New creates a scene store backed by the given MinIO endpoint.
func New(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "marker-scenes"
	}
	return &Store{client: client, bucket: bucket}, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// ObjectKey returns the object name a namespace's scene is stored under.
func ObjectKey(namespace string) string {
	return path.Join("scenes", namespace+".json")
}

// SaveScene writes the committed scene for a namespace, replacing the
// previous snapshot.
func (s *Store) SaveScene(ctx context.Context, scene Scene) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(scene)
	if err != nil {
		return fmt.Errorf("marshal scene %s: %w", scene.Namespace, err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, ObjectKey(scene.Namespace),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json; charset=utf-8"})
	if err != nil {
		return fmt.Errorf("put scene %s: %w", scene.Namespace, err)
	}
	return nil
}

// LoadScene reads the persisted scene for a namespace. Returns an error if
// no snapshot exists.
func (s *Store) LoadScene(ctx context.Context, namespace string) (*Scene, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ObjectKey(namespace), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get scene %s: %w", namespace, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", namespace, err)
	}
	var scene Scene
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("decode scene %s: %w", namespace, err)
	}
	return &scene, nil
}
