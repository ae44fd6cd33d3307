// Package s3 keeps seed scripts in an S3 compatible bucket (MinIO in
// development) under <prefix>/seeds/.
package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/querycraft/querycraft/internal/config"
	"github.com/querycraft/querycraft/internal/storage"
)

// checksumMeta is the user metadata entry holding the script's SHA-256.
const checksumMeta = "Script-Sha256"

type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
	// CreateBucket makes the bucket on first use. Only publishing needs it.
	CreateBucket bool
}

func ConfigFrom(cfg config.ObjectStoreConfig) Config {
	return Config{
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		Bucket:          cfg.Bucket,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		UseSSL:          cfg.UseSSL,
		Prefix:          cfg.Prefix,
	}
}

// scriptObject is what the bucket reports about one stored object.
type scriptObject struct {
	key          string
	size         int64
	etag         string
	checksum     string
	lastModified time.Time
}

type scriptAPI interface {
	upload(ctx context.Context, bucket, key string, script []byte, checksum string) (scriptObject, error)
	download(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	head(ctx context.Context, bucket, key string) (scriptObject, error)
	list(ctx context.Context, bucket, prefix string) ([]scriptObject, error)
	bucketExists(ctx context.Context, bucket string) (bool, error)
	makeBucket(ctx context.Context, bucket, region string) error
}

// Bucket implements storage.ScriptStore.
type Bucket struct {
	api    scriptAPI
	name   string
	prefix string
}

var _ storage.ScriptStore = (*Bucket)(nil)

func Open(ctx context.Context, cfg Config) (*Bucket, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	api, err := dialMinio(cfg)
	if err != nil {
		return nil, err
	}
	bucket, err := newBucket(cfg.Bucket, cfg.Prefix, api)
	if err != nil {
		return nil, err
	}
	if cfg.CreateBucket {
		if err := bucket.ensureExists(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return bucket, nil
}

func newBucket(name, prefix string, api scriptAPI) (*Bucket, error) {
	if api == nil {
		return nil, fmt.Errorf("script api is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	prefix = path.Clean("/" + strings.TrimSpace(prefix))
	return &Bucket{api: api, name: strings.TrimSpace(name), prefix: strings.TrimPrefix(prefix, "/")}, nil
}

// PublishScript uploads script under its seed key with the SQL content type
// and records its checksum.
func (b *Bucket) PublishScript(ctx context.Context, name string, script []byte) (storage.ScriptInfo, error) {
	key, err := b.scriptKey(name)
	if err != nil {
		return storage.ScriptInfo{}, err
	}
	if len(bytes.TrimSpace(script)) == 0 {
		return storage.ScriptInfo{}, fmt.Errorf("seed script %q is empty", name)
	}
	sum := sha256.Sum256(script)
	checksum := hex.EncodeToString(sum[:])

	object, err := b.api.upload(ctx, b.name, key, script, checksum)
	if err != nil {
		return storage.ScriptInfo{}, fmt.Errorf("publish %s/%s: %w", b.name, key, err)
	}
	object.checksum = checksum
	return b.info(object), nil
}

func (b *Bucket) OpenScript(ctx context.Context, name string) (io.ReadCloser, error) {
	key, err := b.scriptKey(name)
	if err != nil {
		return nil, err
	}
	body, err := b.api.download(ctx, b.name, key)
	if err != nil {
		return nil, b.wrap("open", key, err)
	}
	return body, nil
}

func (b *Bucket) StatScript(ctx context.Context, name string) (storage.ScriptInfo, error) {
	key, err := b.scriptKey(name)
	if err != nil {
		return storage.ScriptInfo{}, err
	}
	object, err := b.api.head(ctx, b.name, key)
	if err != nil {
		return storage.ScriptInfo{}, b.wrap("stat", key, err)
	}
	return b.info(object), nil
}

// ListScripts returns the .sql objects under the seed directory sorted by
// name.
func (b *Bucket) ListScripts(ctx context.Context) ([]storage.ScriptInfo, error) {
	dir := path.Join(b.prefix, storage.SeedDir) + "/"
	objects, err := b.api.list(ctx, b.name, dir)
	if err != nil {
		return nil, b.wrap("list", dir, err)
	}
	scripts := make([]storage.ScriptInfo, 0, len(objects))
	for _, object := range objects {
		if strings.HasSuffix(object.key, ".sql") {
			scripts = append(scripts, b.info(object))
		}
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].Name < scripts[j].Name })
	return scripts, nil
}

func (b *Bucket) scriptKey(name string) (string, error) {
	key, err := storage.SeedScriptKey(name)
	if err != nil {
		return "", err
	}
	return path.Join(b.prefix, key), nil
}

func (b *Bucket) info(object scriptObject) storage.ScriptInfo {
	name := strings.TrimPrefix(object.key, b.prefix)
	name = strings.TrimPrefix(strings.TrimPrefix(name, "/"), storage.SeedDir+"/")
	return storage.ScriptInfo{
		Name:         name,
		Key:          object.key,
		Size:         object.size,
		Checksum:     object.checksum,
		ETag:         object.etag,
		LastModified: object.lastModified,
	}
}

func (b *Bucket) wrap(op, key string, err error) error {
	if errors.Is(err, storage.ErrScriptNotFound) {
		return fmt.Errorf("%w: %s/%s", storage.ErrScriptNotFound, b.name, key)
	}
	return fmt.Errorf("%s %s/%s: %w", op, b.name, key, err)
}

func (b *Bucket) ensureExists(ctx context.Context, region string) error {
	exists, err := b.api.bucketExists(ctx, b.name)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", b.name, err)
	}
	if exists {
		return nil
	}
	if err := b.api.makeBucket(ctx, b.name, region); err != nil {
		return fmt.Errorf("create bucket %q: %w", b.name, err)
	}
	return nil
}

func dialMinio(cfg Config) (*minioScripts, error) {
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &minioScripts{client: client}, nil
}

// parseEndpoint accepts either host:port or a URL. An https URL forces TLS.
func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("endpoint is required")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint URL: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("endpoint host is required")
	}
	return parsed.Host, useSSL || parsed.Scheme == "https", nil
}

type minioScripts struct {
	client *minio.Client
}

func (m *minioScripts) upload(ctx context.Context, bucket, key string, script []byte, checksum string) (scriptObject, error) {
	opts := minio.PutObjectOptions{
		ContentType:  storage.ScriptContentType,
		UserMetadata: map[string]string{checksumMeta: checksum},
	}
	uploaded, err := m.client.PutObject(ctx, bucket, key, bytes.NewReader(script), int64(len(script)), opts)
	if err != nil {
		return scriptObject{}, notFound(err)
	}
	return scriptObject{key: uploaded.Key, size: uploaded.Size, etag: uploaded.ETag, lastModified: uploaded.LastModified}, nil
}

func (m *minioScripts) download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, notFound(err)
	}
	return obj, nil
}

func (m *minioScripts) head(ctx context.Context, bucket, key string) (scriptObject, error) {
	info, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return scriptObject{}, notFound(err)
	}
	return fromMinio(info), nil
}

func (m *minioScripts) list(ctx context.Context, bucket, prefix string) ([]scriptObject, error) {
	var objects []scriptObject
	for info := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true, WithMetadata: true}) {
		if info.Err != nil {
			return nil, notFound(info.Err)
		}
		objects = append(objects, fromMinio(info))
	}
	return objects, nil
}

func (m *minioScripts) bucketExists(ctx context.Context, bucket string) (bool, error) {
	return m.client.BucketExists(ctx, bucket)
}

func (m *minioScripts) makeBucket(ctx context.Context, bucket, region string) error {
	return m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

func fromMinio(info minio.ObjectInfo) scriptObject {
	object := scriptObject{key: info.Key, size: info.Size, etag: info.ETag, lastModified: info.LastModified}
	for name, value := range info.UserMetadata {
		// MinIO returns metadata keys canonicalized and sometimes still
		// carrying the X-Amz-Meta- prefix.
		if strings.EqualFold(strings.TrimPrefix(name, "X-Amz-Meta-"), checksumMeta) {
			object.checksum = value
		}
	}
	return object
}

func notFound(err error) error {
	var response minio.ErrorResponse
	if errors.As(err, &response) {
		switch response.Code {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return storage.ErrScriptNotFound
		}
	}
	return err
}
