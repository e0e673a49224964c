// Package s3store implements a projectfs.Store on an S3 bucket or any
// S3-compatible object store.
//
// Files are objects keyed by their path below an optional prefix.
// Directories are zero-length marker objects whose key ends in "/". A key
// prefix that has objects below it but no marker still counts as a
// directory, so buckets filled by other tools can be browsed.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	projectfs "github.com/nujan-io/nujan-ide-sub000"
)

// Client is the subset of *s3.Client used by Store.
type Client interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config describes how to reach the bucket.
type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // custom endpoint for MinIO and friends
	UsePathStyle    bool
	AccessKeyID     string
	SecretAccessKey string
}

// Store keeps a project tree in a bucket.
type Store struct {
	client Client
	bucket string
	prefix string // "" or "some/prefix/"
	log    *zap.Logger
}

var _ projectfs.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix stores every key below prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.Trim(prefix, "/")
		if s.prefix != "" {
			s.prefix += "/"
		}
	}
}

// WithLogger sets the logger used for object-level debug traces.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New builds an S3 client from cfg and returns a Store over it.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3store: bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewWithClient(client, cfg.Bucket, append([]Option{WithPrefix(cfg.Prefix)}, opts...)...), nil
}

// NewWithClient returns a Store using an existing client.
func NewWithClient(client Client, bucket string, opts ...Option) *Store {
	s := &Store{client: client, bucket: bucket, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func pathErr(op, name string, err error) error {
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// fileKey is the object key of the file at name.
func (s *Store) fileKey(name string) string {
	return s.prefix + strings.TrimPrefix(path.Clean("/"+name), "/")
}

// dirKey is the marker key of the directory at name. The root maps to the
// prefix itself.
func (s *Store) dirKey(name string) string {
	k := s.fileKey(name)
	if k == s.prefix {
		return s.prefix
	}
	return k + "/"
}

func isRoot(name string) bool {
	return path.Clean("/"+name) == "/"
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

func (s *Store) head(ctx context.Context, key string) (*s3.HeadObjectOutput, bool, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("head object %s: %w", key, err)
	}
	return out, true, nil
}

// hasChildren reports whether any object lives below the directory key.
func (s *Store) hasChildren(ctx context.Context, dirKey string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(dirKey),
		MaxKeys: aws.Int32(2),
	})
	if err != nil {
		return false, fmt.Errorf("list objects %s: %w", dirKey, err)
	}
	for _, obj := range out.Contents {
		if aws.ToString(obj.Key) != dirKey {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) stat(ctx context.Context, op, name string) (projectfs.Info, error) {
	if isRoot(name) {
		return projectfs.Info{Kind: projectfs.KindDirectory}, nil
	}

	out, ok, err := s.head(ctx, s.fileKey(name))
	if err != nil {
		return projectfs.Info{}, err
	}
	if ok {
		return projectfs.Info{
			Kind:    projectfs.KindFile,
			Size:    aws.ToInt64(out.ContentLength),
			ModTime: aws.ToTime(out.LastModified),
		}, nil
	}

	out, ok, err = s.head(ctx, s.dirKey(name))
	if err != nil {
		return projectfs.Info{}, err
	}
	if ok {
		return projectfs.Info{Kind: projectfs.KindDirectory, ModTime: aws.ToTime(out.LastModified)}, nil
	}

	implicit, err := s.hasChildren(ctx, s.dirKey(name))
	if err != nil {
		return projectfs.Info{}, err
	}
	if implicit {
		return projectfs.Info{Kind: projectfs.KindDirectory}, nil
	}
	return projectfs.Info{}, pathErr(op, name, projectfs.ErrNotFound)
}

func (s *Store) parentDir(ctx context.Context, op, name string) error {
	dir := path.Dir(path.Clean("/" + name))
	info, err := s.stat(ctx, op, dir)
	if err != nil {
		if errors.Is(err, projectfs.ErrNotFound) {
			return pathErr(op, name, projectfs.ErrParentMissing)
		}
		return err
	}
	if !info.IsDir() {
		return pathErr(op, dir, projectfs.ErrNotDir)
	}
	return nil
}

func (s *Store) put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	s.log.Debug("S3 put object", zap.String("key", key), zap.Int("size", len(data)))
	return nil
}

func (s *Store) delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	s.log.Debug("S3 delete object", zap.String("key", key))
	return nil
}

func (s *Store) copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(s.bucket, srcKey)),
	})
	if err != nil {
		return fmt.Errorf("copy %s -> %s: %w", srcKey, dstKey, err)
	}
	s.log.Debug("S3 copy object", zap.String("src", srcKey), zap.String("dst", dstKey))
	return nil
}

// copySource URL-encodes bucket/key segment by segment.
func copySource(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return bucket + "/" + strings.Join(parts, "/")
}

// ReadFile implements projectfs.Store.
func (s *Store) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fileKey(name)),
	})
	if err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("get object %s: %w", s.fileKey(name), err)
		}
		info, serr := s.stat(ctx, "read", name)
		if serr != nil {
			return nil, serr
		}
		if info.IsDir() {
			return nil, pathErr("read", name, projectfs.ErrIsDir)
		}
		return nil, pathErr("read", name, projectfs.ErrNotFound)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// WriteFile implements projectfs.Store.
func (s *Store) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if isRoot(name) {
		return pathErr("write", name, projectfs.ErrIsDir)
	}
	if err := s.parentDir(ctx, "write", name); err != nil {
		return err
	}
	if info, err := s.stat(ctx, "write", name); err == nil && info.IsDir() {
		return pathErr("write", name, projectfs.ErrIsDir)
	}
	return s.put(ctx, s.fileKey(name), data)
}

// Mkdir implements projectfs.Store.
func (s *Store) Mkdir(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.stat(ctx, "mkdir", name)
	if err == nil {
		return pathErr("mkdir", name, projectfs.ErrAlreadyExists)
	}
	if !errors.Is(err, projectfs.ErrNotFound) {
		return err
	}
	if err := s.parentDir(ctx, "mkdir", name); err != nil {
		return err
	}
	return s.put(ctx, s.dirKey(name), nil)
}

// ReadDir implements projectfs.Store.
func (s *Store) ReadDir(ctx context.Context, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.readDirNames(ctx, "readdir", name)
}

func (s *Store) readDirNames(ctx context.Context, op, name string) ([]string, error) {
	info, err := s.stat(ctx, op, name)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, pathErr(op, name, projectfs.ErrNotDir)
	}

	dirKey := s.dirKey(name)
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}

	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(dirKey),
		Delimiter: aws.String("/"),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects %s: %w", dirKey, err)
		}
		for _, obj := range page.Contents {
			add(strings.TrimPrefix(aws.ToString(obj.Key), dirKey))
		}
		for _, cp := range page.CommonPrefixes {
			add(strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), dirKey), "/"))
		}
	}

	sort.Strings(names)
	return names, nil
}

// Stat implements projectfs.Store.
func (s *Store) Stat(ctx context.Context, name string) (projectfs.Info, error) {
	if err := ctx.Err(); err != nil {
		return projectfs.Info{}, err
	}
	return s.stat(ctx, "stat", name)
}

// Rename implements projectfs.Store. Directories are moved object by object
// and the move is not atomic.
func (s *Store) Rename(ctx context.Context, oldname, newname string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := s.stat(ctx, "rename", oldname)
	if err != nil {
		return err
	}
	if isRoot(oldname) || isRoot(newname) {
		return pathErr("rename", oldname, projectfs.ErrInvalidPath)
	}
	if err := s.parentDir(ctx, "rename", newname); err != nil {
		return err
	}

	if !info.IsDir() {
		if err := s.copy(ctx, s.fileKey(oldname), s.fileKey(newname)); err != nil {
			return err
		}
		return s.delete(ctx, s.fileKey(oldname))
	}

	oldDir, newDir := s.dirKey(oldname), s.dirKey(newname)
	keys, err := s.keysUnder(ctx, oldDir)
	if err != nil {
		return err
	}
	if len(keys) == 0 || keys[0] != oldDir {
		// implicit directory; give the destination a marker
		if err := s.put(ctx, newDir, nil); err != nil {
			return err
		}
	}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.copy(ctx, key, newDir+strings.TrimPrefix(key, oldDir)); err != nil {
			return err
		}
		if err := s.delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// keysUnder lists every key starting with prefix, sorted.
func (s *Store) keysUnder(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Unlink implements projectfs.Store.
func (s *Store) Unlink(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := s.stat(ctx, "unlink", name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return pathErr("unlink", name, projectfs.ErrIsDir)
	}
	return s.delete(ctx, s.fileKey(name))
}

// Rmdir implements projectfs.Store.
func (s *Store) Rmdir(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if isRoot(name) {
		return pathErr("rmdir", name, projectfs.ErrInvalidPath)
	}
	names, err := s.readDirNames(ctx, "rmdir", name)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		return pathErr("rmdir", name, projectfs.ErrNotEmpty)
	}
	return s.delete(ctx, s.dirKey(name))
}
