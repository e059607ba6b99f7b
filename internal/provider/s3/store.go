// Package s3 stores wiki attachments in an S3 bucket.
//
// Object keys follow the file store's layout under an optional prefix:
//
//	{prefix}{mangled page}-att/{mangled file}-dir/{n}.{ext}
//
// Author and change note travel as object metadata on each version, so a
// version is written with a single PutObject and there is no shared
// properties object to keep consistent.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/mangle"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/validate"
)

// ObjectAPI is the subset of *s3.Client the store uses.
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

const (
	pageSuffix = "-att/"
	fileSuffix = "-dir/"

	metaAuthor     = "author"
	metaChangeNote = "changenote"
)

// Store is an AttachmentProvider backed by S3.
type Store struct {
	client  ObjectAPI
	bucket  string
	prefix  string
	m       *mangle.Mangler
	noCache *regexp.Regexp

	mu sync.Mutex // serialises version allocation
}

var _ provider.AttachmentProvider = (*Store)(nil)

// New creates a store on an existing bucket.
func New(ctx context.Context, client ObjectAPI, s Settings, opts provider.Options) (*Store, error) {
	if s.Bucket == "" {
		return nil, fmt.Errorf("%w: s3: bucket is required", provider.ErrConfig)
	}
	m, err := opts.BuildMangler()
	if err != nil {
		return nil, err
	}
	re, err := provider.CompileNoCache(opts.NoCache)
	if err != nil {
		return nil, err
	}
	prefix := s.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{client: client, bucket: s.Bucket, prefix: prefix, m: m, noCache: re}, nil
}

func (s *Store) pagePrefix(page string) string {
	return s.prefix + s.m.Mangle(page) + pageSuffix
}

func (s *Store) filePrefix(page, file string) string {
	return s.pagePrefix(page) + s.m.Mangle(file) + fileSuffix
}

func (s *Store) versionKey(page, file string, v int) string {
	return s.filePrefix(page, file) + strconv.Itoa(v) + "." + provider.FileExt(s.m, file)
}

// object is one listed version.
type object struct {
	key      string
	page     string
	file     string
	version  int
	size     int64
	modified time.Time
}

// list returns every version object under prefix.
func (s *Store) list(ctx context.Context, prefix string) ([]object, error) {
	var out []object
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, o := range page.Contents {
			obj, ok := s.parseKey(aws.ToString(o.Key))
			if !ok {
				continue
			}
			obj.size = aws.ToInt64(o.Size)
			obj.modified = aws.ToTime(o.LastModified)
			out = append(out, obj)
		}
	}
	return out, nil
}

// parseKey splits a version key into page, file and version.
func (s *Store) parseKey(key string) (object, bool) {
	rest, ok := strings.CutPrefix(key, s.prefix)
	if !ok {
		return object{}, false
	}
	pageTok, rest, ok := strings.Cut(rest, pageSuffix)
	if !ok {
		return object{}, false
	}
	fileTok, name, ok := strings.Cut(rest, fileSuffix)
	if !ok || strings.Contains(name, "/") {
		return object{}, false
	}
	v, err := strconv.Atoi(strings.SplitN(name, ".", 2)[0])
	if err != nil || v <= 0 {
		return object{}, false
	}
	page, err := s.m.Unmangle(pageTok)
	if err != nil {
		return object{}, false
	}
	file, err := s.m.Unmangle(fileTok)
	if err != nil {
		return object{}, false
	}
	return object{key: key, page: page, file: file, version: v}, true
}

// versions lists the versions of one attachment, newest first.
func (s *Store) versions(ctx context.Context, page, file string) ([]object, error) {
	objs, err := s.list(ctx, s.filePrefix(page, file))
	if err != nil {
		return nil, err
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].version > objs[j].version })
	return objs, nil
}

// pick selects version from objs (newest first). Latest picks objs[0].
func pick(objs []object, name string, version int) (object, error) {
	if len(objs) == 0 {
		return object{}, fmt.Errorf("attachment %q: %w", name, provider.ErrNotFound)
	}
	if version == provider.Latest {
		return objs[0], nil
	}
	for _, o := range objs {
		if o.version == version {
			return o, nil
		}
	}
	return object{}, &provider.NoSuchVersionError{Name: name, Requested: version, Latest: objs[0].version}
}

// describe fetches metadata for o.
func (s *Store) describe(ctx context.Context, o object) (*provider.Attachment, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("attachment %q: %w", o.page+"/"+o.file, provider.ErrNotFound)
		}
		return nil, fmt.Errorf("head %s: %w", o.key, err)
	}
	a := &provider.Attachment{
		Page:         o.page,
		FileName:     o.file,
		Version:      o.version,
		Author:       metaValue(head.Metadata, metaAuthor),
		ChangeNote:   metaValue(head.Metadata, metaChangeNote),
		LastModified: o.modified,
		Size:         o.size,
		Cacheable:    provider.Cacheable(s.noCache, o.file),
	}
	if head.LastModified != nil {
		a.LastModified = *head.LastModified
	}
	if head.ContentLength != nil {
		a.Size = *head.ContentLength
	}
	return a, nil
}

// Metadata values are header values, so they are stored query-escaped.
func metaValue(m map[string]string, key string) string {
	v, err := url.QueryUnescape(m[key])
	if err != nil {
		return m[key]
	}
	return v
}

func (s *Store) PutAttachmentData(ctx context.Context, att *provider.Attachment, r io.Reader) error {
	file, err := validate.AttachmentName(att.FileName)
	if err != nil {
		return err
	}
	att.FileName = file
	if err := provider.CheckName(s.m, att.Page); err != nil {
		return err
	}
	if err := provider.CheckName(s.m, file); err != nil {
		return err
	}

	// Read fully first so a failed upload stream creates no version.
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read %s: %w", att.Name(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	objs, err := s.versions(ctx, att.Page, file)
	if err != nil {
		return err
	}
	version := 1
	if len(objs) > 0 {
		version = objs[0].version + 1
	}
	if att.Author == "" {
		att.Author = "unknown"
	}
	meta := map[string]string{metaAuthor: url.QueryEscape(att.Author)}
	if att.ChangeNote != "" {
		meta[metaChangeNote] = url.QueryEscape(att.ChangeNote)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.versionKey(att.Page, file, version)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      meta,
	})
	if err != nil {
		return fmt.Errorf("store %s: %w", att.Name(), err)
	}

	att.Version = version
	att.Size = int64(len(data))
	att.LastModified = time.Now()
	att.Cacheable = provider.Cacheable(s.noCache, file)
	return nil
}

func (s *Store) AttachmentData(ctx context.Context, att *provider.Attachment) (io.ReadCloser, error) {
	objs, err := s.versions(ctx, att.Page, att.FileName)
	if err != nil {
		return nil, err
	}
	o, err := pick(objs, att.Name(), att.Version)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("attachment %q: %w", att.Name(), provider.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", o.key, err)
	}
	return out.Body, nil
}

// latestPerFile reduces objs to the newest version of each attachment.
func latestPerFile(objs []object) []object {
	latest := make(map[string]object)
	for _, o := range objs {
		k := o.page + "/" + o.file
		if cur, ok := latest[k]; !ok || o.version > cur.version {
			latest[k] = o
		}
	}
	out := make([]object, 0, len(latest))
	for _, o := range latest {
		out = append(out, o)
	}
	return out
}

func (s *Store) ListAttachments(ctx context.Context, page string) ([]provider.Attachment, error) {
	objs, err := s.list(ctx, s.pagePrefix(page))
	if err != nil {
		return nil, err
	}
	var out []provider.Attachment
	for _, o := range latestPerFile(objs) {
		a, err := s.describe(ctx, o)
		if errors.Is(err, provider.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out, nil
}

func (s *Store) ListAllChanged(ctx context.Context, since time.Time) ([]provider.Attachment, error) {
	objs, err := s.list(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	var out []provider.Attachment
	for _, o := range latestPerFile(objs) {
		if !o.modified.After(since) {
			continue
		}
		a, err := s.describe(ctx, o)
		if errors.Is(err, provider.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastModified.After(out[j].LastModified) })
	return out, nil
}

func (s *Store) AttachmentInfo(ctx context.Context, page, file string, version int) (*provider.Attachment, error) {
	objs, err := s.versions(ctx, page, file)
	if err != nil {
		return nil, err
	}
	o, err := pick(objs, page+"/"+file, version)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, o)
}

func (s *Store) VersionHistory(ctx context.Context, att *provider.Attachment) ([]provider.Attachment, error) {
	objs, err := s.versions(ctx, att.Page, att.FileName)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("attachment %q: %w", att.Name(), provider.ErrNotFound)
	}
	out := make([]provider.Attachment, 0, len(objs))
	for _, o := range objs {
		a, err := s.describe(ctx, o)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *Store) deleteKey(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteVersion(ctx context.Context, att *provider.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	objs, err := s.versions(ctx, att.Page, att.FileName)
	if err != nil {
		return err
	}
	o, err := pick(objs, att.Name(), att.Version)
	if err != nil {
		return err
	}
	return s.deleteKey(ctx, o.key)
}

func (s *Store) DeleteAttachment(ctx context.Context, att *provider.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	objs, err := s.versions(ctx, att.Page, att.FileName)
	if err != nil {
		return err
	}
	if len(objs) == 0 {
		return fmt.Errorf("attachment %q: %w", att.Name(), provider.ErrNotFound)
	}
	for _, o := range objs {
		if err := s.deleteKey(ctx, o.key); err != nil {
			return err
		}
	}
	return nil
}

// MoveAttachmentsForPage copies every object to the new page prefix and
// then deletes the originals. It refuses, logging a warning, when the new
// page already has objects.
func (s *Store) MoveAttachmentsForPage(ctx context.Context, oldPage, newPage string) error {
	if err := provider.CheckName(s.m, newPage); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.list(ctx, s.pagePrefix(newPage))
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Event("provider:s3", "move").
			Page(oldPage).
			Target(newPage).
			Warn(fmt.Errorf("attachments of %q: %w", newPage, provider.ErrExists))
		return nil
	}

	objs, err := s.list(ctx, s.pagePrefix(oldPage))
	if err != nil {
		return err
	}
	for _, o := range objs {
		dst := s.pagePrefix(newPage) + strings.TrimPrefix(o.key, s.pagePrefix(oldPage))
		_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(dst),
			CopySource: aws.String(copySource(s.bucket, o.key)),
		})
		if err != nil {
			return fmt.Errorf("copy %s: %w", o.key, err)
		}
	}
	for _, o := range objs {
		if err := s.deleteKey(ctx, o.key); err != nil {
			return err
		}
	}
	return nil
}

// copySource formats bucket/key for CopyObject, escaping each segment.
// Mangled keys contain "%" and "+", which must not be read as escapes.
func copySource(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return path.Join(bucket, strings.Join(parts, "/"))
}

func (s *Store) ProviderInfo() string {
	return "S3AttachmentProvider: s3://" + s.bucket + "/" + s.prefix
}
