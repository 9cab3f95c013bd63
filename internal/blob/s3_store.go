package blob

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options はS3Storeの接続設定を表す。
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string // S3互換ストレージのエンドポイント。空の場合はAWSを使う
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string // 公開URLのベース。空の場合はエンドポイントから組み立てる
}

// s3API はS3Storeが使うS3クライアントのメソッド。
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store はS3互換オブジェクトストレージを使うStore。
type S3Store struct {
	client        s3API
	logger        *slog.Logger
	bucket        string
	publicBaseURL string
	configured    bool
}

var _ Store = (*S3Store)(nil)

// NewS3Store はS3Storeの新しいインスタンスを生成する。
// 資格情報が未設定の場合もStoreは生成し、Configuredがfalseを返す。
func NewS3Store(ctx context.Context, opts S3Options, logger *slog.Logger) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:        client,
		logger:        logger,
		bucket:        opts.Bucket,
		publicBaseURL: publicBaseURL(opts),
		configured:    opts.AccessKeyID != "" && opts.SecretAccessKey != "",
	}, nil
}

// publicBaseURL はオブジェクトの公開URLのベースを決定する。
func publicBaseURL(opts S3Options) string {
	if opts.PublicBaseURL != "" {
		return strings.TrimRight(opts.PublicBaseURL, "/")
	}
	if opts.Endpoint != "" {
		return strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
}

// Configured は資格情報が設定されているかを返す。
func (s *S3Store) Configured() bool {
	return s != nil && s.configured
}

// Put はオブジェクトをpublic-readで保存する。
func (s *S3Store) Put(ctx context.Context, pathname string, data []byte, opts PutOptions) (*PutResult, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if pathname == "" {
		return nil, fmt.Errorf("pathname is required")
	}

	key := strings.TrimLeft(pathname, "/")
	if opts.AddRandomSuffix {
		key = withRandomSuffix(key)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ACL:           types.ObjectCannedACLPublicRead,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.logger.Error("s3 put failed",
			slog.String("bucket", s.bucket),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to put object: %w", err)
	}

	return &PutResult{
		URL:         s.objectURL(key),
		Pathname:    key,
		ContentType: opts.ContentType,
	}, nil
}

// Delete は公開URLに対応するオブジェクトを削除する。
// 公開URLのベースに一致しない場合はパス部分をキーとして扱う。
func (s *S3Store) Delete(ctx context.Context, blobURL string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	key, err := s.keyFromURL(blobURL)
	if err != nil {
		return err
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *S3Store) objectURL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicBaseURL + "/" + strings.Join(segments, "/")
}

func (s *S3Store) keyFromURL(blobURL string) (string, error) {
	if rest, ok := strings.CutPrefix(blobURL, s.publicBaseURL+"/"); ok {
		key, err := url.PathUnescape(rest)
		if err != nil {
			return "", fmt.Errorf("invalid object url %q: %w", blobURL, err)
		}
		return key, nil
	}

	u, err := url.Parse(blobURL)
	if err != nil {
		return "", fmt.Errorf("invalid object url %q: %w", blobURL, err)
	}
	key := strings.TrimLeft(u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("object url %q has no key", blobURL)
	}
	return key, nil
}
