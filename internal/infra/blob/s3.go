package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bytedance/sonic"
	"github.com/mindnote/counsel/internal/config"
)

type S3Deps struct {
	Client   *s3.Client
	Uploader *manager.Uploader
	Bucket   string
	Prefix   string
}

func NewS3(ctx context.Context, cfg *config.Config) (*S3Deps, error) {
	loadOpts := []func(*awsCfg.LoadOptions) error{
		awsCfg.WithRegion(cfg.S3.Region),
	}
	if cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" {
		loadOpts = append(loadOpts, awsCfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		))
	}

	acfg, err := awsCfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(acfg, func(o *s3.Options) {
		if ep := strings.TrimSpace(cfg.S3.Endpoint); ep != "" {
			if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
				ep = "https://" + ep
			}
			if u, uerr := url.Parse(ep); uerr == nil {
				o.BaseEndpoint = aws.String(u.String())
			}
		}
		o.UsePathStyle = cfg.S3.UsePathStyle
	})

	return &S3Deps{
		Client:   client,
		Uploader: manager.NewUploader(client),
		Bucket:   cfg.S3.Bucket,
		Prefix:   cfg.S3.TranscriptPrefix,
	}, nil
}

type UploadedMeta struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	ETag   string `json:"etag"`
	SHA256 string `json:"sha256"`
	SizeB  int64  `json:"size_b"`
}

// TranscriptKey places a session transcript under <prefix>/<yyyy/mm/dd>/<name>.json.
func (u *S3Deps) TranscriptKey(name string, at time.Time) string {
	return path.Join(u.Prefix, at.UTC().Format("2006/01/02"), name+".json")
}

// UploadJSON serializes data and stores it at key.
func (u *S3Deps) UploadJSON(ctx context.Context, key string, data any) (*UploadedMeta, error) {
	body, err := sonic.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}

	sum := sha256.Sum256(body)
	sumHex := hex.EncodeToString(sum[:])

	out, err := u.Uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"sha256": sumHex},
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	meta := &UploadedMeta{
		Bucket: u.Bucket,
		Key:    key,
		SHA256: sumHex,
		SizeB:  int64(len(body)),
	}
	if out.ETag != nil {
		meta.ETag = *out.ETag
	}
	return meta, nil
}

// ArchiveTranscript uploads a finished session's transcript and returns its key.
func (u *S3Deps) ArchiveTranscript(ctx context.Context, name string, transcript any) (string, error) {
	meta, err := u.UploadJSON(ctx, u.TranscriptKey(name, time.Now()), transcript)
	if err != nil {
		return "", err
	}
	return meta.Key, nil
}
