package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveConfig — параметры S3-совместимого хранилища копий выгрузок.
type ArchiveConfig struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// objectPutter — подмножество s3.Client, используемое архивом.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive сохраняет копии выгрузок в S3-совместимом хранилище.
type Archive struct {
	client objectPutter
	bucket string
	logger *slog.Logger
}

// NewS3Archive создаёт архив. Статические ключи используются, если заданы,
// иначе — стандартная цепочка учётных данных AWS SDK.
func NewS3Archive(ctx context.Context, cfg ArchiveConfig, logger *slog.Logger) (*Archive, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("конфигурация S3: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newArchive(client, cfg.Bucket, logger), nil
}

func newArchive(client objectPutter, bucket string, logger *slog.Logger) *Archive {
	return &Archive{
		client: client,
		bucket: bucket,
		logger: logger.With(slog.String("component", "export_archive")),
	}
}

// ObjectKey возвращает ключ объекта: exports/{department}/{file}.
func ObjectKey(department, fileName string) string {
	dep := strings.TrimSpace(department)
	if dep == "" {
		dep = "_"
	}
	dep = strings.ReplaceAll(dep, "/", "_")
	return path.Join("exports", dep, fileName)
}

// Store загружает документ и возвращает ключ объекта.
func (a *Archive) Store(ctx context.Context, department string, doc Document) (string, error) {
	key := ObjectKey(department, doc.FileName)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(doc.Body),
		ContentType:   aws.String(doc.ContentType),
		ContentLength: aws.Int64(int64(len(doc.Body))),
	})
	if err != nil {
		return "", fmt.Errorf("загрузка %s в S3: %w", key, err)
	}

	a.logger.Debug("Выгрузка сохранена в архив",
		slog.String("bucket", a.bucket),
		slog.String("key", key),
		slog.Int("size", len(doc.Body)),
	)
	return key, nil
}
