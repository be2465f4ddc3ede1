// Пакет photostore — подписанные ссылки на фото scope proof в S3-совместимом хранилище.
// API сам не передаёт байты фото: подрядчик загружает файл по presigned PUT,
// клиент портала получает presigned GET со сроком TB_PHOTO_URL_TTL.
package photostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config — параметры подключения к бакету.
type Config struct {
	Bucket string
	Region string
	// Endpoint — адрес S3-совместимого хранилища (MinIO и т.п.); пусто — AWS
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// URLTTL — время жизни подписанной ссылки
	URLTTL time.Duration
}

// Store выдаёт подписанные ссылки на объекты бакета.
type Store struct {
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// New создаёт Store. Статические ключи используются, если заданы оба;
// иначе — стандартная цепочка AWS (env, профиль, IRSA).
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("не задан бакет для фото")
	}
	if cfg.URLTTL <= 0 {
		return nil, fmt.Errorf("некорректное время жизни ссылки: %s", cfg.URLTTL)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(3),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("загрузка конфигурации AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO и большинство S3-совместимых хранилищ не поддерживают virtual-hosted style
			o.UsePathStyle = true
		}
	})

	logger.Info("Хранилище фото настроено",
		slog.String("bucket", cfg.Bucket),
		slog.String("region", cfg.Region),
		slog.String("endpoint", cfg.Endpoint),
	)

	return &Store{
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		ttl:     cfg.URLTTL,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "photostore")),
	}, nil
}

// PresignGet возвращает ссылку на чтение объекта key.
func (s *Store) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("подпись GET %s: %w", key, err)
	}
	return req.URL, nil
}

// PresignPut возвращает ссылку на загрузку объекта key с заданным Content-Type.
func (s *Store) PresignPut(ctx context.Context, key, contentType string) (string, time.Time, error) {
	expiresAt := s.now().Add(s.ttl)
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("подпись PUT %s: %w", key, err)
	}
	s.logger.Debug("Выдана ссылка загрузки фото", slog.String("key", key))
	return req.URL, expiresAt.UTC(), nil
}
