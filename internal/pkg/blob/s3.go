// Package blob guarda cópias das exportações CSV num bucket S3 (ou MinIO).
package blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config define o bucket de destino.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // opcional, ex: MinIO
	PathStyle bool
}

// S3Archiver grava objetos num único bucket.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3Archiver carrega as credenciais pela cadeia padrão da AWS.
func NewS3Archiver(ctx context.Context, cfg Config, optFns ...func(*config.LoadOptions) error) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket S3 obrigatório")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := append([]func(*config.LoadOptions) error{config.WithRegion(region)}, optFns...)
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("carregar configuração AWS: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Archiver{client: client, bucket: cfg.Bucket}, nil
}

// Put grava o conteúdo na chave informada.
func (a *S3Archiver) Put(ctx context.Context, key, contentType string, body []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}
