package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var Client *minio.Client
var BucketName string

func Init() error {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	if accessKey == "" {
		accessKey = "invoice-canon"
	}

	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if secretKey == "" {
		secretKey = "dev-secret"
	}

	BucketName = os.Getenv("MINIO_BUCKET")
	if BucketName == "" {
		BucketName = "invoice-analyses"
	}

	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	var err error
	Client, err = minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	// Verify bucket exists
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := Client.BucketExists(ctx, BucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", BucketName)
	}

	return nil
}

// UploadAnalysis archives the raw OCR analysis JSON for one run.
// Path format: runs/YYYY/MM/{runID}.json
func UploadAnalysis(ctx context.Context, runID string, data []byte) (string, error) {
	now := time.Now()
	objectName := fmt.Sprintf("runs/%d/%02d/%s.json", now.Year(), now.Month(), runID)

	_, err := Client.PutObject(ctx, BucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload analysis: %w", err)
	}

	// Return the full path for storage in DB
	return fmt.Sprintf("%s/%s", BucketName, objectName), nil
}

// UploadDocument archives the uploaded source file the analysis was produced
// from. Path format: runs/YYYY/MM/{runID}{ext}
func UploadDocument(ctx context.Context, runID, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = "application/pdf"
	}
	now := time.Now()
	objectName := fmt.Sprintf("runs/%d/%02d/%s%s", now.Year(), now.Month(), runID, GetFileExtension(contentType))

	_, err := Client.PutObject(ctx, BucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload document: %w", err)
	}

	return fmt.Sprintf("%s/%s", BucketName, objectName), nil
}

// GetFileExtension maps a content type to a filename extension.
func GetFileExtension(contentType string) string {
	switch contentType {
	case "application/pdf":
		return ".pdf"
	case "application/json":
		return ".json"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".bin"
	}
}

// GetObject streams a stored source document back.
func GetObject(ctx context.Context, objectPath string) ([]byte, error) {
	objectName := strings.TrimPrefix(objectPath, BucketName+"/")

	obj, err := Client.GetObject(ctx, BucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return buf.Bytes(), nil
}

// GetPresignedURL generates a presigned URL for downloading a source document
func GetPresignedURL(ctx context.Context, objectPath string) (string, error) {
	objectName := strings.TrimPrefix(objectPath, BucketName+"/")

	url, err := Client.PresignedGetObject(ctx, BucketName, objectName, 24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

// DeleteObject removes a stored document
func DeleteObject(ctx context.Context, objectPath string) error {
	objectName := strings.TrimPrefix(objectPath, BucketName+"/")
	return Client.RemoveObject(ctx, BucketName, objectName, minio.RemoveObjectOptions{})
}
