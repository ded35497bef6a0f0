package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"socialgen_dev_v1_202609/pkg/utils"
)

// ==================== 接口定义 ====================

// StorageProvider 存储提供者接口
type StorageProvider interface {
	// Upload 上传文件，返回公开访问URL
	// filename 可带目录前缀（如 "42/cover.png"），前缀会保留为对象路径的一级目录
	Upload(ctx context.Context, data []byte, filename string, contentType string) (url string, err error)

	// UploadFromURL 从URL下载并上传
	UploadFromURL(ctx context.Context, sourceURL string, filename string) (url string, err error)

	// Delete 删除文件
	Delete(ctx context.Context, url string) error

	// GetSignedURL 获取签名URL (私有存储时使用)
	GetSignedURL(ctx context.Context, url string, expires time.Duration) (signedURL string, err error)

	// EnsureBucket 确保存储桶存在，可重复调用
	EnsureBucket(ctx context.Context) error
}

// ==================== 配置 ====================

type StorageConfig struct {
	Provider  string // "s3" | "cos" | "local"
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string // 自定义端点 (腾讯云COS等)
	CDNDomain string // CDN域名 (可选)
	BasePath  string // 基础路径前缀
}

// ==================== 工厂方法 ====================

func NewStorageProvider(cfg *StorageConfig) (StorageProvider, error) {
	switch cfg.Provider {
	case "s3":
		return NewS3Storage(cfg)
	case "cos":
		return NewCOSStorage(cfg)
	case "local":
		return NewLocalStorage(cfg)
	default:
		return nil, fmt.Errorf("不支持的存储提供者: %s", cfg.Provider)
	}
}

// ==================== S3 实现 ====================

type S3Storage struct {
	client    *s3.Client
	bucket    string
	region    string
	cdnDomain string
	basePath  string
}

func NewS3Storage(cfg *StorageConfig) (*S3Storage, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("加载AWS配置失败: %v", err)
	}

	client := s3.NewFromConfig(awsCfg)

	return &S3Storage{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		cdnDomain: cfg.CDNDomain,
		basePath:  cfg.BasePath,
	}, nil
}

func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
		CreateBucketConfiguration: &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		},
	})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("创建存储桶失败: %v", err)
	}
	return nil
}

func (s *S3Storage) Upload(ctx context.Context, data []byte, filename string, contentType string) (string, error) {
	key := generateObjectKey(s.basePath, filename)

	if contentType == "" {
		contentType = utils.DetectContentType(data)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("上传S3失败: %v", err)
	}

	return s.getPublicURL(key), nil
}

func (s *S3Storage) UploadFromURL(ctx context.Context, sourceURL string, filename string) (string, error) {
	data, contentType, err := utils.DownloadFile(ctx, sourceURL, 60*time.Second)
	if err != nil {
		return "", err
	}
	return s.Upload(ctx, data, withDetectedExt(filename, contentType), contentType)
}

func (s *S3Storage) Delete(ctx context.Context, url string) error {
	key := s.extractKey(url)
	if key == "" {
		return fmt.Errorf("无法解析文件路径")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3Storage) GetSignedURL(ctx context.Context, url string, expires time.Duration) (string, error) {
	key := s.extractKey(url)
	if key == "" {
		return "", fmt.Errorf("无法解析文件路径")
	}

	presignClient := s3.NewPresignClient(s.client)
	presignedURL, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", err
	}

	return presignedURL.URL, nil
}

func (s *S3Storage) getPublicURL(key string) string {
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func (s *S3Storage) extractKey(url string) string {
	if s.cdnDomain != "" && strings.Contains(url, s.cdnDomain) {
		return strings.TrimPrefix(url, fmt.Sprintf("https://%s/", s.cdnDomain))
	}
	prefix := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", s.bucket, s.region)
	return strings.TrimPrefix(url, prefix)
}

// ==================== 腾讯云COS 实现 ====================

type COSStorage struct {
	client    *s3.Client
	bucket    string
	region    string
	cdnDomain string
	basePath  string
}

func NewCOSStorage(cfg *StorageConfig) (*COSStorage, error) {
	// COS兼容S3协议
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://cos.%s.myqcloud.com", cfg.Region)
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("加载COS配置失败: %v", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &COSStorage{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		cdnDomain: cfg.CDNDomain,
		basePath:  cfg.BasePath,
	}, nil
}

func (s *COSStorage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("创建COS存储桶失败: %v", err)
	}
	return nil
}

func (s *COSStorage) Upload(ctx context.Context, data []byte, filename string, contentType string) (string, error) {
	key := generateObjectKey(s.basePath, filename)

	if contentType == "" {
		contentType = utils.DetectContentType(data)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("上传COS失败: %v", err)
	}

	return s.getPublicURL(key), nil
}

func (s *COSStorage) UploadFromURL(ctx context.Context, sourceURL string, filename string) (string, error) {
	data, contentType, err := utils.DownloadFile(ctx, sourceURL, 60*time.Second)
	if err != nil {
		return "", err
	}
	return s.Upload(ctx, data, withDetectedExt(filename, contentType), contentType)
}

func (s *COSStorage) Delete(ctx context.Context, url string) error {
	key := s.extractKey(url)
	if key == "" {
		return fmt.Errorf("无法解析文件路径")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *COSStorage) GetSignedURL(ctx context.Context, url string, expires time.Duration) (string, error) {
	key := s.extractKey(url)
	if key == "" {
		return "", fmt.Errorf("无法解析文件路径")
	}

	presignClient := s3.NewPresignClient(s.client)
	presignedURL, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", err
	}

	return presignedURL.URL, nil
}

func (s *COSStorage) getPublicURL(key string) string {
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	}
	return fmt.Sprintf("https://%s.cos.%s.myqcloud.com/%s", s.bucket, s.region, key)
}

func (s *COSStorage) extractKey(url string) string {
	if s.cdnDomain != "" && strings.Contains(url, s.cdnDomain) {
		return strings.TrimPrefix(url, fmt.Sprintf("https://%s/", s.cdnDomain))
	}
	prefix := fmt.Sprintf("https://%s.cos.%s.myqcloud.com/", s.bucket, s.region)
	return strings.TrimPrefix(url, prefix)
}

// ==================== 本地存储 (开发测试用) ====================

type LocalStorage struct {
	basePath string
	baseURL  string
}

func NewLocalStorage(cfg *StorageConfig) (*LocalStorage, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "./uploads"
	}
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = "http://localhost:8080/uploads"
	}

	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (s *LocalStorage) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(s.basePath, 0755)
}

func (s *LocalStorage) Upload(ctx context.Context, data []byte, filename string, contentType string) (string, error) {
	key := generateObjectKey("", filename)

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("创建目录失败: %v", err)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("写入文件失败: %v", err)
	}

	return fmt.Sprintf("%s/%s", s.baseURL, key), nil
}

func (s *LocalStorage) UploadFromURL(ctx context.Context, sourceURL string, filename string) (string, error) {
	data, contentType, err := utils.DownloadFile(ctx, sourceURL, 60*time.Second)
	if err != nil {
		return "", err
	}
	return s.Upload(ctx, data, withDetectedExt(filename, contentType), contentType)
}

func (s *LocalStorage) Delete(ctx context.Context, url string) error {
	key := strings.TrimPrefix(url, s.baseURL+"/")
	if key == "" || key == url {
		return fmt.Errorf("无法解析文件路径")
	}
	err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *LocalStorage) GetSignedURL(ctx context.Context, url string, expires time.Duration) (string, error) {
	return url, nil // 本地存储无需签名
}

// ==================== 工具函数 ====================

// withDetectedExt 文件名缺少扩展名时按实际内容类型补全
// 转存场景下调用方在下载前不知道媒体的真实类型
func withDetectedExt(filename, contentType string) string {
	if filepath.Ext(filename) != "" {
		return filename
	}
	if ext := contentTypeExtensions[contentType]; ext != "" {
		return filename + ext
	}
	if strings.HasPrefix(contentType, "video/") {
		return filename + ".mp4"
	}
	if strings.HasPrefix(contentType, "image/") {
		return filename + ".png"
	}
	return filename
}

// generateObjectKey 生成对象路径: {basePath}/{scope}/{日期}/{uuid}{ext}
// filename 中的目录前缀作为 scope 保留（通常为所属用户ID）
func generateObjectKey(basePath, filename string) string {
	scope := ""
	if idx := strings.LastIndex(filename, "/"); idx != -1 {
		scope = filename[:idx]
		filename = filename[idx+1:]
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}
	newFilename := fmt.Sprintf("%s%s", uuid.New().String(), ext)

	datePath := time.Now().Format("2006/01/02")
	parts := make([]string, 0, 4)
	for _, p := range []string{basePath, scope, datePath, newFilename} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}
