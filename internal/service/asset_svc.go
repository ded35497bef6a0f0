package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"socialgen_dev_v1_202609/internal/model"
)

// ==================== 资产持久化 ====================

// 按内容类型映射文件扩展名
var contentTypeExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

// AssetPersistenceService 将临时媒体地址转存到自有对象存储
// 转存失败不阻断主流程：资产标记 failed 并保留临时地址作为尽力替代
type AssetPersistenceService struct {
	Storage         StorageProvider
	DownloadTimeout time.Duration
	Concurrency     int
}

// NewAssetPersistenceService 创建持久化服务
func NewAssetPersistenceService(storage StorageProvider) *AssetPersistenceService {
	return &AssetPersistenceService{
		Storage:         storage,
		DownloadTimeout: 60 * time.Second,
		Concurrency:     4,
	}
}

// Persist 转存单个资产，永不返回错误
// 占位资产与已迁移状态的资产直接跳过
func (s *AssetPersistenceService) Persist(ctx context.Context, asset *model.MediaAsset, ownerID int64) {
	if asset == nil {
		return
	}
	if asset.Placeholder {
		// 占位图本身就是稳定地址，不转存
		asset.MarkPersisted(asset.EphemeralURL)
		return
	}
	if asset.State != model.PersistenceStateUnpersisted {
		return
	}
	if s.Storage == nil || asset.EphemeralURL == "" {
		asset.MarkPersistFailed()
		return
	}

	// 文件名带用户ID目录前缀，存储层保留为对象路径一级目录
	// 扩展名留空，由存储层按下载到的内容类型补全
	filename := fmt.Sprintf("%d/%s", ownerID, asset.AssetID)
	dlCtx, cancel := context.WithTimeout(ctx, s.DownloadTimeout)
	defer cancel()
	url, err := s.Storage.UploadFromURL(dlCtx, asset.EphemeralURL, filename)
	if err != nil {
		log.Printf("[AssetPersist] 转存临时资源失败 asset=%s: %v", asset.AssetID, err)
		asset.MarkPersistFailed()
		return
	}

	asset.MarkPersisted(url)
}

// PersistBatch 并发转存，单个失败不影响其他资产
func (s *AssetPersistenceService) PersistBatch(ctx context.Context, assets []*model.MediaAsset, ownerID int64) {
	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, asset := range assets {
		if asset == nil {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(a *model.MediaAsset) {
			defer wg.Done()
			defer func() { <-sem }()
			s.Persist(ctx, a, ownerID)
		}(asset)
	}
	wg.Wait()
}
