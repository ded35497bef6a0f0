package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"socialgen_dev_v1_202609/internal/model"
	"socialgen_dev_v1_202609/internal/repository"
	"socialgen_dev_v1_202609/internal/service"
)

// signingStorage 只实现签名逻辑的假存储
type signingStorage struct {
	signErr error
}

func (s *signingStorage) Upload(ctx context.Context, data []byte, filename string, contentType string) (string, error) {
	return "", nil
}

func (s *signingStorage) UploadFromURL(ctx context.Context, sourceURL string, filename string) (string, error) {
	return "", nil
}

func (s *signingStorage) Delete(ctx context.Context, url string) error { return nil }

func (s *signingStorage) GetSignedURL(ctx context.Context, url string, expires time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return "signed-" + url, nil
}

func (s *signingStorage) EnsureBucket(ctx context.Context) error { return nil }

func setupAssetURLRouter(t *testing.T, storage service.StorageProvider) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&model.MediaAsset{}); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}

	ctrl := NewContentController(nil, nil, repository.NewContentPackageRepository(db), nil, storage)

	r := gin.New()
	r.GET("/api/content/assets/:asset_id/url", ctrl.GetAssetURL)
	return r, db
}

func createAsset(t *testing.T, db *gorm.DB, asset *model.MediaAsset) {
	t.Helper()
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("写入资产失败: %v", err)
	}
}

func getAssetURL(t *testing.T, r *gin.Engine, assetID string) (int, map[string]json.RawMessage) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/content/assets/"+assetID+"/url", nil)
	r.ServeHTTP(w, req)

	var body map[string]json.RawMessage
	json.Unmarshal(w.Body.Bytes(), &body)
	return w.Code, body
}

func TestContentController_GetAssetURL(t *testing.T) {
	t.Run("已持久化资产返回签名地址", func(t *testing.T) {
		r, db := setupAssetURLRouter(t, &signingStorage{})
		createAsset(t, db, &model.MediaAsset{
			AssetID:      "asset-signed",
			Kind:         model.MediaKindImage,
			State:        model.PersistenceStatePersisted,
			PermanentURL: "https://cdn.example.com/1/asset-signed.png",
			CreatedAt:    time.Now(),
		})

		code, body := getAssetURL(t, r, "asset-signed")
		if code != http.StatusOK {
			t.Fatalf("状态码 = %d, want 200", code)
		}

		var result struct {
			AssetID          string `json:"asset_id"`
			URL              string `json:"url"`
			ExpiresInSeconds int    `json:"expires_in_seconds"`
		}
		json.Unmarshal(body["data"], &result)
		if result.URL != "signed-https://cdn.example.com/1/asset-signed.png" {
			t.Errorf("URL = %s", result.URL)
		}
		if result.ExpiresInSeconds != int(assetURLExpires.Seconds()) {
			t.Errorf("有效期 = %d", result.ExpiresInSeconds)
		}
	})

	t.Run("未持久化资产返回临时地址", func(t *testing.T) {
		r, db := setupAssetURLRouter(t, &signingStorage{})
		createAsset(t, db, &model.MediaAsset{
			AssetID:      "asset-tmp",
			Kind:         model.MediaKindImage,
			State:        model.PersistenceStateFailed,
			EphemeralURL: "https://tmp/img.png",
			CreatedAt:    time.Now(),
		})

		code, body := getAssetURL(t, r, "asset-tmp")
		if code != http.StatusOK {
			t.Fatalf("状态码 = %d, want 200", code)
		}

		var result struct {
			URL string `json:"url"`
		}
		json.Unmarshal(body["data"], &result)
		if result.URL != "https://tmp/img.png" {
			t.Errorf("未持久化资产不应签名: %s", result.URL)
		}
	})

	t.Run("占位资产不签名", func(t *testing.T) {
		r, db := setupAssetURLRouter(t, &signingStorage{})
		createAsset(t, db, &model.MediaAsset{
			AssetID:      "asset-ph",
			Kind:         model.MediaKindImage,
			State:        model.PersistenceStatePersisted,
			Placeholder:  true,
			PermanentURL: "https://placehold.co/1080x1350/png",
			CreatedAt:    time.Now(),
		})

		code, body := getAssetURL(t, r, "asset-ph")
		if code != http.StatusOK {
			t.Fatalf("状态码 = %d, want 200", code)
		}

		var result struct {
			URL string `json:"url"`
		}
		json.Unmarshal(body["data"], &result)
		if result.URL != "https://placehold.co/1080x1350/png" {
			t.Errorf("占位地址不应签名: %s", result.URL)
		}
	})

	t.Run("资产不存在", func(t *testing.T) {
		r, _ := setupAssetURLRouter(t, &signingStorage{})
		code, _ := getAssetURL(t, r, "no-such")
		if code != http.StatusNotFound {
			t.Errorf("状态码 = %d, want 404", code)
		}
	})

	t.Run("存储未配置时返回原地址", func(t *testing.T) {
		r, db := setupAssetURLRouter(t, nil)
		createAsset(t, db, &model.MediaAsset{
			AssetID:      "asset-plain",
			Kind:         model.MediaKindImage,
			State:        model.PersistenceStatePersisted,
			PermanentURL: "https://cdn.example.com/1/asset-plain.png",
			CreatedAt:    time.Now(),
		})

		code, body := getAssetURL(t, r, "asset-plain")
		if code != http.StatusOK {
			t.Fatalf("状态码 = %d, want 200", code)
		}

		var result struct {
			URL string `json:"url"`
		}
		json.Unmarshal(body["data"], &result)
		if result.URL != "https://cdn.example.com/1/asset-plain.png" {
			t.Errorf("URL = %s", result.URL)
		}
	})
}
