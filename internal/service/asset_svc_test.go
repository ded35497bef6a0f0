package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"socialgen_dev_v1_202609/internal/model"
	"socialgen_dev_v1_202609/pkg/utils"
)

// fakeStorage 内存存储
type fakeStorage struct {
	mu      sync.Mutex
	uploads map[string][]byte
	fail    bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploads: map[string][]byte{}}
}

func (f *fakeStorage) Upload(ctx context.Context, data []byte, filename string, contentType string) (string, error) {
	if f.fail {
		return "", errors.New("storage unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[filename] = data
	return "https://cdn.example.com/" + filename, nil
}

func (f *fakeStorage) UploadFromURL(ctx context.Context, sourceURL string, filename string) (string, error) {
	data, contentType, err := utils.DownloadFile(ctx, sourceURL, 10*time.Second)
	if err != nil {
		return "", err
	}
	return f.Upload(ctx, data, withDetectedExt(filename, contentType), contentType)
}

func (f *fakeStorage) Delete(ctx context.Context, url string) error { return nil }

func (f *fakeStorage) GetSignedURL(ctx context.Context, url string, expires time.Duration) (string, error) {
	return url, nil
}

func (f *fakeStorage) EnsureBucket(ctx context.Context) error { return nil }

// newMediaServer 提供可下载的假媒体文件
func newMediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	// PNG 魔数开头，便于内容类型嗅探
	png := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 64)...)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}))
}

func unpersistedAsset(url string) *model.MediaAsset {
	return &model.MediaAsset{
		AssetID:      "asset-1",
		Kind:         model.MediaKindImage,
		EphemeralURL: url,
		State:        model.PersistenceStateUnpersisted,
	}
}

func TestAssetPersistenceService_Persist(t *testing.T) {
	server := newMediaServer(t)
	defer server.Close()

	storage := newFakeStorage()
	svc := NewAssetPersistenceService(storage)

	asset := unpersistedAsset(server.URL + "/img")
	svc.Persist(context.Background(), asset, 42)

	if asset.State != model.PersistenceStatePersisted {
		t.Fatalf("State = %s, want persisted", asset.State)
	}
	if !strings.HasPrefix(asset.PermanentURL, "https://cdn.example.com/42/") {
		t.Errorf("持久化地址应带用户目录前缀: %s", asset.PermanentURL)
	}
	if !strings.HasSuffix(asset.PermanentURL, ".png") {
		t.Errorf("扩展名应按内容类型推断: %s", asset.PermanentURL)
	}
}

func TestAssetPersistenceService_FailureKeepsEphemeralURL(t *testing.T) {
	server := newMediaServer(t)
	defer server.Close()

	tests := []struct {
		name  string
		asset *model.MediaAsset
		setup func(*AssetPersistenceService)
	}{
		{
			name:  "下载失败",
			asset: unpersistedAsset(server.URL + "/missing"),
		},
		{
			name:  "上传失败",
			asset: unpersistedAsset(server.URL + "/img"),
			setup: func(s *AssetPersistenceService) { s.Storage.(*fakeStorage).fail = true },
		},
		{
			name:  "存储未配置",
			asset: unpersistedAsset(server.URL + "/img"),
			setup: func(s *AssetPersistenceService) { s.Storage = nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAssetPersistenceService(newFakeStorage())
			if tt.setup != nil {
				tt.setup(svc)
			}

			svc.Persist(context.Background(), tt.asset, 1)

			if tt.asset.State != model.PersistenceStateFailed {
				t.Fatalf("State = %s, want failed", tt.asset.State)
			}
			// 失败时临时地址作为尽力替代值
			if tt.asset.PermanentURL != tt.asset.EphemeralURL {
				t.Errorf("PermanentURL = %s, want %s", tt.asset.PermanentURL, tt.asset.EphemeralURL)
			}
		})
	}
}

func TestAssetPersistenceService_PlaceholderSkipsDownload(t *testing.T) {
	svc := NewAssetPersistenceService(newFakeStorage())

	asset := unpersistedAsset("https://placehold.co/1080x1350/png")
	asset.Placeholder = true
	svc.Persist(context.Background(), asset, 1)

	if asset.State != model.PersistenceStatePersisted {
		t.Fatalf("State = %s", asset.State)
	}
	// 占位地址本身稳定，不产生上传
	if asset.PermanentURL != asset.EphemeralURL {
		t.Errorf("占位资产应保留原地址: %s", asset.PermanentURL)
	}
	if len(svc.Storage.(*fakeStorage).uploads) != 0 {
		t.Error("占位资产不应上传")
	}
}

func TestAssetPersistenceService_StateTransitionIsOneShot(t *testing.T) {
	asset := unpersistedAsset("https://e/img.png")

	if !asset.MarkPersisted("https://cdn/img.png") {
		t.Fatal("首次迁移应成功")
	}
	if asset.MarkPersistFailed() {
		t.Error("persisted 状态不允许再迁移到 failed")
	}
	if asset.MarkPersisted("https://cdn/other.png") {
		t.Error("不允许重复迁移")
	}
	if asset.PermanentURL != "https://cdn/img.png" {
		t.Errorf("首次迁移的地址被覆盖: %s", asset.PermanentURL)
	}
}

func TestAssetPersistenceService_PersistBatchIsolation(t *testing.T) {
	server := newMediaServer(t)
	defer server.Close()

	storage := newFakeStorage()
	svc := NewAssetPersistenceService(storage)
	svc.Concurrency = 2

	assets := make([]*model.MediaAsset, 6)
	for i := range assets {
		url := fmt.Sprintf("%s/img-%d", server.URL, i)
		if i%2 == 1 {
			url = server.URL + "/missing"
		}
		a := unpersistedAsset(url)
		a.AssetID = fmt.Sprintf("asset-%d", i)
		assets[i] = a
	}

	svc.PersistBatch(context.Background(), assets, 7)

	for i, a := range assets {
		want := model.PersistenceStatePersisted
		if i%2 == 1 {
			want = model.PersistenceStateFailed
		}
		if a.State != want {
			t.Errorf("资产 %d State = %s, want %s", i, a.State, want)
		}
	}
}
