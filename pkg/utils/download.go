package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DownloadFile 下载网络文件，返回字节数据与 Content-Type
func DownloadFile(ctx context.Context, url string, timeout time.Duration) ([]byte, string, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("下载失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("下载失败: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("读取失败: %v", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	return data, contentType, nil
}

// DetectContentType 按文件头嗅探内容类型
func DetectContentType(data []byte) string {
	return http.DetectContentType(data)
}
