// Package oss 对象存储服务单元测试
package oss

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockUploader_Upload(t *testing.T) {
	uploader := NewMockUploader()
	content := []byte{0x89, 0x50, 0x4E, 0x47}

	url, err := uploader.Upload(context.Background(), "qr/LMV22927-250601-01.png", bytes.NewReader(content), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://mock-oss.example.com/qr/LMV22927-250601-01.png", url)
	assert.Equal(t, content, uploader.Files["qr/LMV22927-250601-01.png"])
}

func TestMockUploader_Error(t *testing.T) {
	uploader := NewMockUploader()
	uploader.Err = errors.New("bucket unavailable")

	_, err := uploader.Upload(context.Background(), "x.png", bytes.NewReader(nil), "image/png")
	assert.Error(t, err)
	assert.Empty(t, uploader.Files)
}

func TestFullKey(t *testing.T) {
	assert.Equal(t, "a.png", FullKey("", "a.png"))
	assert.Equal(t, "invoices/a.png", FullKey("invoices/", "a.png"))
	assert.Equal(t, "invoices/qr/a.png", FullKey("invoices", "qr/a.png"))
}

func TestAliyunUploader_GetURL(t *testing.T) {
	u := &AliyunUploader{config: &AliyunConfig{
		Endpoint:   "oss-ap-southeast-1.aliyuncs.com",
		BucketName: "villa",
		BasePath:   "invoices/",
	}}
	assert.Equal(t, "https://villa.oss-ap-southeast-1.aliyuncs.com/invoices/a.png", u.GetURL("a.png"))

	u.config.Domain = "https://cdn.villa.test/"
	assert.Equal(t, "https://cdn.villa.test/invoices/a.png", u.GetURL("a.png"))
}
