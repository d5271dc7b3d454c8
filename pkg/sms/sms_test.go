// Package sms 短信服务单元测试
package sms

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSender_Send(t *testing.T) {
	sender := NewMockSender()
	ctx := context.Background()

	err := sender.Send(ctx, "+18765550100", "SMS_BOOKING", map[string]string{
		"reservation_id": "LMV22927-250601-01",
	})
	require.NoError(t, err)

	msg := sender.GetLastMessage()
	require.NotNil(t, msg)
	assert.Equal(t, "+18765550100", msg.Phone)
	assert.Equal(t, "SMS_BOOKING", msg.TemplateCode)
	assert.Equal(t, "LMV22927-250601-01", msg.Params["reservation_id"])
	assert.NotZero(t, msg.SentAt)

	sender.Clear()
	assert.Nil(t, sender.GetLastMessage())
}

func TestMockSender_Error(t *testing.T) {
	sender := NewMockSender()
	sender.Err = errors.New("quota exceeded")

	err := sender.Send(context.Background(), "+1", "T", nil)
	assert.EqualError(t, err, "quota exceeded")
	assert.Empty(t, sender.Messages())
}

func TestMockSender_Concurrent(t *testing.T) {
	sender := NewMockSender()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sender.Send(context.Background(), "+1", "T", nil)
		}()
	}
	wg.Wait()
	assert.Len(t, sender.Messages(), 20)
}

func TestNewAliyunSender_Defaults(t *testing.T) {
	cfg := &AliyunConfig{AccessKeyID: "id", AccessKeySecret: "secret", SignName: "Villa"}
	sender, err := NewAliyunSender(cfg)
	require.NoError(t, err)
	assert.Equal(t, "cn-hangzhou", cfg.RegionID)
	assert.Equal(t, "Villa", sender.signName)
}
