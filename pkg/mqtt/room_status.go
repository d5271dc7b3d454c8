package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lavendermoon/villa-pms/internal/common/metrics"
	"github.com/lavendermoon/villa-pms/internal/models"
)

// Publisher 消息发布接口
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// RoomStatusMessage 房态消息
type RoomStatusMessage struct {
	RoomID     int64  `json:"room_id"`
	RoomNumber string `json:"room_number"`
	Status     string `json:"status"`
	Timestamp  int64  `json:"timestamp"`
}

// RoomStatusPublisher 推送房态到客房部看板
// 主题: <prefix>rooms/<room_number>/status
type RoomStatusPublisher struct {
	publisher   Publisher
	topicPrefix string
	timeout     time.Duration
	metrics     *metrics.Metrics
}

// NewRoomStatusPublisher 创建房态推送器
func NewRoomStatusPublisher(publisher Publisher, topicPrefix string, m *metrics.Metrics) *RoomStatusPublisher {
	return &RoomStatusPublisher{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		timeout:     3 * time.Second,
		metrics:     m,
	}
}

// Topic 房间的房态主题
func (p *RoomStatusPublisher) Topic(roomNumber string) string {
	prefix := p.topicPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return fmt.Sprintf("%srooms/%s/status", prefix, roomNumber)
}

// PublishRoomStatus 推送房态
func (p *RoomStatusPublisher) PublishRoomStatus(ctx context.Context, room *models.Room) error {
	data, err := json.Marshal(&RoomStatusMessage{
		RoomID:     room.ID,
		RoomNumber: room.RoomNumber,
		Status:     room.Status,
		Timestamp:  time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.publisher.Publish(ctx, p.Topic(room.RoomNumber), data)
	p.metrics.RecordMQTTPublish(err == nil)
	return err
}
