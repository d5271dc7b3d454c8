// Package notification 预订通知：渲染、异步派发与发送记录
package notification

import (
	"context"
	stderrors "errors"

	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/pkg/mailer"
	"github.com/lavendermoon/villa-pms/pkg/sms"
)

// ErrSkipped 渠道不处理该消息（不写发送记录）
var ErrSkipped = stderrors.New("notification skipped")

// Message 渲染后的单条通知
type Message struct {
	Kind          string
	Channel       string
	ReservationID string
	Recipient     string
	Subject       string
	HTML          string
	Text          string
	Params        map[string]string // 短信模板参数
}

// Payload 派发参数，Reservation 需预加载 Room 与 Guest
type Payload struct {
	Reservation *models.Reservation
	Changes     []string
}

// Notifier 通知渠道
type Notifier interface {
	Channel() string
	Send(ctx context.Context, msg *Message) error
}

// EmailSender 邮件发送接口
type EmailSender interface {
	Send(ctx context.Context, email *mailer.Email) (string, error)
}

// EmailNotifier 邮件渠道
type EmailNotifier struct {
	sender EmailSender
}

// NewEmailNotifier 创建邮件渠道
func NewEmailNotifier(sender EmailSender) *EmailNotifier {
	return &EmailNotifier{sender: sender}
}

// Channel 渠道名
func (n *EmailNotifier) Channel() string {
	return models.NotificationChannelEmail
}

// Send 发送邮件
func (n *EmailNotifier) Send(ctx context.Context, msg *Message) error {
	_, err := n.sender.Send(ctx, &mailer.Email{
		To:      []string{msg.Recipient},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	return err
}

// SMSNotifier 短信渠道，templates 为通知类型到模板编号的映射
type SMSNotifier struct {
	sender    sms.Sender
	templates map[string]string
}

// NewSMSNotifier 创建短信渠道
func NewSMSNotifier(sender sms.Sender, templates map[string]string) *SMSNotifier {
	return &SMSNotifier{sender: sender, templates: templates}
}

// Channel 渠道名
func (n *SMSNotifier) Channel() string {
	return models.NotificationChannelSMS
}

// Send 发送模板短信，未配置模板的类型跳过
func (n *SMSNotifier) Send(ctx context.Context, msg *Message) error {
	code := n.templates[msg.Kind]
	if code == "" {
		return ErrSkipped
	}
	return n.sender.Send(ctx, msg.Recipient, code, msg.Params)
}
