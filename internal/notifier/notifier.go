package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

const QueueName = "notification_queue"

// Dispatcher 把通知投递到消息队列，由独立的 notifier 进程消费发信。
// 投递是 fire-and-forget 的：失败只记录日志，绝不回滚工作流转移
type Dispatcher struct {
	cfg     *config.Config
	channel *amqp.Channel
}

func NewDispatcher(cfg *config.Config, channel *amqp.Channel) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		channel: channel,
	}
}

// DeclareQueue 声明通知队列，api 和 notifier 两端都要调用，
// 保证先启动的一方也能建出队列
func DeclareQueue(channel *amqp.Channel) error {
	_, err := channel.QueueDeclare(
		QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	return err
}

func (d *Dispatcher) Notify(msg domain.NotificationMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		slog.Error("无法序列化通知", "type", msg.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(d.cfg.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	if err := d.channel.PublishWithContext(
		ctx,
		"",
		QueueName,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		// 通知失败不影响工作流，只记录
		slog.Error("无法投递通知", "type", msg.Type, "to", msg.To, "error", err)
	}
}
