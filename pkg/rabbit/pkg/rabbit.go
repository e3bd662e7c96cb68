package rabbit

import (
	"context"
	"fmt"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logging "mockly/pkg/logger/pkg"
)

type Rabbit interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

type Config struct {
	Enabled    bool
	Address    string
	Port       int32
	Username   string
	Password   string
	VHost      string
	Exchange   string
	Queue      string
	ExpireTime int32
}

type rabbit struct {
	connectionUrl string
	exchange      string
	queue         string
	expireTime    int32
}

func ReadConfig() *Config {
	viper.BindEnv("rabbitmq.username", "RABBITMQ_USERNAME")
	viper.BindEnv("rabbitmq.password", "RABBITMQ_PASSWORD")

	viper.SetDefault("rabbitmq.exchange", "mockly.events")
	viper.SetDefault("rabbitmq.queue", "mockly.interview.events")

	return &Config{
		Enabled:    viper.GetBool("rabbitmq.enabled"),
		Address:    viper.GetString("rabbitmq.address"),
		Port:       viper.GetInt32("rabbitmq.port"),
		Username:   viper.GetString("rabbitmq.username"),
		Password:   viper.GetString("rabbitmq.password"),
		VHost:      viper.GetString("rabbitmq.vhost"),
		Exchange:   viper.GetString("rabbitmq.exchange"),
		Queue:      viper.GetString("rabbitmq.queue"),
		ExpireTime: viper.GetInt32("rabbitmq.expire_time"),
	}
}

// New returns a publisher for cfg, or the no-op Dummy when cfg is nil or disabled.
func New(cfg *Config) Rabbit {
	if cfg == nil || !cfg.Enabled {
		return &Dummy{}
	}

	connectionUrl := fmt.Sprintf("amqp://%s:%s@%s:%d/%s", cfg.Username, cfg.Password, cfg.Address, cfg.Port, cfg.VHost)
	return &rabbit{
		connectionUrl: connectionUrl,
		exchange:      cfg.Exchange,
		queue:         cfg.Queue,
		expireTime:    cfg.ExpireTime,
	}
}

// Publish sends body to the topic exchange under routingKey. The exchange
// and a durable queue bound to it with "#" are declared on every call.
func (r *rabbit) Publish(ctx context.Context, routingKey string, body []byte) error {
	conn, err := amqp.Dial(r.connectionUrl)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(r.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return err
	}
	q, err := ch.QueueDeclare(r.queue, true, false, false, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, "#", r.exchange, false, nil); err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}
	if r.expireTime > 0 {
		msg.Expiration = strconv.Itoa(int(r.expireTime))
	}
	if err := ch.PublishWithContext(ctx, r.exchange, routingKey, false, false, msg); err != nil {
		return err
	}

	logging.Logger(ctx).Debug("Published event", zap.String("routingKey", routingKey), zap.Int("bytes", len(body)))
	return nil
}
