package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/rickgao/odds-history/internal/config"
	"github.com/rickgao/odds-history/internal/model"
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends one persistent JSON message per league to a topic
// exchange with routing key radar.<league>.
type AMQPPublisher struct {
	ch       Channel
	conn     *amqp.Connection
	exchange string
	logger   *slog.Logger
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(cfg config.AMQPConfig, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	p, err := NewAMQPPublisher(ch, cfg.Exchange, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewAMQPPublisher declares a durable topic exchange on ch.
func NewAMQPPublisher(ch Channel, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger.With("component", "amqp_publisher"),
	}, nil
}

func (p *AMQPPublisher) Name() string { return "amqp" }

// RoutingKey returns the routing key for a league's messages.
func RoutingKey(league string) string {
	return "radar." + league
}

// Publish sends the radar split by league. Leagues without items get no message.
func (p *AMQPPublisher) Publish(ctx context.Context, radar model.Radar) error {
	groups := byLeague(radar)
	for _, league := range leagueNames(groups) {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := json.Marshal(leagueRadar(radar, groups[league]))
		if err != nil {
			return fmt.Errorf("marshal radar for %s: %w", league, err)
		}
		err = p.ch.Publish(p.exchange, RoutingKey(league), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    radar.RunID + ":" + league,
			Timestamp:    radar.GeneratedAt,
			Type:         model.RadarSchemaVersion,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish %s: %w", RoutingKey(league), err)
		}
	}
	p.logger.Debug("radar sent", "exchange", p.exchange, "leagues", len(groups))
	return nil
}

func (p *AMQPPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
