// Package publish delivers radar documents to optional external sinks:
// a Redis cache, a RabbitMQ topic exchange and a Telegram chat.
package publish
