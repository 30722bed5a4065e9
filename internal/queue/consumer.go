// Package queue contains the background consumer that listens to the
// room.changed queue, purges cached listing pages and writes an audit line
// to logs/rooms.log.
package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, ev RoomChangedEvent) error

// Chain runs handlers in order and stops at the first error.
func Chain(hs ...Handler) Handler {
    return func(ctx context.Context, ev RoomChangedEvent) error {
        for _, h := range hs {
            if err := h(ctx, ev); err != nil {
                return err
            }
        }
        return nil
    }
}

// StartRoomConsumer connects to RabbitMQ, declares the room.changed queue
// (durable) and feeds every message to handle.  It reconnects with
// exponential backoff and returns only when ctx is cancelled.  Messages
// that fail are rejected without requeue so one bad payload cannot spin.
func StartRoomConsumer(ctx context.Context, url string, handle Handler) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            slog.Warn("room-consumer: failed to dial broker", "error", err, "retry_in", backoff.String())
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, handle)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        slog.Warn("room-consumer: consume loop ended, reconnecting", "error", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, handle Handler) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        slog.Warn("room-consumer: set QoS failed", "error", err)
    }
    if _, err := ch.QueueDeclare(RoomChangedQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(RoomChangedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := HandleMessage(ctx, d.Body, handle); err != nil {
                slog.Error("room-consumer: handle message failed", "error", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// HandleMessage decodes body and passes it to handle.
func HandleMessage(ctx context.Context, body []byte, handle Handler) error {
    var ev RoomChangedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.RoomID == "" || ev.Action == "" {
        return errors.New("event without room_id or action")
    }
    return handle(ctx, ev)
}

// AuditLog returns a handler appending one line per event to
// dir/rooms.log.
func AuditLog(dir string) Handler {
    return func(_ context.Context, ev RoomChangedEvent) error {
        if err := os.MkdirAll(dir, 0o755); err != nil {
            return fmt.Errorf("mkdir logs: %w", err)
        }
        f, err := os.OpenFile(filepath.Join(dir, "rooms.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
        if err != nil {
            return fmt.Errorf("open log file: %w", err)
        }
        defer f.Close()

        price := "-"
        if ev.PriceVND != nil {
            price = fmt.Sprintf("%d", *ev.PriceVND)
        }
        line := fmt.Sprintf("[%s] Room %s | room_id=%s | actor=%s (%s) | price_vnd=%s\n",
            ev.ChangedAt, ev.Action, ev.RoomID, ev.ActorID, ev.ActorRole, price)
        if _, err := f.WriteString(line); err != nil {
            return fmt.Errorf("write log: %w", err)
        }
        return nil
    }
}
