package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/calibright/internal/device"
	"github.com/nerrad567/calibright/internal/engine"
	"github.com/nerrad567/calibright/internal/infrastructure/mqtt"
)

const (
	// commandTimeout bounds one MQTT command, including queueing behind
	// other requests for the same display.
	commandTimeout = 15 * time.Second

	// defaultBuffer is the number of outbound messages queued before the
	// bridge starts dropping.
	defaultBuffer = 128
)

// Broker is the subset of the MQTT client the bridge uses.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Controller is the subset of the engine the bridge drives.
type Controller interface {
	ListDisplays() []device.ID
	GetBrightness(ctx context.Context, id device.ID) (float64, error)
	SetBrightness(ctx context.Context, id device.ID, v float64) error
	SetAll(ctx context.Context, ids []device.ID, v float64) error
	Adjust(ctx context.Context, ids []device.ID, delta float64) (float64, error)
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type outbound struct {
	topic    string
	payload  []byte
	retained bool
}

// Bridge translates MQTT commands into engine calls and engine events into
// MQTT state.
type Bridge struct {
	broker Broker
	topics mqtt.Topics
	ctrl   Controller
	qos    byte
	logger Logger

	out chan outbound

	// ctx is replaced by Start; commands and refreshes derive from it so
	// shutdown cancels them.
	ctxMu sync.RWMutex
	ctx   context.Context
}

// New creates a bridge. Call Start to subscribe, then Run to publish.
func New(broker Broker, topics mqtt.Topics, ctrl Controller, qos byte) *Bridge {
	return &Bridge{
		broker: broker,
		topics: topics,
		ctrl:   ctrl,
		qos:    qos,
		logger: noopLogger{},
		out:    make(chan outbound, defaultBuffer),
		ctx:    context.Background(),
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// Start subscribes to the command topics. Commands are cancelled when ctx
// is.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctxMu.Lock()
	b.ctx = ctx
	b.ctxMu.Unlock()

	if err := b.broker.Subscribe(b.topics.AllDisplaySets(), b.qos, b.handleDisplaySet); err != nil {
		return fmt.Errorf("subscribing to display commands: %w", err)
	}
	if err := b.broker.Subscribe(b.topics.BrightnessSet(), b.qos, b.handleBrightnessSet); err != nil {
		return fmt.Errorf("subscribing to brightness commands: %w", err)
	}
	return nil
}

// Run publishes queued messages until ctx is cancelled, then drops the
// command subscriptions.
func (b *Bridge) Run(ctx context.Context) error {
	b.RefreshAll()

	for {
		select {
		case <-ctx.Done():
			b.unsubscribe()
			return nil
		case msg := <-b.out:
			b.publish(msg)
		}
	}
}

func (b *Bridge) publish(msg outbound) {
	var err error
	if msg.retained {
		err = b.broker.PublishRetained(msg.topic, msg.payload)
	} else {
		err = b.broker.Publish(msg.topic, msg.payload, b.qos, false)
	}
	if err != nil {
		b.logger.Warn("MQTT publish failed", "topic", msg.topic, "error", err)
	}
}

func (b *Bridge) unsubscribe() {
	for _, topic := range []string{b.topics.AllDisplaySets(), b.topics.BrightnessSet()} {
		if err := b.broker.Unsubscribe(topic); err != nil {
			b.logger.Debug("MQTT unsubscribe failed", "topic", topic, "error", err)
		}
	}
}

func (b *Bridge) baseContext() context.Context {
	b.ctxMu.RLock()
	defer b.ctxMu.RUnlock()
	return b.ctx
}

// Observe turns engine events into MQTT messages. It never blocks. Pass it
// to engine.Subscribe.
func (b *Bridge) Observe(ev engine.Event) {
	switch ev.Type {
	case engine.EventBrightnessChanged:
		if ev.Brightness != nil {
			b.publishState(ev.DisplayID, *ev.Brightness, ev.Time)
		}
	case engine.EventDisplayAdded:
		go b.refresh(ev.DisplayID)
	case engine.EventDisplayRemoved:
		// An empty retained message clears the broker's copy.
		b.enqueue(outbound{topic: b.topics.DisplayState(string(ev.DisplayID)), retained: true})
	case engine.EventConfigReloaded, engine.EventConfigRejected:
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		b.enqueue(outbound{topic: b.topics.Events(string(ev.Type)), payload: payload})
	default:
	}
}

// RefreshAll reads every display and republishes its state. Called on
// start and after a broker reconnect.
func (b *Bridge) RefreshAll() {
	for _, id := range b.ctrl.ListDisplays() {
		go b.refresh(id)
	}
}

func (b *Bridge) refresh(id device.ID) {
	ctx, cancel := context.WithTimeout(b.baseContext(), commandTimeout)
	defer cancel()

	v, err := b.ctrl.GetBrightness(ctx, id)
	if err != nil {
		b.logger.Debug("state refresh failed", "display", id, "error", err)
		return
	}
	b.publishState(id, v, time.Now())
}

func (b *Bridge) publishState(id device.ID, v float64, at time.Time) {
	payload, err := json.Marshal(state{Display: id, Brightness: v, Timestamp: at.UTC()})
	if err != nil {
		return
	}
	b.enqueue(outbound{topic: b.topics.DisplayState(string(id)), payload: payload, retained: true})
}

func (b *Bridge) enqueue(msg outbound) {
	select {
	case b.out <- msg:
	default:
		b.logger.Warn("MQTT outbound queue full, dropping message", "topic", msg.topic)
	}
}

func (b *Bridge) handleDisplaySet(topic string, payload []byte) error {
	idStr, ok := b.topics.DisplayFromTopic(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	cmd, err := parseCommand(payload)
	if err != nil {
		return err
	}
	id := device.ID(idStr)

	ctx, cancel := context.WithTimeout(b.baseContext(), commandTimeout)
	defer cancel()

	if cmd.Delta != nil {
		_, err = b.ctrl.Adjust(ctx, []device.ID{id}, *cmd.Delta)
	} else {
		err = b.ctrl.SetBrightness(ctx, id, *cmd.Brightness)
	}
	if err != nil {
		return fmt.Errorf("display %s: %w", id, err)
	}
	return nil
}

func (b *Bridge) handleBrightnessSet(_ string, payload []byte) error {
	cmd, err := parseCommand(payload)
	if err != nil {
		return err
	}
	ids := b.ctrl.ListDisplays()

	ctx, cancel := context.WithTimeout(b.baseContext(), commandTimeout)
	defer cancel()

	if cmd.Delta != nil {
		_, err = b.ctrl.Adjust(ctx, ids, *cmd.Delta)
	} else {
		err = b.ctrl.SetAll(ctx, ids, *cmd.Brightness)
	}
	return err
}
