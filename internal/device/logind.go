package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

// logind D-Bus coordinates for session backlight control.
const (
	logindService       = "org.freedesktop.login1"
	logindSessionPath   = dbus.ObjectPath("/org/freedesktop/login1/session/auto")
	logindSetBrightness = "org.freedesktop.login1.Session.SetBrightness"
	logindSubsystem     = "backlight"

	// DefaultBacklightRoot is the sysfs backlight class directory.
	DefaultBacklightRoot = "/sys/class/backlight"
)

// LogindBus drives backlights through logind's SetBrightness call, which
// needs no root privileges for the active session. When logind is
// unavailable or refuses, it writes sysfs directly. Levels are always read
// from sysfs since logind offers no getter.
type LogindBus struct {
	root      string
	useLogind bool
	logger    Logger

	connMu sync.Mutex
	conn   *dbus.Conn
}

var _ BacklightBus = (*LogindBus)(nil)

// NewLogindBus returns a bus rooted at the given sysfs class directory.
// An empty root uses DefaultBacklightRoot.
func NewLogindBus(root string, useLogind bool) *LogindBus {
	if root == "" {
		root = DefaultBacklightRoot
	}
	return &LogindBus{root: root, useLogind: useLogind, logger: noopLogger{}}
}

// SetLogger sets the logger used to report logind fallbacks.
func (b *LogindBus) SetLogger(logger Logger) {
	b.logger = logger
}

// Root returns the sysfs class directory.
func (b *LogindBus) Root() string { return b.root }

// Brightness reads the current and maximum level from sysfs.
func (b *LogindBus) Brightness(_ context.Context, name string) (current, maxValue uint32, err error) {
	dir := filepath.Join(b.root, name)

	current, err = readUint(filepath.Join(dir, brightnessFile(name)))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrBusFailure, err)
	}
	maxValue, err = readUint(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrBusFailure, err)
	}
	return current, maxValue, nil
}

// SetBrightness sets the level via logind, falling back to sysfs.
func (b *LogindBus) SetBrightness(ctx context.Context, name string, v uint32) error {
	if b.useLogind {
		err := b.callLogind(ctx, name, v)
		if err == nil {
			return nil
		}
		b.logger.Debug("logind SetBrightness failed, writing sysfs", "backlight", name, "error", err)
	}

	path := filepath.Join(b.root, name, "brightness")
	if err := os.WriteFile(path, []byte(strconv.FormatUint(uint64(v), 10)), 0o644); err != nil { //nolint:gosec // sysfs attribute
		return fmt.Errorf("%w: writing %s: %w", ErrBusFailure, path, err)
	}
	return nil
}

// Close drops the D-Bus connection if one was opened.
func (b *LogindBus) Close() error {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

func (b *LogindBus) callLogind(ctx context.Context, name string, v uint32) error {
	conn, err := b.connect()
	if err != nil {
		return err
	}
	obj := conn.Object(logindService, logindSessionPath)
	call := obj.CallWithContext(ctx, logindSetBrightness, 0, logindSubsystem, name, v)
	if call.Err != nil {
		return fmt.Errorf("%w: %w", ErrBusFailure, call.Err)
	}
	return nil
}

func (b *LogindBus) connect() (*dbus.Conn, error) {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if b.conn != nil && b.conn.Connected() {
		return b.conn, nil
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to system bus: %w", ErrBusFailure, err)
	}
	b.conn = conn
	return conn, nil
}

// brightnessFile picks the attribute holding the live level. amdgpu
// reports a stale actual_brightness, so its requested level is used.
func brightnessFile(name string) string {
	if strings.HasPrefix(name, "amdgpu_bl") {
		return "brightness"
	}
	return "actual_brightness"
}

func readUint(path string) (uint32, error) {
	b, err := os.ReadFile(path) //nolint:gosec // sysfs attribute
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return uint32(v), nil
}
