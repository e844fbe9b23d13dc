package engine

import (
	"github.com/nerrad567/calibright/internal/configstore"
	"github.com/nerrad567/calibright/internal/device"
)

// Reload sources recorded on config events.
const (
	ReloadStartup = "startup"
	ReloadWatch   = "watch"
	ReloadAPI     = "api"
	ReloadManual  = "manual"
)

// ReloadFile loads the calibration file at path and publishes it. A file
// that fails to parse or validate leaves the current configuration in
// place. Every attempt is reported to observers.
func (e *Engine) ReloadFile(path, source string) (bool, error) {
	f, err := configstore.LoadFile(path)
	if err != nil {
		e.rejected(source, err)
		return false, err
	}
	return e.reload(source, f.Global, f.Displays)
}

func (e *Engine) reload(source string, global configstore.Section, overrides map[device.ID]configstore.Section) (bool, error) {
	changed, err := e.store.Replace(global, overrides)
	if err != nil {
		e.rejected(source, err)
		return false, err
	}

	v := e.store.Current().Version
	if changed {
		e.logger.Info("display configuration reloaded", "version", v, "overrides", len(overrides), "source", source)
	}
	e.emit(Event{
		Type:    EventConfigReloaded,
		Version: v,
		Reload:  &ReloadInfo{Source: source, Accepted: true, Changed: changed},
	})
	return changed, nil
}

func (e *Engine) rejected(source string, err error) {
	e.logger.Warn("display configuration rejected", "source", source, "error", err)
	e.emit(Event{
		Type:    EventConfigRejected,
		Version: e.store.Current().Version,
		Reload:  &ReloadInfo{Source: source, Error: err.Error()},
	})
}
