package converter

import "log/slog"

// Observer receives pipeline events that never change control flow.
type Observer interface {
	// OrientationUnreadable is called when orientation metadata exists but
	// could not be read. The image is treated as upright.
	OrientationUnreadable(index int, ref string, err error)
	// PageAdded is called after a page has been appended to the document.
	PageAdded(index int, ref string, width, height int)
}

// LogObserver reports pipeline events to a slog.Logger.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) OrientationUnreadable(index int, ref string, err error) {
	o.Logger.Warn("Could not read orientation metadata, assuming upright", "index", index, "ref", ref, "error", err)
}

func (o LogObserver) PageAdded(index int, ref string, width, height int) {
	o.Logger.Debug("Added page", "index", index, "ref", ref, "width", width, "height", height)
}

type nopObserver struct{}

func (nopObserver) OrientationUnreadable(int, string, error) {}
func (nopObserver) PageAdded(int, string, int, int)          {}
