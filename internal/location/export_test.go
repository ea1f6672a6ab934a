package location

import "time"

func (h *Hub) Watchers(deviceID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if dev, ok := h.devices[deviceID]; ok {
		return len(dev.watches)
	}
	return 0
}

func (h *Hub) Devices() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.devices)
}

func (h *Hub) SetClock(now func() time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = now
}
