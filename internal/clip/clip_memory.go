package clip

import "sync"

// Memory is an in-memory Capability. It backs headless nodes (a relay in a
// container still forwards between its peers) and is the test double for the
// engine packages. The zero value is not usable; call NewMemory.
type Memory struct {
	mu    sync.Mutex
	text  string
	image []byte
	files []string
	has   map[string]bool
}

// NewMemory returns an empty in-memory clipboard.
func NewMemory() *Memory {
	return &Memory{has: make(map[string]bool)}
}

func (m *Memory) Name() string { return "in-memory clipboard" }

func (m *Memory) Text() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, m.has["text"]
}

func (m *Memory) Image() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.image, m.has["image"]
}

func (m *Memory) Files() ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files, m.has["files"]
}

// WriteText replaces the clipboard with text content. Like a real clipboard,
// a write clears the other formats.
func (m *Memory) WriteText(s string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = s
	m.has = map[string]bool{"text": true}
	return nil
}

func (m *Memory) WriteImage(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.image = data
	m.has = map[string]bool{"image": true}
	return nil
}

func (m *Memory) WriteFiles(paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = paths
	m.has = map[string]bool{"files": true}
	return nil
}

func (m *Memory) Close() {}
