package slides

import (
	"context"
	"sync"
)

// fakeEngine keeps files in memory and replays canned log lines on Exec.
type fakeEngine struct {
	mu     sync.Mutex
	files  map[string][]byte
	logs   []string
	block  bool
	onExec func(args []string) error
	execs  [][]string
	subs   []chan string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{files: make(map[string][]byte)}
}

func (f *fakeEngine) Exec(ctx context.Context, args ...string) error {
	f.mu.Lock()
	f.execs = append(f.execs, args)
	subs := f.subs
	f.subs = nil
	f.mu.Unlock()

	defer func() {
		for _, ch := range subs {
			close(ch)
		}
	}()

	for _, line := range f.logs {
		for _, ch := range subs {
			ch <- line
		}
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.onExec != nil {
		return f.onExec(args)
	}
	return nil
}

func (f *fakeEngine) ReadFile(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	if !ok {
		return nil, &fileError{name: name}
	}
	return data, nil
}

func (f *fakeEngine) WriteFile(name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = data
	return nil
}

func (f *fakeEngine) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 256)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch, func() {}
}

func (f *fakeEngine) execCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.execs)
}

type fileError struct{ name string }

func (e *fileError) Error() string { return "open " + e.name + ": file does not exist" }
