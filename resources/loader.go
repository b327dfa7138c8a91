package resources

import (
	"bytes"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/chase3718/mixery/internal/logging"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
)

// Resource is a decoded sample.
type Resource struct {
	Path   string
	Buffer *beep.Buffer
}

func (r *Resource) Format() beep.Format { return r.Buffer.Format() }

func (r *Resource) Duration() time.Duration {
	return r.Buffer.Format().SampleRate.D(r.Buffer.Len())
}

// Loader decodes resources from a store and caches them. Loads run in the
// background; completions are handed to post, which should run them on the
// goroutine owning the graph.
type Loader struct {
	store   Store
	loading *LoadingManager
	post    func(func())

	mu      sync.Mutex
	cache   map[string]*Resource
	waiting map[string][]func(*Resource, error)
}

// NewLoader builds a loader. A nil post runs completions on the loading
// goroutine; a nil manager disables progress reporting.
func NewLoader(store Store, loading *LoadingManager, post func(func())) *Loader {
	if post == nil {
		post = func(fn func()) { fn() }
	}
	if loading == nil {
		loading = &LoadingManager{}
	}
	return &Loader{
		store:   store,
		loading: loading,
		post:    post,
		cache:   make(map[string]*Resource),
		waiting: make(map[string][]func(*Resource, error)),
	}
}

func (l *Loader) Loading() *LoadingManager { return l.loading }

// Get returns the cached resource, if loaded.
func (l *Loader) Get(p string) (*Resource, bool) {
	c, err := Clean(p)
	if err != nil {
		return nil, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.cache[c]
	return r, ok
}

// Load fetches and decodes p in the background and posts done with the
// result. Concurrent loads of one path share a single decode.
func (l *Loader) Load(p string, done func(*Resource, error)) {
	c, err := Clean(p)
	if err != nil {
		l.post(func() { done(nil, err) })
		return
	}
	l.mu.Lock()
	if r, ok := l.cache[c]; ok {
		l.mu.Unlock()
		l.post(func() { done(r, nil) })
		return
	}
	first := len(l.waiting[c]) == 0
	l.waiting[c] = append(l.waiting[c], done)
	l.mu.Unlock()
	if !first {
		return
	}

	finish := l.loading.Begin()
	go func() {
		defer finish()
		r, err := l.decodePath(c)

		l.mu.Lock()
		if err == nil {
			l.cache[c] = r
		}
		waiters := l.waiting[c]
		delete(l.waiting, c)
		l.mu.Unlock()

		if err != nil {
			logging.L().Warn("resources: load failed", "path", c, "err", err)
		}
		for _, fn := range waiters {
			fn := fn
			l.post(func() { fn(r, err) })
		}
	}()
}

// LoadSync loads p on the calling goroutine.
func (l *Loader) LoadSync(p string) (*Resource, error) {
	c, err := Clean(p)
	if err != nil {
		return nil, err
	}
	if r, ok := l.Get(c); ok {
		return r, nil
	}
	finish := l.loading.Begin()
	defer finish()
	r, err := l.decodePath(c)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.cache[c] = r
	l.mu.Unlock()
	return r, nil
}

// Evict drops p from the cache.
func (l *Loader) Evict(p string) {
	if c, err := Clean(p); err == nil {
		l.mu.Lock()
		delete(l.cache, c)
		l.mu.Unlock()
	}
}

func (l *Loader) decodePath(p string) (*Resource, error) {
	data, err := l.store.Get(p)
	if err != nil {
		return nil, err
	}
	buf, err := Decode(data, path.Ext(p))
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("resources: decode "+p))
	}
	logging.L().Debug("resources: loaded", "path", p, "samples", buf.Len(), "rate", int(buf.Format().SampleRate))
	return &Resource{Path: p, Buffer: buf}, nil
}

// Decode reads a wav or mp3 blob fully into memory.
func Decode(data []byte, ext string) (*beep.Buffer, error) {
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch strings.ToLower(ext) {
	case ".wav":
		s, format, err = wav.Decode(bytes.NewReader(data))
	case ".mp3":
		s, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	default:
		return nil, fault.Wrap(fault.New("unsupported audio format "+ext), ftag.With(ftag.InvalidArgument))
	}
	if err != nil {
		return nil, err
	}
	defer s.Close()
	buf := beep.NewBuffer(format)
	buf.Append(s)
	if err := s.Err(); err != nil {
		return nil, err
	}
	return buf, nil
}
