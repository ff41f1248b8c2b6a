package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onboarding-gateway/backend/internal/model"
)

// captureOut collects delivered payloads for inspection.
type captureOut struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureOut) Deliver(data string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, data)
}

func (c *captureOut) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// fixedSource makes the registry draw the same id on every attach, forcing
// collisions on demand.
type fixedSource struct{}

func (fixedSource) Int63() int64 { return 424242 }
func (fixedSource) Seed(int64)   {}

func TestAttachRegistersSession(t *testing.T) {
	reg := New()
	defer reg.Close()

	out := &captureOut{}
	id, err := reg.Attach(out, nil)
	require.NoError(t, err)

	assert.True(t, reg.Contains(id))
	assert.Equal(t, 1, reg.Count())
}

func TestDetachIsIdempotent(t *testing.T) {
	reg := New()
	defer reg.Close()

	id, err := reg.Attach(&captureOut{}, nil)
	require.NoError(t, err)

	reg.Detach(id)
	reg.Detach(id) // second detach is a no-op
	reg.Detach(0)  // never-attached id is a no-op too

	assert.False(t, reg.Contains(id))
	assert.Equal(t, 0, reg.Count())
}

func TestPromptDeliversToAttachedSession(t *testing.T) {
	reg := New()
	defer reg.Close()

	out := &captureOut{}
	id, err := reg.Attach(out, nil)
	require.NoError(t, err)

	reg.Prompt(id, `{"type":"login","target":"home"}`)
	reg.Count() // drain the mailbox

	assert.Equal(t, []string{`{"type":"login","target":"home"}`}, out.messages())
}

func TestPromptAfterDetachIsDropped(t *testing.T) {
	reg := New()
	defer reg.Close()

	out := &captureOut{}
	id, err := reg.Attach(out, nil)
	require.NoError(t, err)

	reg.Detach(id)
	reg.Prompt(id, "late")
	reg.Count()

	assert.Empty(t, out.messages())
}

func TestAttachAfterCloseFails(t *testing.T) {
	reg := New()
	reg.Close()

	_, err := reg.Attach(&captureOut{}, nil)
	assert.ErrorIs(t, err, model.ErrRegistryClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	reg := New()
	reg.Close()
	reg.Close()

	// Post-close operations must not panic or block.
	reg.Detach(1)
	reg.Prompt(1, "x")
	assert.Equal(t, 0, reg.Count())
	assert.False(t, reg.Contains(1))
}

func TestConcurrentOperations(t *testing.T) {
	reg := New()
	defer reg.Close()

	const n = 50
	var wg sync.WaitGroup
	ids := make([]uint16, n)
	outs := make([]*captureOut, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i] = &captureOut{}
			id, err := reg.Attach(outs[i], nil)
			if err != nil {
				t.Errorf("attach failed: %v", err)
				return
			}
			ids[i] = id
			reg.Prompt(id, fmt.Sprintf("msg-%d", i))
		}(i)
	}
	wg.Wait()
	reg.Count()

	// Random ids may collide across 50 attaches; the map must hold exactly
	// the distinct ids that were handed out, and each must be live.
	unique := make(map[uint16]struct{})
	for _, id := range ids {
		unique[id] = struct{}{}
		assert.True(t, reg.Contains(id))
	}
	assert.Equal(t, len(unique), reg.Count())
}
