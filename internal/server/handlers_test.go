package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowChatSlidingWindow(t *testing.T) {
	sess := &Session{}
	base := time.Now()

	for i := 0; i < rateLimitMax; i++ {
		assert.True(t, sess.allowChat(base.Add(time.Duration(i)*time.Millisecond)), "message %d should pass", i+1)
	}
	assert.False(t, sess.allowChat(base.Add(100*time.Millisecond)), "13th message in window must be dropped")
}

func TestAllowChatWindowExpires(t *testing.T) {
	sess := &Session{}
	base := time.Now()

	for i := 0; i < rateLimitMax; i++ {
		assert.True(t, sess.allowChat(base))
	}
	assert.False(t, sess.allowChat(base))

	// Just past the window the oldest entries fall out.
	assert.True(t, sess.allowChat(base.Add(rateLimitWindow+time.Millisecond)))
}

// Rejected attempts still land in the window, so a client that keeps
// hammering stays limited until it actually backs off.
func TestAllowChatRejectionExtendsWindow(t *testing.T) {
	sess := &Session{}
	base := time.Now()
	for i := 0; i < rateLimitMax; i++ {
		assert.True(t, sess.allowChat(base))
	}
	for i := 0; i < rateLimitMax; i++ {
		assert.False(t, sess.allowChat(base.Add(time.Second)))
	}

	// The original burst has aged out, but the rejected attempts at
	// t=1s are still inside the window.
	assert.False(t, sess.allowChat(base.Add(5500*time.Millisecond)))

	// Only once the rejected burst ages out does a slot open up.
	assert.True(t, sess.allowChat(base.Add(6600*time.Millisecond)))
}

func TestNormalizeRenderer(t *testing.T) {
	cases := map[string]string{
		"rich":    "rich",
		"RICH":    "rich",
		"minimal": "minimal",
		"json":    "json",
		"ascii":   "rich",
		"":        "rich",
		" json ":  "json",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeRenderer(in), "input %q", in)
	}
}

func TestClampBufferSize(t *testing.T) {
	cases := map[string]int{
		"":     200,
		"abc":  200,
		"5":    10,
		"50":   50,
		"5000": 1000,
	}
	for in, want := range cases {
		assert.Equal(t, want, clampBufferSize(json.Number(in)), "input %q", in)
	}
}

func TestConnRateLimiterPerIP(t *testing.T) {
	l := NewConnRateLimiter(ConnRateLimiterConfig{IPBurst: 2, IPRate: 0.001})
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, l.Allow("10.0.0.2"), "other IPs unaffected")
}

func TestConnRateLimiterGlobal(t *testing.T) {
	l := NewConnRateLimiter(ConnRateLimiterConfig{GlobalBurst: 1, GlobalRate: 0.001, IPBurst: 100, IPRate: 100})
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.2"), "global bucket applies across IPs")
}
