package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ps2mqtt/agent/internal/config"
	"github.com/ps2mqtt/agent/internal/hass"
	"github.com/ps2mqtt/agent/internal/metrics"
)

type message struct {
	topic    string
	payload  string
	retained bool
}

// fakePublisher records every publish in order.
type fakePublisher struct {
	mu   sync.Mutex
	msgs []message
}

func (f *fakePublisher) Publish(topic, payload string, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, message{topic, payload, retained})
	return nil
}

func (f *fakePublisher) snapshot() []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]message, len(f.msgs))
	copy(out, f.msgs)
	return out
}

// waitFor blocks until at least n messages were published or the timeout
// expires.
func (f *fakePublisher) waitFor(t *testing.T, n int) []message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := f.snapshot(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d messages, got %d", n, len(f.snapshot()))
	return nil
}

// testCollector produces one gauge sample per key, or errors when broken.
type testCollector struct {
	name   string
	keys   []string
	broken bool
}

func (c *testCollector) Name() string { return c.name }

func (c *testCollector) Describe() []metrics.Descriptor {
	out := make([]metrics.Descriptor, len(c.keys))
	for i, k := range c.keys {
		out[i] = metrics.Descriptor{Key: k, Name: k, Kind: metrics.Gauge, Precision: 1}
	}
	return out
}

func (c *testCollector) Collect(ctx context.Context) ([]metrics.Sample, error) {
	if c.broken {
		return nil, errors.New("collector broken")
	}
	samples := make([]metrics.Sample, len(c.keys))
	for i, d := range c.Describe() {
		samples[i] = metrics.Sample{Descriptor: d, Value: 23.5}
	}
	return samples, nil
}

func (c *testCollector) IsAvailable() bool { return true }

func testSetup(t *testing.T, period time.Duration, collectors ...metrics.Collector) (*Scheduler, *fakePublisher) {
	t.Helper()
	cfg := config.Default()
	cfg.MQTTBaseTopic = "ps2mqtt"
	cfg.HADiscoverPrefix = "homeassistant"
	cfg.Period = config.Duration{Duration: period}

	registry := metrics.NewRegistry(zap.NewNop())
	for _, c := range collectors {
		registry.Register(c)
	}

	encoder := hass.NewEncoder(cfg.HADiscoverPrefix, cfg.MQTTBaseTopic, "test",
		hass.HostInfo{Hostname: "testbox", Platform: "test", OS: "linux"})

	pub := &fakePublisher{}
	return New(cfg, registry, encoder, pub, zap.NewNop()), pub
}

// run starts the scheduler and returns a stop function that cancels it and
// waits for the loop to exit.
func run(s *Scheduler) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestConnect_DiscoveryBeforeState(t *testing.T) {
	s, pub := testSetup(t, time.Hour, &testCollector{name: "c", keys: []string{"m1", "m2"}})
	stop := run(s)
	defer stop()

	s.Connected()

	// online + 2 discovery + 2 state + status refresh
	msgs := pub.waitFor(t, 6)

	if msgs[0].topic != "ps2mqtt/status" || msgs[0].payload != "online" || !msgs[0].retained {
		t.Errorf("first message = %+v, want retained online status", msgs[0])
	}

	firstState := -1
	lastDiscovery := -1
	for i, m := range msgs {
		switch {
		case strings.HasSuffix(m.topic, "/config"):
			lastDiscovery = i
			if !m.retained {
				t.Errorf("discovery message not retained: %+v", m)
			}
		case m.topic == "ps2mqtt/m1" || m.topic == "ps2mqtt/m2":
			if firstState == -1 {
				firstState = i
			}
		}
	}
	if lastDiscovery == -1 || firstState == -1 {
		t.Fatalf("missing discovery or state messages: %+v", msgs)
	}
	if lastDiscovery > firstState {
		t.Errorf("state published before discovery completed (discovery idx %d, state idx %d)",
			lastDiscovery, firstState)
	}
}

func TestConnect_PublishesAllCatalogEntries(t *testing.T) {
	s, pub := testSetup(t, time.Hour, &testCollector{name: "c", keys: []string{"m1", "m2", "m3"}})
	stop := run(s)
	defer stop()

	s.Connected()
	msgs := pub.waitFor(t, 8)

	discovered := map[string]bool{}
	for _, m := range msgs {
		if strings.HasSuffix(m.topic, "/config") {
			discovered[m.topic] = true
		}
	}
	for _, key := range []string{"m1", "m2", "m3"} {
		want := "homeassistant/sensor/ps2mqtt/" + key + "/config"
		if !discovered[want] {
			t.Errorf("missing discovery for %s", want)
		}
	}
}

func TestNoPublishBeforeConnect(t *testing.T) {
	s, pub := testSetup(t, 20*time.Millisecond, &testCollector{name: "c", keys: []string{"m1"}})
	stop := run(s)
	defer stop()

	time.Sleep(100 * time.Millisecond)
	if msgs := pub.snapshot(); len(msgs) != 0 {
		t.Errorf("published %d messages before any connection: %+v", len(msgs), msgs)
	}
}

func TestSteadyState_PeriodicCycles(t *testing.T) {
	s, pub := testSetup(t, 20*time.Millisecond, &testCollector{name: "c", keys: []string{"m1"}})
	stop := run(s)
	defer stop()

	s.Connected()
	// Connect burst is 4 messages; each tick adds a state + status pair.
	msgs := pub.waitFor(t, 4+3*2)

	states := 0
	for _, m := range msgs {
		if m.topic == "ps2mqtt/m1" {
			states++
		}
	}
	if states < 3 {
		t.Errorf("observed %d state publishes, want several periodic cycles", states)
	}
}

func TestReconnect_ReannouncesDiscovery(t *testing.T) {
	s, pub := testSetup(t, time.Hour, &testCollector{name: "c", keys: []string{"m1"}})
	stop := run(s)
	defer stop()

	s.Connected()
	pub.waitFor(t, 4)

	s.ConnectionLost(errors.New("broker gone"))
	s.Connected()
	msgs := pub.waitFor(t, 8)

	// After the reconnect, discovery must reappear before the next state.
	tail := msgs[4:]
	discoveryIdx, stateIdx := -1, -1
	for i, m := range tail {
		if strings.HasSuffix(m.topic, "/config") && discoveryIdx == -1 {
			discoveryIdx = i
		}
		if m.topic == "ps2mqtt/m1" && stateIdx == -1 {
			stateIdx = i
		}
	}
	if discoveryIdx == -1 {
		t.Fatal("no discovery burst after reconnect")
	}
	if stateIdx != -1 && stateIdx < discoveryIdx {
		t.Errorf("state published before discovery after reconnect: %+v", tail)
	}
}

func TestDisconnected_TicksSkipped(t *testing.T) {
	s, pub := testSetup(t, 20*time.Millisecond, &testCollector{name: "c", keys: []string{"m1"}})
	stop := run(s)
	defer stop()

	s.Connected()
	pub.waitFor(t, 4)
	s.ConnectionLost(errors.New("broker gone"))

	// Give several periods a chance to fire while disconnected.
	time.Sleep(100 * time.Millisecond)
	before := len(pub.snapshot())
	time.Sleep(100 * time.Millisecond)
	if after := len(pub.snapshot()); after != before {
		t.Errorf("messages published while disconnected: %d -> %d", before, after)
	}
}

func TestHubRestart_RepublishesDiscovery(t *testing.T) {
	s, pub := testSetup(t, time.Hour, &testCollector{name: "c", keys: []string{"m1"}})
	stop := run(s)
	defer stop()

	s.Connected()
	pub.waitFor(t, 4)

	s.HubRestart()
	msgs := pub.waitFor(t, 6)

	found := false
	for _, m := range msgs[4:] {
		if strings.HasSuffix(m.topic, "/config") {
			found = true
		}
	}
	if !found {
		t.Error("no discovery re-publish after hub restart")
	}
}

func TestBrokenCollector_OthersStillPublish(t *testing.T) {
	s, pub := testSetup(t, time.Hour,
		&testCollector{name: "good", keys: []string{"m1"}},
		&testCollector{name: "bad", keys: []string{"m2"}, broken: true},
	)
	stop := run(s)
	defer stop()

	s.Connected()
	// online + 2 discovery + 1 state (m2 skipped) + status refresh
	msgs := pub.waitFor(t, 5)

	sawGood, sawBad := false, false
	for _, m := range msgs {
		if m.topic == "ps2mqtt/m1" {
			sawGood = true
		}
		if m.topic == "ps2mqtt/m2" {
			sawBad = true
		}
	}
	if !sawGood {
		t.Error("healthy metric not published")
	}
	if sawBad {
		t.Error("broken metric published state")
	}
}

func TestShutdown_FinalMessageIsRetainedOffline(t *testing.T) {
	s, pub := testSetup(t, time.Hour, &testCollector{name: "c", keys: []string{"m1"}})
	stop := run(s)

	s.Connected()
	pub.waitFor(t, 4)

	stop()

	msgs := pub.snapshot()
	last := msgs[len(msgs)-1]
	if last.topic != "ps2mqtt/status" || last.payload != "offline" || !last.retained {
		t.Errorf("final message = %+v, want retained offline status", last)
	}
}
