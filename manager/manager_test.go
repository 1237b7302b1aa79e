package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zhubert/mcpcore/client"
	"github.com/zhubert/mcpcore/config"
	"github.com/zhubert/mcpcore/events"
	"github.com/zhubert/mcpcore/transport"
)

// fakeConnector records connect/disconnect calls and fails on demand.
type fakeConnector struct {
	mu             sync.Mutex
	connected      map[string]bool
	connects       []string
	disconnects    []string
	connectErr     map[string]error
	failNextN      int
	disconnectErr  error
	missingOnClose bool
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		connected:  make(map[string]bool),
		connectErr: make(map[string]error),
	}
}

func (f *fakeConnector) Connect(ctx context.Context, name string, cfg transport.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, name)
	if f.failNextN > 0 {
		f.failNextN--
		return errors.New("spawn failed")
	}
	if err := f.connectErr[name]; err != nil {
		return err
	}
	f.connected[name] = true
	return nil
}

func (f *fakeConnector) Disconnect(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects = append(f.disconnects, name)
	if f.disconnectErr != nil {
		return f.disconnectErr
	}
	if f.missingOnClose || !f.connected[name] {
		return &client.ServerNotFoundError{Server: name}
	}
	delete(f.connected, name)
	return nil
}

var _ Connector = (*fakeConnector)(nil)

func testConfig() *config.Config {
	cfg := &config.Config{
		MCPServers: map[string]config.ServerConfig{
			"filesystem": {Command: "npx", Args: []string{"-y", "fs-server"}, Enabled: true},
			"github":     {Command: "npx", Args: []string{"-y", "gh-server"}, Enabled: true},
			"disabled":   {Command: "npx", Enabled: false},
		},
	}
	return cfg
}

func newTestManager(t *testing.T) (*Manager, *fakeConnector) {
	t.Helper()
	conn := newFakeConnector()
	m := New(testConfig(), conn)
	m.settleDelay = time.Millisecond
	return m, conn
}

func TestStartServer(t *testing.T) {
	m, conn := newTestManager(t)

	if err := m.StartServer(context.Background(), "filesystem"); err != nil {
		t.Fatalf("StartServer: %v", err)
	}

	if !m.IsRunning("filesystem") {
		t.Error("server should be running")
	}
	if m.Status("filesystem") != StatusRunning {
		t.Errorf("Status = %s, want running", m.Status("filesystem"))
	}
	if len(conn.connects) != 1 {
		t.Errorf("connects = %v, want one", conn.connects)
	}

	info, ok := m.ServerInfo("filesystem")
	if !ok {
		t.Fatal("ServerInfo should find the server")
	}
	if info.StartedAt == 0 {
		t.Error("StartedAt should be set for a running server")
	}
	if info.LastError != "" {
		t.Errorf("LastError = %q, want empty", info.LastError)
	}
}

func TestStartServer_Unknown(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.StartServer(context.Background(), "ghost")
	var notFound *ServerNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want ServerNotFoundError", err)
	}
	if notFound.Server != "ghost" {
		t.Errorf("Server = %q", notFound.Server)
	}
}

func TestStartServer_Disabled(t *testing.T) {
	m, conn := newTestManager(t)

	err := m.StartServer(context.Background(), "disabled")
	var disabled *ServerDisabledError
	if !errors.As(err, &disabled) {
		t.Fatalf("err = %v, want ServerDisabledError", err)
	}
	if len(conn.connects) != 0 {
		t.Error("disabled server should never reach the connector")
	}
}

func TestStartServer_AlreadyRunning(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.StartServer(context.Background(), "filesystem"); err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	if err := m.StartServer(context.Background(), "filesystem"); err == nil {
		t.Error("expected error for double start")
	}
}

func TestStartServer_ConnectFailure(t *testing.T) {
	m, conn := newTestManager(t)
	conn.connectErr["filesystem"] = errors.New("command not found")

	err := m.StartServer(context.Background(), "filesystem")
	if err == nil {
		t.Fatal("expected start error")
	}

	if m.Status("filesystem") != StatusError {
		t.Errorf("Status = %s, want error", m.Status("filesystem"))
	}
	info, _ := m.ServerInfo("filesystem")
	if info.LastError != "command not found" {
		t.Errorf("LastError = %q", info.LastError)
	}
}

func TestStartServer_ClearsLastError(t *testing.T) {
	m, conn := newTestManager(t)
	conn.connectErr["filesystem"] = errors.New("boom")
	m.StartServer(context.Background(), "filesystem")

	delete(conn.connectErr, "filesystem")
	if err := m.StartServer(context.Background(), "filesystem"); err != nil {
		t.Fatalf("StartServer retry: %v", err)
	}

	info, _ := m.ServerInfo("filesystem")
	if info.LastError != "" {
		t.Errorf("LastError = %q, want cleared", info.LastError)
	}
}

func TestStopServer(t *testing.T) {
	m, conn := newTestManager(t)
	m.StartServer(context.Background(), "filesystem")

	if err := m.StopServer("filesystem"); err != nil {
		t.Fatalf("StopServer: %v", err)
	}

	if m.Status("filesystem") != StatusStopped {
		t.Errorf("Status = %s, want stopped", m.Status("filesystem"))
	}
	info, _ := m.ServerInfo("filesystem")
	if info.StartedAt != 0 {
		t.Error("StartedAt should be cleared after stop")
	}
	if len(conn.disconnects) != 1 {
		t.Errorf("disconnects = %v", conn.disconnects)
	}
}

func TestStopServer_NotConnectedNormalizesStatus(t *testing.T) {
	m, _ := newTestManager(t)

	// Disconnect returns ServerNotFoundError; stop still lands on stopped.
	if err := m.StopServer("filesystem"); err != nil {
		t.Fatalf("StopServer: %v", err)
	}
	if m.Status("filesystem") != StatusStopped {
		t.Errorf("Status = %s, want stopped", m.Status("filesystem"))
	}
}

func TestStopServer_DisconnectFailure(t *testing.T) {
	m, conn := newTestManager(t)
	m.StartServer(context.Background(), "filesystem")
	conn.disconnectErr = errors.New("kill failed")

	if err := m.StopServer("filesystem"); err == nil {
		t.Fatal("expected stop error")
	}
	if m.Status("filesystem") != StatusError {
		t.Errorf("Status = %s, want error", m.Status("filesystem"))
	}
}

func TestStopServer_Unregistered(t *testing.T) {
	m, conn := newTestManager(t)

	err := m.StopServer("ghost")
	var notFound *ServerNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want ServerNotFoundError", err)
	}
	if len(conn.disconnects) != 0 {
		t.Errorf("disconnects = %v, unregistered stop must not reach the connector", conn.disconnects)
	}

	// The rejected name must not leave a record in the server table.
	m.mu.RLock()
	_, fabricated := m.servers["ghost"]
	m.mu.RUnlock()
	if fabricated {
		t.Error("unregistered stop fabricated a server state entry")
	}
}

func TestRestartServer_Unregistered(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.RestartServer(context.Background(), "ghost")
	var notFound *ServerNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want ServerNotFoundError", err)
	}
}

func TestRestartServer_IncrementsCount(t *testing.T) {
	m, _ := newTestManager(t)
	m.StartServer(context.Background(), "filesystem")

	if err := m.RestartServer(context.Background(), "filesystem"); err != nil {
		t.Fatalf("RestartServer: %v", err)
	}

	info, _ := m.ServerInfo("filesystem")
	if info.RestartCount != 1 {
		t.Errorf("RestartCount = %d, want 1", info.RestartCount)
	}
	if !m.IsRunning("filesystem") {
		t.Error("server should be running after restart")
	}
}

func TestRestartServer_CountsFailedStarts(t *testing.T) {
	m, conn := newTestManager(t)
	conn.connectErr["filesystem"] = errors.New("still broken")

	for i := 0; i < 2; i++ {
		if err := m.RestartServer(context.Background(), "filesystem"); err == nil {
			t.Fatal("expected restart to fail")
		}
	}

	info, _ := m.ServerInfo("filesystem")
	if info.RestartCount != 2 {
		t.Errorf("RestartCount = %d, want 2 (failures still count)", info.RestartCount)
	}
	if m.Status("filesystem") != StatusError {
		t.Errorf("Status = %s, want error", m.Status("filesystem"))
	}
}

func TestRestartServer_NoSettleDelayWhenNotRunning(t *testing.T) {
	m, conn := newTestManager(t)
	m.settleDelay = 250 * time.Millisecond
	conn.connectErr["filesystem"] = errors.New("boom")
	m.StartServer(context.Background(), "filesystem") // lands in error, never ran

	delete(conn.connectErr, "filesystem")
	start := time.Now()
	if err := m.RestartServer(context.Background(), "filesystem"); err != nil {
		t.Fatalf("RestartServer: %v", err)
	}

	// The settle delay only applies after an actual stop.
	if elapsed := time.Since(start); elapsed >= m.settleDelay {
		t.Errorf("restart of a non-running server took %v, should skip the settle delay", elapsed)
	}
}

func TestAutoRestartFailed(t *testing.T) {
	m, conn := newTestManager(t)
	conn.connectErr["filesystem"] = errors.New("boom")
	m.StartServer(context.Background(), "filesystem") // lands in error

	delete(conn.connectErr, "filesystem")
	restarted := m.AutoRestartFailed(context.Background())

	if len(restarted) != 1 || restarted[0] != "filesystem" {
		t.Errorf("restarted = %v, want [filesystem]", restarted)
	}
	if !m.IsRunning("filesystem") {
		t.Error("server should be running after the sweep")
	}
}

func TestAutoRestartFailed_RespectsCap(t *testing.T) {
	m, conn := newTestManager(t)
	conn.connectErr["filesystem"] = errors.New("permanently broken")

	m.StartServer(context.Background(), "filesystem")
	for i := 0; i < maxAutoRestarts; i++ {
		if got := m.AutoRestartFailed(context.Background()); len(got) != 0 {
			t.Fatalf("sweep %d restarted %v despite failures", i, got)
		}
	}

	info, _ := m.ServerInfo("filesystem")
	if info.RestartCount != maxAutoRestarts {
		t.Fatalf("RestartCount = %d, want %d", info.RestartCount, maxAutoRestarts)
	}

	// The budget is exhausted; further sweeps must not touch the server.
	before := len(conn.connects)
	if got := m.AutoRestartFailed(context.Background()); len(got) != 0 {
		t.Errorf("sweep past the cap restarted %v", got)
	}
	if len(conn.connects) != before {
		t.Error("sweep past the cap should not attempt a connect")
	}
}

func TestAutoRestartFailed_SweepContinuesPastFailures(t *testing.T) {
	m, conn := newTestManager(t)
	conn.connectErr["filesystem"] = errors.New("boom")
	conn.connectErr["github"] = errors.New("boom")
	m.StartServer(context.Background(), "filesystem")
	m.StartServer(context.Background(), "github")

	// filesystem stays broken; github recovers.
	delete(conn.connectErr, "github")
	restarted := m.AutoRestartFailed(context.Background())

	if len(restarted) != 1 || restarted[0] != "github" {
		t.Errorf("restarted = %v, want [github]", restarted)
	}
	if m.Status("filesystem") != StatusError {
		t.Errorf("filesystem Status = %s, want error", m.Status("filesystem"))
	}
	if !m.IsRunning("github") {
		t.Error("github should be running")
	}
}

func TestListServers(t *testing.T) {
	m, _ := newTestManager(t)
	m.StartServer(context.Background(), "filesystem")

	infos := m.ListServers()
	if len(infos) != 3 {
		t.Fatalf("len(infos) = %d, want 3", len(infos))
	}

	// Sorted by name: disabled, filesystem, github.
	if infos[0].Name != "disabled" || infos[1].Name != "filesystem" || infos[2].Name != "github" {
		t.Errorf("order = %s, %s, %s", infos[0].Name, infos[1].Name, infos[2].Name)
	}
	if infos[1].Status != StatusRunning {
		t.Errorf("filesystem Status = %s, want running", infos[1].Status)
	}
	if infos[2].Status != StatusStopped {
		t.Errorf("github Status = %s, want stopped (never started)", infos[2].Status)
	}
	if infos[0].Enabled {
		t.Error("disabled server should report Enabled = false")
	}
}

func TestRunningServers(t *testing.T) {
	m, _ := newTestManager(t)
	m.StartServer(context.Background(), "github")
	m.StartServer(context.Background(), "filesystem")

	running := m.RunningServers()
	if len(running) != 2 || running[0] != "filesystem" || running[1] != "github" {
		t.Errorf("running = %v, want [filesystem github]", running)
	}
}

func TestStopAll(t *testing.T) {
	m, conn := newTestManager(t)
	m.StartServer(context.Background(), "filesystem")
	m.StartServer(context.Background(), "github")

	m.StopAll()

	if len(m.RunningServers()) != 0 {
		t.Error("no servers should be running after StopAll")
	}
	if len(conn.disconnects) != 2 {
		t.Errorf("disconnects = %v, want both servers", conn.disconnects)
	}
}

func TestStatus_UnknownServer(t *testing.T) {
	m, _ := newTestManager(t)

	if got := m.Status("never-touched"); got != StatusStopped {
		t.Errorf("Status = %s, want stopped", got)
	}
	if m.IsRunning("never-touched") {
		t.Error("unknown server should not be running")
	}
	if _, ok := m.ServerInfo("ghost"); ok {
		t.Error("ServerInfo should not find an unconfigured server")
	}
}

func TestManager_PublishesConnectionEvents(t *testing.T) {
	m, _ := newTestManager(t)
	bus := events.NewBus()
	ch, unsub := bus.Subscribe()
	defer unsub()
	m.SetEventBus(bus)

	m.StartServer(context.Background(), "filesystem")
	m.StopServer("filesystem")

	var got []events.Event
	for i := 0; i < 2; i++ {
		select {
		case e := <-ch:
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatal("missing connection event")
		}
	}

	if got[0].Kind != events.KindServerConnectionChanged || !got[0].Connected {
		t.Errorf("first event = %+v, want connected", got[0])
	}
	if got[1].Connected {
		t.Errorf("second event = %+v, want disconnected", got[1])
	}
}

func TestSetEventBus_ConcurrentWithPublish(t *testing.T) {
	m, _ := newTestManager(t)
	bus := events.NewBus()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			m.SetEventBus(bus)
			m.SetEventBus(nil)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			m.StartServer(context.Background(), "filesystem")
			m.StopServer("filesystem")
		}
	}()
	wg.Wait()
}

func TestConcurrentStatusAccess(t *testing.T) {
	m, _ := newTestManager(t)
	m.StartServer(context.Background(), "filesystem")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			m.ListServers()
		}()
		go func() {
			defer wg.Done()
			m.Status("filesystem")
		}()
		go func() {
			defer wg.Done()
			m.RunningServers()
		}()
	}
	wg.Wait()
}
