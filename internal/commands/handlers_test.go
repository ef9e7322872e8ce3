package commands

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/radiorevive/console/internal/event"
	"github.com/radiorevive/console/pkg/models"
	"go.uber.org/zap"
)

func testModule(t *testing.T) *Module {
	t.Helper()
	st := testStore(t)
	bus := event.NewBus(zap.NewNop())
	return &Module{
		logger:     zap.NewNop(),
		store:      st,
		bus:        bus,
		dispatcher: NewDispatcher(st, bus, zap.NewNop()),
	}
}

func dispatch(t *testing.T, m *Module, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/queue", strings.NewReader(body))
	w := httptest.NewRecorder()
	m.handleDispatch(w, req)
	return w
}

func TestHandleDispatch_VolumeBounds(t *testing.T) {
	m := testModule(t)

	for _, body := range []string{
		`{"device_id": "r1", "action": "volume", "volume": -1}`,
		`{"device_id": "r1", "action": "volume", "volume": 101}`,
		`{"device_id": "r1", "action": "volume"}`,
	} {
		if w := dispatch(t, m, body); w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}

	for _, body := range []string{
		`{"device_id": "r1", "action": "volume", "volume": 0}`,
		`{"device_id": "r1", "action": "volume", "volume": 100}`,
	} {
		if w := dispatch(t, m, body); w.Code != http.StatusCreated {
			t.Errorf("body %s: status = %d, want 201", body, w.Code)
		}
	}
}

func TestHandleDispatch_UnknownAction(t *testing.T) {
	m := testModule(t)

	if w := dispatch(t, m, `{"device_id": "r1", "action": "reboot"}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleDispatch_RequiresDeviceID(t *testing.T) {
	m := testModule(t)

	if w := dispatch(t, m, `{"action": "stop"}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleDispatch_NetworkConfigDefaultsInterface(t *testing.T) {
	m := testModule(t)

	w := dispatch(t, m, `{"device_id": "r1", "action": "network_config", "ip_address": "10.0.0.5"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var cmd models.Command
	if err := json.NewDecoder(w.Body).Decode(&cmd); err != nil {
		t.Fatal(err)
	}
	if cmd.Interface != "eth0" {
		t.Errorf("interface = %q, want eth0 default", cmd.Interface)
	}
	if cmd.Gateway != "" || cmd.DNS1 != "" || cmd.DNS2 != "" {
		t.Errorf("unset address fields = %q/%q/%q, want empty", cmd.Gateway, cmd.DNS1, cmd.DNS2)
	}
}

func TestHandleDispatch_WifiRequiresSSID(t *testing.T) {
	m := testModule(t)

	if w := dispatch(t, m, `{"device_id": "r1", "action": "configure_wifi"}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandlePendingAfterDispatch(t *testing.T) {
	m := testModule(t)
	ctx := context.Background()

	if _, err := m.dispatcher.SendPlay(ctx, "radio-7", "http://stream.example/x"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/pending/radio-7", http.NoBody)
	req.SetPathValue("deviceID", "radio-7")
	w := httptest.NewRecorder()
	m.handlePending(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var cmds []models.Command
	if err := json.NewDecoder(w.Body).Decode(&cmds); err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 1 || cmds[0].Action != models.ActionPlay || cmds[0].StreamURL != "http://stream.example/x" {
		t.Errorf("pending = %+v", cmds)
	}
}

func TestHandleMarkProcessed(t *testing.T) {
	m := testModule(t)
	ctx := context.Background()

	cmd, err := m.dispatcher.SendStop(ctx, "radio-1")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/queue/"+cmd.ID+"/processed", http.NoBody)
	req.SetPathValue("id", cmd.ID)
	w := httptest.NewRecorder()
	m.handleMarkProcessed(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}

	pending, err := m.store.PendingForDevice(ctx, "radio-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d entries after processing, want 0", len(pending))
	}
}
