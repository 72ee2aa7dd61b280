package supervisor

import (
	"context"
	"testing"

	"github.com/omniquery/omniquery-backend/internal/platform/logger"
)

func supervisorLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func TestSpecsFromEnvDefaults(t *testing.T) {
	t.Setenv("MCP_AUDIO_COMMAND", "python audio_server.py")
	t.Setenv("MCP_AUDIO_PORT", "9001")

	specs := SpecsFromEnv()
	if len(specs) != 4 {
		t.Fatalf("specs = %d, want 4", len(specs))
	}
	byName := map[string]ServerSpec{}
	for _, s := range specs {
		byName[s.Name] = s
	}
	if byName["audio"].Command != "python audio_server.py" || byName["audio"].Port != 9001 {
		t.Fatalf("audio spec = %+v", byName["audio"])
	}
	if byName["video"].Port != 8002 || byName["image"].Port != 8003 || byName["docs"].Port != 8004 {
		t.Fatalf("default ports wrong: %+v", specs)
	}
}

func TestStartAllSkipsUnconfigured(t *testing.T) {
	specs := []ServerSpec{
		{Name: "audio", Command: "", Port: 8001},
		{Name: "video", Command: "   ", Port: 8002},
	}
	s := New(specs, supervisorLogger(t))
	if err := s.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll with no configured sidecars must succeed: %v", err)
	}
	defer s.StopAll()

	for _, st := range s.Status() {
		if st.Running {
			t.Fatalf("nothing should be running: %+v", st)
		}
	}
}

func TestStartAndStopSidecar(t *testing.T) {
	specs := []ServerSpec{{Name: "audio", Command: "sleep 60", Port: 8001}}
	s := New(specs, supervisorLogger(t))
	if err := s.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}

	status := s.Status()
	if len(status) != 1 || !status[0].Running || status[0].PID == 0 {
		t.Fatalf("unexpected status after start: %+v", status)
	}

	if err := s.StartAll(context.Background()); err == nil {
		t.Fatalf("double start must fail")
	}

	s.StopAll()
	for _, st := range s.Status() {
		if st.Running {
			t.Fatalf("sidecar still running after StopAll: %+v", st)
		}
	}
}

func TestStartAllFailsOnBadCommand(t *testing.T) {
	specs := []ServerSpec{{Name: "audio", Command: "/nonexistent/binary --flag", Port: 8001}}
	s := New(specs, supervisorLogger(t))
	if err := s.StartAll(context.Background()); err == nil {
		s.StopAll()
		t.Fatalf("expected spawn failure for missing binary")
	}
}
