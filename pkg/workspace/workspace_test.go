package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestPrepareCreatesStructure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")

	prepared, err := Prepare(root)
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if prepared != root {
		t.Fatalf("expected %q, got %q", root, prepared)
	}

	for _, sub := range Subdirectories() {
		if info, err := os.Stat(filepath.Join(root, sub)); err != nil {
			t.Fatalf("subdir %q missing: %v", sub, err)
		} else if !info.IsDir() {
			t.Fatalf("subdir %q is not a directory", sub)
		}
	}
}

func TestPrepareUsesDefaultRoot(t *testing.T) {
	temp := t.TempDir()

	switch runtime.GOOS {
	case "windows":
		t.Setenv("AppData", temp)
	case "darwin":
		// macOS default uses home dir; override with env var for deterministic test.
		t.Setenv("VPRINT_WORKSPACE", filepath.Join(temp, "vprint"))
	default:
		t.Setenv("XDG_DATA_HOME", temp)
	}

	// Ensure explicit override is cleared when needed.
	if runtime.GOOS != "darwin" {
		t.Setenv("VPRINT_WORKSPACE", "")
	}

	prepared, err := Prepare("")
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}

	if _, err := os.Stat(prepared); err != nil {
		t.Fatalf("default root not created: %v", err)
	}
}

func TestPrepareInvalidRoot(t *testing.T) {
	stubPlatform(t, "linux", func() (string, error) {
		return "", errors.New("cannot resolve home dir")
	})
	t.Setenv("VPRINT_WORKSPACE", "")
	t.Setenv("XDG_DATA_HOME", "")

	if prepared, err := Prepare(""); err == nil {
		t.Fatalf("expected error, got prepared root %q", prepared)
	}
}

func TestPrepare_ErrCreateWorkspace(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Prepare(filepath.Join(blocker, "ws")); err == nil {
		t.Fatal("expected error creating workspace under a regular file")
	}
}

func TestPrepare_ErrCreateWorkspaceSubdir(t *testing.T) {
	tmp := t.TempDir()

	badSub := filepath.Join(tmp, defaultSubdirs[0])
	if err := os.WriteFile(badSub, []byte("not a dir"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Prepare(tmp)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	t.Logf("got expected error: %v", err)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = WithContext(ctx, "/tmp/ws")

	root, ok := FromContext(ctx)
	if !ok || root != "/tmp/ws" {
		t.Fatalf("expected workspace root /tmp/ws, got %q", root)
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("expected missing workspace root from empty context")
	}
}
func TestWithContext_NilContext(t *testing.T) {
	//nolint:staticcheck
	ctx := WithContext(nil, "/tmp/ws")
	root, ok := FromContext(ctx)
	if !ok || root != "/tmp/ws" {
		t.Fatalf("expected workspace root /tmp/ws, got %q", root)
	}
}

func TestFromContext_NilContext(t *testing.T) {
	//nolint:staticcheck
	root, ok := FromContext(nil)
	if ok || root != "" {
		t.Fatalf("expected missing workspace root from nil context, got %q", root)
	}
}

func TestDefaultRoot(t *testing.T) {
	tests := []struct {
		name    string
		goos    string
		home    func() (string, error)
		env     map[string]string
		want    string
		wantErr bool
	}{
		{
			name: "env override wins",
			goos: "linux",
			env:  map[string]string{"VPRINT_WORKSPACE": "/srv/vprint"},
			want: "/srv/vprint",
		},
		{
			name: "linux xdg data home",
			goos: "linux",
			env:  map[string]string{"XDG_DATA_HOME": "/data"},
			want: filepath.Join("/data", "vprint"),
		},
		{
			name: "linux falls back to home",
			goos: "linux",
			home: fixedHome("/home/op"),
			env:  map[string]string{"XDG_DATA_HOME": ""},
			want: filepath.Join("/home/op", ".local", "share", "vprint"),
		},
		{
			name: "darwin application support",
			goos: "darwin",
			home: fixedHome("/Users/op"),
			want: filepath.Join("/Users/op", "Library", "Application Support", "VPrint"),
		},
		{
			name:    "darwin without home",
			goos:    "darwin",
			home:    func() (string, error) { return "", errors.New("no home") },
			wantErr: true,
		},
		{
			name: "windows app data",
			goos: "windows",
			env:  map[string]string{"AppData": `C:\Users\op\AppData\Roaming`},
			want: filepath.Join(`C:\Users\op\AppData\Roaming`, "VPrint"),
		},
		{
			name: "windows falls back to home",
			goos: "windows",
			home: fixedHome("/home/op"),
			env:  map[string]string{"AppData": ""},
			want: filepath.Join("/home/op", "AppData", "Roaming", "VPrint"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubPlatform(t, tt.goos, tt.home)
			t.Setenv("VPRINT_WORKSPACE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			dir, err := defaultRoot()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", dir)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dir != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, dir)
			}
		})
	}
}

func TestLock_SecondHolderFails(t *testing.T) {
	root, err := Prepare(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	unlock, err := Lock(root)
	if err != nil {
		t.Fatalf("first lock failed: %v", err)
	}

	if _, err := Lock(root); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := unlock(); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}

	again, err := Lock(root)
	if err != nil {
		t.Fatalf("relock failed: %v", err)
	}
	_ = again()
}

func TestPath(t *testing.T) {
	if got := Path("/ws", SpoolDir); got != filepath.Join("/ws", "spool") {
		t.Fatalf("unexpected path %q", got)
	}
}
