package project

import (
	"os"
	"path/filepath"
	"testing"
)

func mkdirs(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := os.MkdirAll(p, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", p, err)
		}
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("project: x\n"), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T, root string) (start string)
		wantDir   func(root string) string
		hasConfig bool
		hasBMAD   bool
		vcs       VCS
	}{
		{
			name: "config in start dir",
			setup: func(t *testing.T, root string) string {
				touch(t, filepath.Join(root, ".bmadnotion.yaml"))
				return root
			},
			wantDir:   func(root string) string { return root },
			hasConfig: true,
		},
		{
			name: "config found from nested dir",
			setup: func(t *testing.T, root string) string {
				touch(t, filepath.Join(root, ".bmadnotion.yaml"))
				nested := filepath.Join(root, "_bmad-output", "planning-artifacts")
				mkdirs(t, nested, filepath.Join(root, ".git"))
				return nested
			},
			wantDir:   func(root string) string { return root },
			hasConfig: true,
			hasBMAD:   true,
			vcs:       VCSGit,
		},
		{
			name: "bmad dir without config",
			setup: func(t *testing.T, root string) string {
				mkdirs(t, filepath.Join(root, "_bmad", "bmm"), filepath.Join(root, "src"))
				return filepath.Join(root, "src")
			},
			wantDir: func(root string) string { return root },
			hasBMAD: true,
		},
		{
			name: "colocated jj repo only",
			setup: func(t *testing.T, root string) string {
				mkdirs(t, filepath.Join(root, ".jj"), filepath.Join(root, ".git"), filepath.Join(root, "a", "b"))
				return filepath.Join(root, "a", "b")
			},
			wantDir: func(root string) string { return root },
			vcs:     VCSJJ,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			start := tt.setup(t, root)

			got, err := Detect(start)
			if err != nil {
				t.Fatalf("Detect() failed: %v", err)
			}
			if got.Dir != tt.wantDir(root) {
				t.Errorf("Dir = %q, want %q", got.Dir, tt.wantDir(root))
			}
			if got.HasConfig != tt.hasConfig {
				t.Errorf("HasConfig = %v, want %v", got.HasConfig, tt.hasConfig)
			}
			if got.HasBMAD != tt.hasBMAD {
				t.Errorf("HasBMAD = %v, want %v", got.HasBMAD, tt.hasBMAD)
			}
			if got.VCS != tt.vcs {
				t.Errorf("VCS = %q, want %q", got.VCS, tt.vcs)
			}
		})
	}
}

func TestDetect_ConfigBeatsNearerBMADDir(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, ".bmadnotion.yaml"))
	sub := filepath.Join(root, "packages", "web")
	mkdirs(t, filepath.Join(sub, "_bmad-output"))

	got, err := Detect(sub)
	if err != nil {
		t.Fatalf("Detect() failed: %v", err)
	}
	if got.Dir != root {
		t.Errorf("Dir = %q, want %q", got.Dir, root)
	}
}

func TestDetectOrCwd_EmptyDir(t *testing.T) {
	dir := t.TempDir()

	got, err := DetectOrCwd(dir)
	if err != nil {
		t.Fatalf("DetectOrCwd() failed: %v", err)
	}
	if got.HasConfig {
		t.Error("HasConfig = true in empty dir")
	}
}

func TestRootPaths(t *testing.T) {
	r := &Root{Dir: "/work/acme"}

	if got := r.ConfigPath(); got != filepath.Join("/work/acme", ".bmadnotion.yaml") {
		t.Errorf("ConfigPath() = %q", got)
	}
	if got := r.StorePath(); got != filepath.Join("/work/acme", ".bmadnotion", "sync.db") {
		t.Errorf("StorePath() = %q", got)
	}
}

func TestEnsureIgnored(t *testing.T) {
	dir := t.TempDir()
	mkdirs(t, filepath.Join(dir, ".git"))
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("node_modules"), 0644); err != nil {
		t.Fatal(err)
	}

	r := &Root{Dir: dir, VCS: VCSGit}
	changed, err := r.EnsureIgnored()
	if err != nil {
		t.Fatalf("EnsureIgnored() failed: %v", err)
	}
	if !changed {
		t.Error("first EnsureIgnored() should change .gitignore")
	}

	changed, err = r.EnsureIgnored()
	if err != nil {
		t.Fatalf("second EnsureIgnored() failed: %v", err)
	}
	if changed {
		t.Error("second EnsureIgnored() should be a no-op")
	}

	content, _ := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if string(content) != "node_modules\n.bmadnotion/\n" {
		t.Errorf(".gitignore = %q", content)
	}
}

func TestEnsureIgnored_NoVCS(t *testing.T) {
	dir := t.TempDir()
	r := &Root{Dir: dir}

	changed, err := r.EnsureIgnored()
	if err != nil || changed {
		t.Fatalf("EnsureIgnored() = %v, %v; want false, nil", changed, err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".gitignore")); !os.IsNotExist(err) {
		t.Error(".gitignore should not be created outside version control")
	}
}
