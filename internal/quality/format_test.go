package quality

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestGoFilesAreGofmted 对模块内所有 Go 源文件运行 gofmt -l，输出非空即失败。
// 以 "_" 或 "." 开头的目录与 vendor、testdata 会被 go 工具链忽略，这里同样跳过。
func TestGoFilesAreGofmted(t *testing.T) {
	if _, err := exec.LookPath("gofmt"); err != nil {
		t.Skip("gofmt not in PATH")
	}
	root, err := findModuleRoot()
	if err != nil {
		t.Fatalf("find module root: %v", err)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	if len(files) == 0 {
		t.Fatal("no Go files found")
	}

	out, err := exec.Command("gofmt", append([]string{"-l"}, files...)...).Output()
	if err != nil {
		t.Fatalf("gofmt: %v", err)
	}
	if bad := strings.TrimSpace(string(out)); bad != "" {
		t.Errorf("files need gofmt:\n%s", bad)
	}
	t.Logf("checked %d Go files", len(files))
}

// findModuleRoot 从工作目录向上查找 go.mod。
func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
