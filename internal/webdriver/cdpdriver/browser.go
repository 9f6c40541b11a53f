package cdpdriver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

type launchConfig struct {
	ExecPath    string
	UserDataDir string
	Port        int
	Proxy       string
	Args        []string
}

// browser is a Chrome process started with remote debugging enabled.
type browser struct {
	cmd         *exec.Cmd
	devToolsURL string
	tempDir     string
}

func startBrowser(ctx context.Context, cfg launchConfig, readyTimeout time.Duration) (*browser, error) {
	exe := cfg.ExecPath
	if exe == "" {
		exe = defaultChromePath()
	}
	if exe == "" {
		return nil, errors.New("chrome executable not found")
	}

	port, err := pickPort(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("pick port: %w", err)
	}

	b := &browser{devToolsURL: fmt.Sprintf("http://127.0.0.1:%d", port)}
	if cfg.UserDataDir == "" {
		dir, err := os.MkdirTemp("", "zest-chrome-")
		if err != nil {
			return nil, fmt.Errorf("profile dir: %w", err)
		}
		cfg.UserDataDir = dir
		b.tempDir = dir
	}

	// the process must outlive ctx, which only bounds the launch
	b.cmd = exec.Command(exe, buildLaunchArgs(port, cfg)...)
	if err := b.cmd.Start(); err != nil {
		b.cleanup()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := waitDevToolsReady(waitCtx, b.devToolsURL); err != nil {
		_ = b.stop(2 * time.Second)
		return nil, err
	}
	return b, nil
}

func (b *browser) stop(timeout time.Duration) error {
	if b == nil || b.cmd == nil || b.cmd.Process == nil {
		return nil
	}
	defer b.cleanup()
	done := make(chan error, 1)
	go func() { done <- b.cmd.Wait() }()
	_ = b.cmd.Process.Kill()
	select {
	case <-time.After(timeout):
		return errors.New("browser stop timeout")
	case <-done:
		return nil
	}
}

func (b *browser) cleanup() {
	if b.tempDir != "" {
		_ = os.RemoveAll(b.tempDir)
		b.tempDir = ""
	}
}

func defaultChromePath() string {
	for _, p := range chromePaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, name := range []string{"chrome", "google-chrome", "chromium", "chromium-browser"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

func chromePaths() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			filepath.Join(os.Getenv("ProgramFiles"), "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(os.Getenv("ProgramFiles(x86)"), "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(os.Getenv("LOCALAPPDATA"), "Google", "Chrome", "Application", "chrome.exe"),
		}
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			filepath.Join(os.Getenv("HOME"), "Applications", "Google Chrome.app", "Contents", "MacOS", "Google Chrome"),
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	default:
		return nil
	}
}

// pickPort uses preferred when it is free and any free port otherwise.
func pickPort(preferred int) (int, error) {
	if preferred > 0 {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", preferred))
		if err == nil {
			_ = l.Close()
			return preferred, nil
		}
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("find free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func buildLaunchArgs(port int, cfg launchConfig) []string {
	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", port),
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-background-networking",
		"--disable-breakpad",
		"--disable-client-side-phishing-detection",
		"--disable-default-apps",
		"--disable-extensions",
		"--disable-hang-monitor",
		"--disable-popup-blocking",
		"--disable-prompt-on-repost",
		"--disable-sync",
		"--metrics-recording-only",
		"--ignore-certificate-errors",
		fmt.Sprintf("--user-data-dir=%s", cfg.UserDataDir),
	}
	if runtime.GOOS == "linux" {
		args = append(args, "--disable-dev-shm-usage")
	}
	if cfg.Proxy != "" {
		args = append(args, fmt.Sprintf("--proxy-server=%s", cfg.Proxy))
	}
	for _, arg := range cfg.Args {
		if arg == "--ignore-certificate-errors" {
			continue
		}
		args = append(args, arg)
	}
	return append(args, "about:blank")
}

func waitDevToolsReady(ctx context.Context, base string) error {
	url := base + "/json/version"
	cli := &http.Client{Timeout: 500 * time.Millisecond}
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("devtools not ready: %w", ctx.Err())
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				continue
			}
			resp, err := cli.Do(req)
			if resp != nil {
				resp.Body.Close()
			}
			if err == nil && resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}
