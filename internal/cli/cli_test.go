package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ironsheep/door-ai-studio/internal/config"
	"github.com/ironsheep/door-ai-studio/internal/detection"
	"github.com/ironsheep/door-ai-studio/internal/imaging"
	"github.com/ironsheep/door-ai-studio/internal/logger"
)

// setupCLITest isolates a test from the host environment and from flag
// values left behind by earlier Execute calls on the shared command tree.
func setupCLITest(t *testing.T) *bytes.Buffer {
	t.Helper()
	for _, key := range []string{
		"DOOR_PROVIDER", "DOOR_PROVIDER_NAME", "DOOR_MODEL", "DOOR_PROVIDER_MODEL",
		"DOOR_ADDR", "DOOR_SERVER_ADDR", "DOOR_LOG_LEVEL", "LOG_LEVEL",
		"DOOR_PROVIDER_API_KEY", "DOOR_PROVIDER_API_KEY_FILE",
		"OPENAI_API_KEY", "OPENAI_API_KEY_FILE", "GEMINI_API_KEY", "GEMINI_API_KEY_FILE",
		"DOOR_CANVAS_SIZE", "DOOR_CANVAS_MAX_SOURCE_PIXELS",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")
	t.Chdir(t.TempDir())

	resetFlags(rootCmd)
	cfgFile, envFile, logLevel, provider = "", "", "", ""
	cfg = nil

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	return buf
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func writeTestPhoto(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 120, G: 80, B: 40, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "door.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create photo: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode photo: %v", err)
	}
	return path
}

func TestVersionOutput_ContainsFields(t *testing.T) {
	buf := setupCLITest(t)
	SetVersion("1.2.3")
	SetBuildInfo("abc1234", "2026-02-06T07:16:38Z")

	rootCmd.SetArgs([]string{"version"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	out := buf.String()
	for _, field := range []string{"door-studio 1.2.3", "commit:", "built:", "go version:", "platform:"} {
		if !strings.Contains(out, field) {
			t.Errorf("version output missing %q. Got:\n%s", field, out)
		}
	}
	if cfg != nil {
		t.Error("version should not load configuration")
	}
}

func TestVersionShort(t *testing.T) {
	buf := setupCLITest(t)
	SetVersion("1.2.3")

	rootCmd.SetArgs([]string{"version", "--short"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version --short failed: %v", err)
	}

	if got := strings.TrimSpace(buf.String()); got != "1.2.3" {
		t.Errorf("got %q, want 1.2.3", got)
	}
}

func TestVersionJSON(t *testing.T) {
	buf := setupCLITest(t)
	SetVersion("1.2.3")
	SetBuildInfo("abc1234", "2026-02-06T07:16:38Z")

	rootCmd.SetArgs([]string{"version", "--json"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version --json failed: %v", err)
	}

	var info map[string]string
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if info["version"] != "1.2.3" || info["commit"] != "abc1234" {
		t.Errorf("unexpected info: %v", info)
	}
}

func TestPrepareCommand(t *testing.T) {
	buf := setupCLITest(t)
	photo := writeTestPhoto(t, 80, 40)
	outDir := filepath.Join(t.TempDir(), "out")

	rootCmd.SetArgs([]string{"prepare", photo, "--out", outDir, "--box-w", "50", "--box-h", "90"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("prepare failed: %v", err)
	}

	var out prepareOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if out.BoxW != 50 || out.BoxH != 90 {
		t.Errorf("box: got %vx%v, want 50x90", out.BoxW, out.BoxH)
	}

	for _, path := range []string{out.Image, out.Mask} {
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		cfgImg, err := png.DecodeConfig(f)
		f.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if cfgImg.Width != 1024 || cfgImg.Height != 1024 {
			t.Errorf("%s: got %dx%d, want 1024x1024", path, cfgImg.Width, cfgImg.Height)
		}
	}
	if out.Protected.Width != 512 {
		t.Errorf("protected width: got %d, want 512", out.Protected.Width)
	}
}

func TestPrepareCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    func(photo string) []string
		wantErr error
		wantMsg string
	}{
		{
			name:    "box out of range",
			args:    func(photo string) []string { return []string{"prepare", photo, "--box-w", "95"} },
			wantErr: detection.ErrOutOfBounds,
		},
		{
			name:    "bad fill",
			args:    func(photo string) []string { return []string{"prepare", photo, "--fill", "white"} },
			wantMsg: "--fill",
		},
		{
			name:    "missing photo",
			args:    func(string) []string { return []string{"prepare", "does-not-exist.png"} },
			wantMsg: "reading photo",
		},
		{
			name:    "no photo argument",
			args:    func(string) []string { return []string{"prepare"} },
			wantMsg: "accepts 1 arg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupCLITest(t)
			photo := writeTestPhoto(t, 40, 40)

			rootCmd.SetArgs(tt.args(photo))
			err := rootCmd.Execute()
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("got %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestServeRequiresProviderKey(t *testing.T) {
	setupCLITest(t)

	rootCmd.SetArgs([]string{"serve"})
	err := rootCmd.Execute()
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Errorf("got %v, want ErrMissingAPIKey", err)
	}
}

func TestRootFlagsOverrideConfig(t *testing.T) {
	setupCLITest(t)
	t.Setenv("DOOR_PROVIDER", "openai")

	rootCmd.SetArgs([]string{"serve", "--provider", "gemini", "--addr", ":9191", "--log-level", "warn"})
	err := rootCmd.Execute()
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("got %v, want ErrMissingAPIKey", err)
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("error should name the gemini key: %v", err)
	}

	if cfg.Provider.Name != "gemini" {
		t.Errorf("provider: got %s, want gemini", cfg.Provider.Name)
	}
	if cfg.Server.Addr != ":9191" {
		t.Errorf("addr: got %s, want :9191", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level: got %s, want warn", cfg.Logging.Level)
	}
}

func TestEnvFileFlag(t *testing.T) {
	setupCLITest(t)
	os.Unsetenv("DOOR_CANVAS_SIZE")
	t.Cleanup(func() { os.Unsetenv("DOOR_CANVAS_SIZE") })

	envPath := filepath.Join(t.TempDir(), "studio.env")
	if err := os.WriteFile(envPath, []byte("DOOR_CANVAS_SIZE=256\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	photo := writeTestPhoto(t, 20, 20)

	rootCmd.SetArgs([]string{"prepare", photo, "--env-file", envPath, "--out", t.TempDir()})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if cfg.Canvas.Size != 256 {
		t.Errorf("canvas size: got %d, want 256", cfg.Canvas.Size)
	}
}

func TestMCPComposerWithoutKey(t *testing.T) {
	setupCLITest(t)

	var err error
	cfg, err = config.Load("", nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	log = logger.Discard()

	composer, err := mcpComposer(t.Context())
	if err != nil {
		t.Fatalf("mcpComposer: %v", err)
	}
	if composer != nil {
		t.Error("expected no composer without a provider key")
	}
}

func TestPrepareCommand_SourcePixelBudget(t *testing.T) {
	setupCLITest(t)
	t.Cleanup(func() { imaging.SetMaxSourcePixels(imaging.DefaultMaxSourcePixels) })
	t.Setenv("DOOR_CANVAS_MAX_SOURCE_PIXELS", "100")
	photo := writeTestPhoto(t, 20, 20)

	rootCmd.SetArgs([]string{"prepare", photo, "--out", t.TempDir()})
	err := rootCmd.Execute()
	if !errors.Is(err, imaging.ErrDecode) {
		t.Fatalf("got %v, want ErrDecode", err)
	}
	if imaging.MaxSourcePixels() != 100 {
		t.Errorf("budget: got %d, want 100", imaging.MaxSourcePixels())
	}
}
