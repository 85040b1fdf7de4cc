// Package announcer builds prompts for the station's AI "DJ" persona,
// parses its structured output, and fetches a companion image for manual
// announcements. Two entry points share the capability: Announce (operator
// topic, replied privately) and TrackIntro (unattended, fired on track
// changes from the polling loop).
package announcer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/radio-tender/backend/telemetry"
)

// defaultImageBase is the image-generation endpoint; prompt text goes in the path.
const defaultImageBase = "https://image.pollinations.ai/prompt/"

// Announcement is the result of a manual generation request.
type Announcement struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Image string `json:"image"`
}

// Generator owns the process-wide persona and the generation pipeline.
type Generator struct {
	mu      sync.Mutex
	persona string

	gen       TextGenerator
	publicDir string

	// overridable in tests
	imageBase  string
	httpClient *http.Client
}

// New returns a generator writing images under publicDir. gen may be nil when
// no API key is configured; every generation then fails cleanly.
func New(gen TextGenerator, persona, publicDir string) *Generator {
	return &Generator{
		gen:        gen,
		persona:    persona,
		publicDir:  publicDir,
		imageBase:  defaultImageBase,
		httpClient: http.DefaultClient,
	}
}

// Persona returns the current process-wide persona.
func (g *Generator) Persona() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.persona
}

// SetPersona replaces the process-wide persona.
func (g *Generator) SetPersona(p string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.persona = p
	slog.Info("announcer persona updated")
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	if g.gen == nil {
		return "", fmt.Errorf("text generation disabled: no API key configured")
	}
	return g.gen.Generate(ctx, prompt)
}

// stripFences removes a markdown code-fence wrapping from the raw model output.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// Announce runs the manual/topic-driven path: ask for a JSON object with
// title, text and an English image prompt, then fetch and persist the image.
// Persona falls back to the process-wide one, style to a photorealistic default.
func (g *Generator) Announce(ctx context.Context, topic, persona, imageStyle string) (Announcement, error) {
	if persona == "" {
		persona = g.Persona()
	}
	if imageStyle == "" {
		imageStyle = "photorealistic, 4k"
	}
	prompt := fmt.Sprintf(`%s
Topic: %q.
Task:
1. A headline.
2. Body text (max 300 characters).
3. An image description in English.
ANSWER AS JSON: { "title": "...", "text": "...", "image_prompt": "..." }`, persona, topic)

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		g.fail()
		return Announcement{}, err
	}
	var parsed struct {
		Title       string `json:"title"`
		Text        string `json:"text"`
		ImagePrompt string `json:"image_prompt"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		g.fail()
		return Announcement{}, fmt.Errorf("malformed generator output: %w", err)
	}

	imagePath, err := g.fetchImage(ctx, parsed.ImagePrompt+", "+imageStyle)
	if err != nil {
		g.fail()
		return Announcement{}, err
	}
	if telemetry.AnnouncementsGenerated != nil {
		telemetry.AnnouncementsGenerated.Inc()
	}
	return Announcement{Title: parsed.Title, Text: parsed.Text, Image: imagePath}, nil
}

// TrackIntro runs the automatic/track-driven path: one short spoken-style line
// for the track that just started. The caller wraps it as a chat message.
func (g *Generator) TrackIntro(ctx context.Context, artist, title string) (string, error) {
	prompt := fmt.Sprintf(`%s
Now playing: %q.
Write ONE short message (max 100 characters).
Reply with the text only. No quotes.`, g.Persona(), artist+" - "+title)
	line, err := g.generate(ctx, prompt)
	if err != nil {
		g.fail()
		return "", err
	}
	if telemetry.AnnouncementsGenerated != nil {
		telemetry.AnnouncementsGenerated.Inc()
	}
	return strings.TrimSpace(line), nil
}

func (g *Generator) fail() {
	if telemetry.AnnouncementsFailed != nil {
		telemetry.AnnouncementsFailed.Inc()
	}
}

// fetchImage requests the rendered image and writes it to the public asset
// directory under a uniquely-named file. Returns the public URL path.
func (g *Generator) fetchImage(ctx context.Context, prompt string) (string, error) {
	u := fmt.Sprintf("%s%s?width=1280&height=720&model=flux&nologo=true&seed=%d",
		g.imageBase, url.PathEscape(prompt), rand.Intn(1000))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image fetch: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image fetch: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("image read: %w", err)
	}
	if err := os.MkdirAll(g.publicDir, 0o755); err != nil {
		return "", fmt.Errorf("image dir: %w", err)
	}
	name := fmt.Sprintf("lizard_%d.jpg", time.Now().UnixMilli())
	if err := os.WriteFile(filepath.Join(g.publicDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("image write: %w", err)
	}
	return "/cinema/" + name, nil
}
